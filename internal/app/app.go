package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/data/db"
	apihttp "github.com/brightpath/iep-backend/internal/http"
	"github.com/brightpath/iep-backend/internal/observability"
	"github.com/brightpath/iep-backend/internal/platform/envutil"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/realtime"
	"github.com/brightpath/iep-backend/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *gorm.DB
	Hub      *realtime.SSEHub
	Bus      bus.Bus
	Metrics  *observability.Metrics
	Repos    Repos
	Services Services
	Handlers Handlers
	Server   *apihttp.Server

	stopTracing func(context.Context) error
}

func New() (*App, error) {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)
	metrics := observability.Init(log)
	stopTracing := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "iep-backend",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	dbService, err := db.Open(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("database migrate: %w", err)
	}
	gdb := dbService.DB()

	hub := realtime.NewSSEHub(log)
	eventBus, err := wireBus(cfg, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	reposet := wireRepos(gdb, log)
	serviceset := wireServices(gdb, dbService.Dialect(), log, reposet, eventBus, metrics)
	handlerset := wireHandlers(log, gdb, serviceset, hub)

	server := apihttp.NewServer(apihttp.RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		HealthHandler:       handlerset.Health,
		StudentHandler:      handlerset.Student,
		IEPHandler:          handlerset.IEP,
		ApprovalHandler:     handlerset.Approval,
		PresentLevelHandler: handlerset.PresentLevel,
		DocumentHandler:     handlerset.Document,
		AuditHandler:        handlerset.Audit,
		EventsHandler:       handlerset.Events,
	})

	return &App{
		Log:         log,
		Cfg:         cfg,
		DB:          gdb,
		Hub:         hub,
		Bus:         eventBus,
		Metrics:     metrics,
		Repos:       reposet,
		Services:    serviceset,
		Handlers:    handlerset,
		Server:      server,
		stopTracing: stopTracing,
	}, nil
}

func wireBus(cfg Config, log *logger.Logger) (bus.Bus, error) {
	if cfg.RedisAddr != "" {
		return bus.NewRedisBus(log)
	}
	return bus.NewLocalBus(log), nil
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the shutdown timeout. Background pieces (bus forwarder, metric
// collectors) stop with the same cancellation.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Bus.StartForwarder(runCtx, a.Hub.Broadcast); err != nil {
		return fmt.Errorf("start bus forwarder: %w", err)
	}

	a.Metrics.StartServer(runCtx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartPostgresCollector(runCtx, a.Log, a.DB)
	a.Metrics.StartApprovalCollector(runCtx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(runCtx, a.Log, a.Cfg.RedisAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Server.Run(":" + a.Cfg.Port)
	}()
	a.Log.Info("server listening", "port", a.Cfg.Port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		defer cancelShutdown()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.Log.Warn("server shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	if a.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.stopTracing(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
