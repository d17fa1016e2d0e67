package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/brightpath/iep-backend/internal/platform/envutil"
	"github.com/brightpath/iep-backend/internal/platform/logger"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

type Service struct {
	db      *gorm.DB
	dialect string
	log     *logger.Logger
}

// Open connects to the store selected by DB_DRIVER. Postgres is the
// default; sqlite covers single-district installs that run without a
// database server.
func Open(logg *logger.Logger) (*Service, error) {
	driver := envutil.Str("DB_DRIVER", DialectPostgres)
	switch driver {
	case DialectPostgres:
		return NewPostgresService(logg)
	case DialectSQLite:
		return NewSQLiteService(logg)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
}

func NewPostgresService(logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "PostgresService")

	postgresHost := envutil.Str("POSTGRES_HOST", "localhost")
	postgresPort := envutil.Str("POSTGRES_PORT", "5432")
	postgresUser := envutil.Str("POSTGRES_USER", "postgres")
	postgresPassword := envutil.Str("POSTGRES_PASSWORD", "")
	postgresName := envutil.Str("POSTGRES_NAME", "iep")

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser,
		postgresPassword,
		postgresHost,
		postgresPort,
		postgresName,
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &Service{db: gdb, dialect: DialectPostgres, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

// Dialect reports which driver backs the service. The version sequencer
// uses it to pick between advisory locks and optimistic inserts.
func (s *Service) Dialect() string { return s.dialect }

func newGormLogger() gormLogger.Interface {
	return gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
