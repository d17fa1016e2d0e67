package app

import (
	"time"

	"github.com/brightpath/iep-backend/internal/platform/envutil"
	"github.com/brightpath/iep-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	Environment string
	Version     string

	// RedisAddr switches the SSE bus from in-process to redis pub/sub.
	// Empty means single-instance mode.
	RedisAddr string

	MetricsAddr     string
	ShutdownTimeout time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:            envutil.Str("PORT", "8080"),
		Environment:     envutil.Str("APP_ENV", "development"),
		Version:         envutil.Str("APP_VERSION", "dev"),
		RedisAddr:       envutil.Str("REDIS_ADDR", ""),
		MetricsAddr:     envutil.Str("METRICS_ADDR", ":9100"),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	log.Info("config loaded",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"redis", cfg.RedisAddr != "",
	)
	return cfg
}
