package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brightpath/iep-backend/internal/platform/envutil"
	"github.com/brightpath/iep-backend/internal/platform/logger"
)

func NewSQLiteService(logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "SQLiteService")

	path := envutil.Str("SQLITE_PATH", "iep.db")

	// TranslateError stays off so raw constraint messages reach the
	// conflict classifier intact.
	gdb, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
	}

	return &Service{db: gdb, dialect: DialectSQLite, log: serviceLog}, nil
}
