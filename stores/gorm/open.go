package gorm

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/scs/gormstore"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to dsn. postgres:// and postgresql:// URLs use the pgx
// backed Postgres driver; anything else is treated as a SQLite DSN.
//
// SQLite is limited to a single open connection so writers queue in the pool
// instead of failing with SQLITE_BUSY.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}

	var dialector gorm.Dialector
	isPostgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	if isPostgres {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(sqliteDSN(dsn))
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if !isPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// sqliteDSN adds a busy timeout and foreign key enforcement unless the DSN
// already sets pragmas.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// NewSessionStore returns an scs store keeping sessions in the sessions table
// of db, expiring old rows every cleanupInterval (0 disables the sweep).
func NewSessionStore(db *gorm.DB, cleanupInterval time.Duration) (*gormstore.GORMStore, error) {
	store, err := gormstore.NewWithCleanupInterval(db, cleanupInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	return store, nil
}
