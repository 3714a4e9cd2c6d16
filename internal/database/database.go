package database

import (
	"strings"
	"time"

	"lethex-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// zerologWriter sends gorm's log lines to the application logger.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

// Logger reports slow queries and real errors. Missing rows are an expected
// outcome (first credit of a token, unknown ids) and are not logged.
func Logger() logger.Interface {
	return logger.New(zerologWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Open opens a GORM DB from DSN. Postgres pooler URLs are the production
// path; PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind PgBouncer/Supabase.
// A DSN of the form "sqlite:<path>" opens a local SQLite file, used by the CLI
// and for single-node development.
func Open(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return OpenSQLite(strings.TrimPrefix(dsn, sqlitePrefix))
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: Logger()})
}

// OpenSQLite opens a SQLite database with a single connection. SQLite
// serializes writers anyway, and ":memory:" databases are per-connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: Logger()})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Models lists every table owned by the application.
func Models() []interface{} {
	return []interface{}{
		&domain.Admin{},
		&domain.Token{},
		&domain.Holder{},
		&domain.Asset{},
		&domain.Transaction{},
		&domain.TransactionEvent{},
		&domain.Commission{},
	}
}

// AutoMigrate creates or updates all application tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// IsPostgres reports whether db talks to Postgres (row locks are only
// issued there).
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
