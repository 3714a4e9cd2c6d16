// Package testdb opens migrated in-memory databases for package tests.
package testdb

import (
	"testing"

	"lethex-backend/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// New returns a fresh in-memory SQLite database with every table migrated.
func New(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
