// Package testutil builds the fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/datashare/config"
	"github.com/weiwangfds/datashare/internal/database"
	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database in a per-test directory
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Init(config.DatabaseConfig{
		Driver:          database.DriverSQLitePure,
		DSN:             filepath.Join(t.TempDir(), "datashare.db"),
		ConnMaxLifetime: 3600,
		LogLevel:        "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

// CreateUser inserts a user with role
func CreateUser(t *testing.T, db *gorm.DB, name, role string) *database.User {
	t.Helper()

	user := &database.User{
		Name:     name,
		Username: name + "-" + uuid.NewString()[:8],
		Email:    name + "-" + uuid.NewString()[:8] + "@example.com",
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
