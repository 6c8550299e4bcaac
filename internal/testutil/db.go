// Package testutil provides an isolated, migrated ledger store for tests.
package testutil

import (
	"fmt"
	"testing"

	"atmledger/internal/config"
	"atmledger/internal/infrastructure/database"
	"atmledger/internal/infrastructure/logging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory sqlite database with the ledger schema.
// It is closed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:         "sqlite",
		DSN:            fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel:       "silent",
		ConnectRetries: 1,
	}
	db, err := database.Open(cfg, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
