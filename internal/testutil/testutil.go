package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enroll/queue-server-go/internal/config"
	"github.com/enroll/queue-server-go/internal/database"
)

// SetupTestDB returns a fresh in-memory sqlite store with the full schema.
func SetupTestDB(t *testing.T, smsEnabled bool) *database.DB {
	t.Helper()

	db, err := database.Connect(config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.EnsureSchema(context.Background(), db, smsEnabled))
	return db
}
