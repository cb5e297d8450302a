package testhelpers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
	"github.com/ekaya-inc/genbi-engine/pkg/database"
)

// NewTestDB opens a fresh SQLite database in a temp directory with all
// migrations applied. It is closed when the test ends.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "genbi.db"),
		MaxOpenConns: 4,
		BusyTimeout:  5 * time.Second,
	}

	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.RunMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}
