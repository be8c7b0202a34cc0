package testsupport

import (
	"context"
	"testing"

	"overlaystudio/internal/config"
	"overlaystudio/internal/jobs"
)

// MustOpenStore opens the SQLite-backed job store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
