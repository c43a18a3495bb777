package postgres

import (
	"context"
	"os"
	"testing"

	"jaspynotes/internal/infra/persistence/storetest"
	"jaspynotes/pkg/domain"
)

// The postgres contract test needs a live database. Point
// JASPYNOTES_TEST_POSTGRES_DSN at an empty database to enable it; the tables
// are dropped between runs.
func TestStoreContract(t *testing.T) {
	dsn := os.Getenv("JASPYNOTES_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("JASPYNOTES_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) domain.Store {
		store, err := NewStore(dsn)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() {
			_, _ = store.db.ExecContext(context.Background(),
				`DROP TABLE IF EXISTS subitems, notes, users CASCADE`)
			_ = store.Close()
		})
		return store
	})
}
