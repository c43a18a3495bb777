package core

import (
	"fmt"
	"os"

	"jaspynotes/internal/infra/persistence/memory"
	"jaspynotes/internal/infra/persistence/postgres"
	"jaspynotes/internal/infra/persistence/sqlite"
	"jaspynotes/pkg/domain"
)

// OpenStore selects a persistence backend using environment variables.
//
//	JASPYNOTES_DB_DRIVER: sqlite|postgres|memory (default sqlite)
//	JASPYNOTES_DB_PATH: sqlite file path (default jaspynotes.db)
//	JASPYNOTES_DB_DSN: postgres DSN when driver=postgres
func OpenStore() (domain.Store, error) {
	driver := os.Getenv("JASPYNOTES_DB_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	switch driver {
	case "sqlite":
		return sqlite.NewStore(os.Getenv("JASPYNOTES_DB_PATH"))
	case "postgres":
		return postgres.NewStore(os.Getenv("JASPYNOTES_DB_DSN"))
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown db driver %s", driver)
	}
}
