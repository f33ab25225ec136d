package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/store"
	"github.com/kozaktomas/face-tracker/internal/store/mariadb"
	"github.com/kozaktomas/face-tracker/internal/store/postgres"
)

// openStore connects to the configured database backend. PostgreSQL is
// preferred when DATABASE_URL is set; MARIADB_DSN selects MariaDB.
func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		st, err := postgres.New(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return st, nil
	}

	if cfg.Database.MariaDBDSN != "" {
		fmt.Printf("Connecting to MariaDB database...\n")
		st, err := mariadb.New(cfg.Database.MariaDBDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return st, nil
	}

	return nil, errors.New("DATABASE_URL or MARIADB_DSN environment variable is required")
}
