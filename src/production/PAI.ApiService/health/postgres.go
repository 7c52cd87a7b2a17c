package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
)

// ConnectPostgresWithTimeout creates a PostgreSQL connection with a timeout context
func ConnectPostgresWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.Storage.Postgres.MaxConns)
	db.SetMaxIdleConns(cfg.Storage.Postgres.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// DatabaseManager handles schema setup
type DatabaseManager struct {
	db *sql.DB
}

// NewDatabaseManager creates a new database manager
func NewDatabaseManager(db *sql.DB) *DatabaseManager {
	return &DatabaseManager{db: db}
}

// CreateTables creates the reading log table if it doesn't exist
func (dm *DatabaseManager) CreateTables(ctx context.Context, table string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	quoted := pq.QuoteIdentifier(table)

	createReadingsTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq           BIGSERIAL PRIMARY KEY,
			reading_id    UUID NOT NULL UNIQUE,
			recorded_at   TIMESTAMPTZ NOT NULL,
			source        TEXT NOT NULL,
			temperature   DOUBLE PRECISION NOT NULL,
			pressure      DOUBLE PRECISION NOT NULL,
			humidity      DOUBLE PRECISION NOT NULL,
			soil_moisture DOUBLE PRECISION NOT NULL
		);
	`, quoted)

	createIndexes := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s ON %s (recorded_at DESC);
	`, pq.QuoteIdentifier("idx_"+table+"_recorded_at_desc"), quoted)

	queries := []string{
		createReadingsTable,
		createIndexes,
	}

	for _, query := range queries {
		if _, err := dm.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}
