package implementation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/lib/pq"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const postgresBackend = "postgres"

// DefaultReadingsTable is the table created by the health package's CreateTables
const DefaultReadingsTable = "sensor_readings"

var _ interfaces.ReadingStore = (*PostgresReadingStore)(nil)

// PostgresReadingStore keeps the reading log in a table ordered by a BIGSERIAL.
// Appends from any number of processes are serialized with a transaction-scoped advisory lock.
type PostgresReadingStore struct {
	db       *sql.DB
	table    string
	lockKey  int64
	capacity int
}

func NewPostgresReadingStore(db *sql.DB, table string, capacity int) *PostgresReadingStore {
	if table == "" {
		table = DefaultReadingsTable
	}
	h := fnv.New64a()
	h.Write([]byte("plantai:" + table))
	return &PostgresReadingStore{
		db:       db,
		table:    pq.QuoteIdentifier(table),
		lockKey:  int64(h.Sum64()),
		capacity: logCapacity(capacity),
	}
}

func (s *PostgresReadingStore) Append(ctx context.Context, reading models.SensorReading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return interfaces.NewStorageError(postgresBackend, "append", fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, s.lockKey); err != nil {
		return interfaces.NewStorageError(postgresBackend, "append", fmt.Errorf("lock: %w", err))
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (reading_id, recorded_at, source, temperature, pressure, humidity, soil_moisture)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.table)
	_, err = tx.ExecContext(ctx, insert,
		reading.ID, reading.Timestamp, reading.Source,
		reading.Temperature, reading.Pressure, reading.Humidity, reading.SoilMoisture,
	)
	if err != nil {
		return interfaces.NewStorageError(postgresBackend, "append", fmt.Errorf("insert: %w", err))
	}

	// The subquery yields the newest evicted seq, or NULL while under capacity
	trim := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE seq <= (SELECT seq FROM %[1]s ORDER BY seq DESC OFFSET $1 LIMIT 1)
	`, s.table)
	if _, err := tx.ExecContext(ctx, trim, s.capacity); err != nil {
		return interfaces.NewStorageError(postgresBackend, "append", fmt.Errorf("trim: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return interfaces.NewStorageError(postgresBackend, "append", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *PostgresReadingStore) Latest(ctx context.Context) (*models.SensorReading, error) {
	query := fmt.Sprintf(`
		SELECT reading_id, recorded_at, source, temperature, pressure, humidity, soil_moisture
		FROM %s ORDER BY seq DESC LIMIT 1
	`, s.table)

	var r models.SensorReading
	err := s.db.QueryRowContext(ctx, query).Scan(
		&r.ID, &r.Timestamp, &r.Source,
		&r.Temperature, &r.Pressure, &r.Humidity, &r.SoilMoisture,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, interfaces.NewStorageError(postgresBackend, "latest", err)
	}
	r.Timestamp = r.Timestamp.UTC()
	return &r, nil
}

func (s *PostgresReadingStore) Ping(ctx context.Context) error {
	return interfaces.NewStorageError(postgresBackend, "ping", s.db.PingContext(ctx))
}

func (s *PostgresReadingStore) Close(ctx context.Context) error {
	return interfaces.NewStorageError(postgresBackend, "close", s.db.Close())
}
