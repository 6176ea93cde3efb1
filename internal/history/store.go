package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openwx/ecowitt-core/internal/infrastructure/config"
	"github.com/openwx/ecowitt-core/internal/infrastructure/database"
)

// hoursPerDay converts the retention setting to a time.Duration.
const hoursPerDay = 24

// ErrNotFound is returned when a counter has never been recorded.
var ErrNotFound = errors.New("history: counter not found")

// Store persists the last observed value of cumulative counters (rain
// totals, lightning strike counts) so per-interval deltas survive
// restarts.
//
// Reads and writes are synchronous with the poll loop; there is no
// concurrency beyond SQLite's own locking.
type Store struct {
	db        *database.DB
	retention time.Duration
}

// Open opens (creating if necessary) the counter database and applies
// pending schema migrations.
//
// Parameters:
//   - cfg: History configuration from config.yaml
//
// Returns:
//   - *Store: Ready for use
//   - error: If the database cannot be opened or migrated
func Open(cfg config.HistoryConfig) (*Store, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: %w", err)
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = 30
	}

	return &Store{
		db:        db,
		retention: time.Duration(retention) * hoursPerDay * time.Hour,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastCounter returns the most recently recorded value for a counter.
//
// Returns ErrNotFound when the counter has never been seen, which the
// caller treats as "no delta for the first packet".
func (s *Store) LastCounter(ctx context.Context, name string) (float64, time.Time, error) {
	var value float64
	var observedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT value, observed_at FROM counters WHERE name = ?",
		name,
	).Scan(&value, &observedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, ErrNotFound
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("history: reading counter %q: %w", name, err)
	}

	at, _ := time.Parse(time.RFC3339, observedAt)
	return value, at, nil
}

// SetCounter records the latest value for a counter and appends a
// snapshot row for the retention window.
func (s *Store) SetCounter(ctx context.Context, name string, value float64, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stamp := at.UTC().Format(time.RFC3339)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO counters (name, value, observed_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, observed_at = excluded.observed_at
	`, name, value, stamp); err != nil {
		return fmt.Errorf("history: upserting counter %q: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO counter_snapshots (name, value, observed_at) VALUES (?, ?, ?)",
		name, value, stamp,
	); err != nil {
		return fmt.Errorf("history: recording snapshot for %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}

// Snapshots returns the retained snapshots for a counter, oldest first.
func (s *Store) Snapshots(ctx context.Context, name string) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		"SELECT value, observed_at FROM counter_snapshots WHERE name = ? ORDER BY observed_at",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("history: querying snapshots for %q: %w", name, err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		var observedAt string
		if err := rows.Scan(&snap.Value, &observedAt); err != nil {
			return nil, fmt.Errorf("history: scanning snapshot: %w", err)
		}
		snap.ObservedAt, _ = time.Parse(time.RFC3339, observedAt)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Snapshot is one retained counter observation.
type Snapshot struct {
	Value      float64
	ObservedAt time.Time
}

// Prune deletes snapshots older than the retention window.
func (s *Store) Prune(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.retention).Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM counter_snapshots WHERE observed_at < ?",
		cutoff,
	); err != nil {
		return fmt.Errorf("history: pruning snapshots: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}
