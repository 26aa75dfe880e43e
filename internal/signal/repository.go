package signal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Repository defines the persistence operations for named signals.
// Implementations must make each call atomic for the record it touches.
type Repository interface {
	// Get retrieves the signal stored under name.
	// Returns ErrSignalNotFound if the record does not exist.
	Get(ctx context.Context, name string) (Signal, error)

	// Create inserts a new record.
	// Returns ErrSignalExists if the name is already taken.
	Create(ctx context.Context, name string, s Signal) error

	// Upsert inserts the record or overwrites every field of an existing one.
	// created reports which of the two happened.
	Upsert(ctx context.Context, name string, s Signal) (created bool, err error)

	// Update overwrites an existing record.
	// Returns ErrSignalNotFound if the record does not exist.
	Update(ctx context.Context, name string, s Signal) error

	// Delete removes a record.
	// Returns ErrSignalNotFound if the record does not exist.
	Delete(ctx context.Context, name string) error

	// ListNames returns every stored name ordered by name.
	ListNames(ctx context.Context) ([]string, error)
}

// SQLiteRepository implements Repository on the ir_signals table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves the signal stored under name.
func (r *SQLiteRepository) Get(ctx context.Context, name string) (Signal, error) {
	var (
		s    Signal
		data string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT freq, data, format FROM ir_signals WHERE name = ?", name,
	).Scan(&s.Frequency, &data, &s.Format)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Signal{}, ErrSignalNotFound
		}
		return Signal{}, fmt.Errorf("querying signal: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &s.Pulses); err != nil {
		return Signal{}, fmt.Errorf("unmarshalling data for %q: %w", name, err)
	}
	if s.Pulses == nil {
		s.Pulses = []int{}
	}
	return s, nil
}

// Create inserts a new record.
func (r *SQLiteRepository) Create(ctx context.Context, name string, s Signal) error {
	data, err := marshalPulses(s.Pulses)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO ir_signals (name, freq, data, format) VALUES (?, ?, ?, ?)",
		name, s.Frequency, data, s.Format,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSignalExists
		}
		return fmt.Errorf("inserting signal: %w", err)
	}
	return nil
}

// Upsert inserts or overwrites a record inside a single transaction, so the
// created flag always matches the write that was performed.
func (r *SQLiteRepository) Upsert(ctx context.Context, name string, s Signal) (bool, error) {
	data, err := marshalPulses(s.Pulses)
	if err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var n int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ir_signals WHERE name = ?", name,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("checking signal: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ir_signals (name, freq, data, format) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			freq = excluded.freq, data = excluded.data, format = excluded.format`,
		name, s.Frequency, data, s.Format,
	); err != nil {
		return false, fmt.Errorf("upserting signal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing upsert: %w", err)
	}
	return n == 0, nil
}

// Update overwrites an existing record.
func (r *SQLiteRepository) Update(ctx context.Context, name string, s Signal) error {
	data, err := marshalPulses(s.Pulses)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE ir_signals SET freq = ?, data = ?, format = ? WHERE name = ?",
		s.Frequency, data, s.Format, name,
	)
	if err != nil {
		return fmt.Errorf("updating signal: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a record.
func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ir_signals WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting signal: %w", err)
	}
	return requireAffected(result)
}

// ListNames returns every stored name. The result is never nil.
func (r *SQLiteRepository) ListNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM ir_signals ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating names: %w", err)
	}
	return names, nil
}

// marshalPulses encodes pulses for the data column. nil is stored as [].
func marshalPulses(pulses []int) (string, error) {
	if pulses == nil {
		pulses = []int{}
	}
	b, err := json.Marshal(pulses)
	if err != nil {
		return "", fmt.Errorf("marshalling data: %w", err)
	}
	return string(b), nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrSignalNotFound
	}
	return nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
