package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/petrijr/sagaflow/pkg/api"
)

// SQLiteInstanceStore is an InstanceStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
//
// Timestamps are stored as Unix nanoseconds so runnable queries can compare
// them in SQL.
type SQLiteInstanceStore struct {
	db *sql.DB
}

var _ InstanceStore = (*SQLiteInstanceStore)(nil)

// NewSQLiteInstanceStore initializes the required schema in the given
// database and returns a new SQLiteInstanceStore.
func NewSQLiteInstanceStore(db *sql.DB) (*SQLiteInstanceStore, error) {
	s := &SQLiteInstanceStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteInstanceStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			stage INTEGER NOT NULL,
			version INTEGER NOT NULL,
			cancel_requested INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			run_after INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			body BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status, run_after);`,
	)
	return err
}

func (s *SQLiteInstanceStore) CreateInstance(ctx context.Context, inst *api.Instance) error {
	body, err := encodeBody(inst)
	if err != nil {
		return err
	}

	inst.Version = 1
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, status, stage, version, cancel_requested, last_error, run_after, created_at, updated_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.OrderID,
		string(inst.Status),
		int(inst.Stage),
		inst.Version,
		boolToInt(inst.CancelRequested),
		inst.LastError,
		inst.RunAfter.UnixNano(),
		inst.CreatedAt.UnixNano(),
		inst.UpdatedAt.UnixNano(),
		body,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return api.ErrDuplicateOrder
	}
	return err
}

func (s *SQLiteInstanceStore) GetInstance(ctx context.Context, orderID string) (*api.Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, status, stage, version, cancel_requested, last_error, run_after, created_at, updated_at, body
		FROM orders
		WHERE order_id = ?`,
		orderID,
	)
	inst, err := scanInstance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrOrderNotFound
	}
	return inst, err
}

func (s *SQLiteInstanceStore) UpdateInstance(ctx context.Context, inst *api.Instance, expectedVersion int64) error {
	body, err := encodeBody(inst)
	if err != nil {
		return err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, stage = ?, version = version + 1, cancel_requested = ?, last_error = ?, run_after = ?, updated_at = ?, body = ?
		WHERE order_id = ? AND version = ?`,
		string(inst.Status),
		int(inst.Stage),
		boolToInt(inst.CancelRequested),
		inst.LastError,
		inst.RunAfter.UnixNano(),
		now.UnixNano(),
		body,
		inst.OrderID,
		expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row is gone or another writer won the version race.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM orders WHERE order_id = ?`, inst.OrderID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return api.ErrOrderNotFound
		}
		return api.ErrVersionConflict
	}

	inst.Version = expectedVersion + 1
	inst.UpdatedAt = now
	return nil
}

func (s *SQLiteInstanceStore) ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.Instance, error) {
	query := `
		SELECT order_id, status, stage, version, cancel_requested, last_error, run_after, created_at, updated_at, body
		FROM orders`
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*api.Instance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func (s *SQLiteInstanceStore) ListRunnable(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id FROM orders
		WHERE (status = ? AND run_after <= ?)
		   OR (status IN (?, ?) AND updated_at <= ?)
		ORDER BY updated_at ASC
		LIMIT ?`,
		string(api.StatusPending),
		now.UnixNano(),
		string(api.StatusRunning),
		string(api.StatusCompensating),
		now.Add(-staleAfter).UnixNano(),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteInstanceStore) DeleteInstance(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = ?`, orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return api.ErrOrderNotFound
	}
	return nil
}

func scanInstance(scan func(dest ...any) error) (*api.Instance, error) {
	var (
		inst      api.Instance
		statusStr string
		stage     int
		cancelled int
		runAfter  int64
		createdAt int64
		updatedAt int64
		body      []byte
	)
	if err := scan(&inst.OrderID, &statusStr, &stage, &inst.Version, &cancelled, &inst.LastError, &runAfter, &createdAt, &updatedAt, &body); err != nil {
		return nil, err
	}
	inst.Status = api.Status(statusStr)
	inst.Stage = api.Stage(stage)
	inst.CancelRequested = cancelled != 0
	inst.RunAfter = time.Unix(0, runAfter)
	inst.CreatedAt = time.Unix(0, createdAt)
	inst.UpdatedAt = time.Unix(0, updatedAt)
	if err := decodeBody(body, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
