package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/petrijr/sagaflow/pkg/api"
)

// PostgresInstanceStore is an InstanceStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib" or "github.com/lib/pq").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresInstanceStore struct {
	db *sql.DB
}

var _ InstanceStore = (*PostgresInstanceStore)(nil)

// NewPostgresInstanceStore initializes the required schema in the given
// database and returns a new PostgresInstanceStore.
func NewPostgresInstanceStore(db *sql.DB) (*PostgresInstanceStore, error) {
	s := &PostgresInstanceStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresInstanceStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			stage INTEGER NOT NULL,
			version BIGINT NOT NULL,
			cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
			last_error TEXT NOT NULL DEFAULT '',
			run_after BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			body BYTEA
		);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status, run_after);
	`)
	return err
}

func (s *PostgresInstanceStore) CreateInstance(ctx context.Context, inst *api.Instance) error {
	body, err := encodeBody(inst)
	if err != nil {
		return err
	}

	inst.Version = 1
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, status, stage, version, cancel_requested, last_error, run_after, created_at, updated_at, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		inst.OrderID,
		string(inst.Status),
		int(inst.Stage),
		inst.Version,
		inst.CancelRequested,
		inst.LastError,
		inst.RunAfter.UnixNano(),
		inst.CreatedAt.UnixNano(),
		inst.UpdatedAt.UnixNano(),
		body,
	)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return api.ErrDuplicateOrder
	}
	return err
}

func (s *PostgresInstanceStore) GetInstance(ctx context.Context, orderID string) (*api.Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, status, stage, version, cancel_requested, last_error, run_after, created_at, updated_at, body
		FROM orders
		WHERE order_id = $1
	`, orderID)
	inst, err := scanPostgresInstance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrOrderNotFound
	}
	return inst, err
}

func (s *PostgresInstanceStore) UpdateInstance(ctx context.Context, inst *api.Instance, expectedVersion int64) error {
	body, err := encodeBody(inst)
	if err != nil {
		return err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, stage = $2, version = version + 1, cancel_requested = $3, last_error = $4, run_after = $5, updated_at = $6, body = $7
		WHERE order_id = $8 AND version = $9
	`,
		string(inst.Status),
		int(inst.Stage),
		inst.CancelRequested,
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
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM orders WHERE order_id = $1`, inst.OrderID,
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

func (s *PostgresInstanceStore) ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.Instance, error) {
	query := `
		SELECT order_id, status, stage, version, cancel_requested, last_error, run_after, created_at, updated_at, body
		FROM orders`
	var args []any
	if filter.Status != "" {
		query += " WHERE status = $1"
		args = append(args, string(filter.Status))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*api.Instance
	for rows.Next() {
		inst, err := scanPostgresInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func (s *PostgresInstanceStore) ListRunnable(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id FROM orders
		WHERE (status = $1 AND run_after <= $2)
		   OR (status IN ($3, $4) AND updated_at <= $5)
		ORDER BY updated_at ASC
		LIMIT $6
	`,
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

func (s *PostgresInstanceStore) DeleteInstance(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = $1`, orderID)
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

func scanPostgresInstance(scan func(dest ...any) error) (*api.Instance, error) {
	var (
		inst      api.Instance
		statusStr string
		stage     int
		runAfter  int64
		createdAt int64
		updatedAt int64
		body      []byte
	)
	if err := scan(&inst.OrderID, &statusStr, &stage, &inst.Version, &inst.CancelRequested, &inst.LastError, &runAfter, &createdAt, &updatedAt, &body); err != nil {
		return nil, err
	}
	inst.Status = api.Status(statusStr)
	inst.Stage = api.Stage(stage)
	inst.RunAfter = time.Unix(0, runAfter)
	inst.CreatedAt = time.Unix(0, createdAt)
	inst.UpdatedAt = time.Unix(0, updatedAt)
	if err := decodeBody(body, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}
