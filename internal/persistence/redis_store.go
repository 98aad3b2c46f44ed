package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/sagaflow/pkg/api"
)

// RedisInstanceStore is an InstanceStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>order:<id>            => gob-encoded redisInstanceRecord
//	<prefix>idx:all               => SET of all order IDs
//	<prefix>idx:status:<status>   => SET of order IDs for a given status
//
// Optimistic concurrency uses WATCH: the update transaction re-reads the
// record under WATCH, verifies the version, and commits via TxPipelined.
// A concurrent write aborts the transaction (redis.TxFailedErr), which is
// reported as api.ErrVersionConflict.
type RedisInstanceStore struct {
	client *redis.Client
	prefix string
}

var _ InstanceStore = (*RedisInstanceStore)(nil)

type redisInstanceRecord struct {
	OrderID         string
	Status          string
	Stage           int
	Version         int64
	CancelRequested bool
	LastError       string
	RunAfterNs      int64
	CreatedAtNs     int64
	UpdatedAtNs     int64
	Body            []byte
}

// NewRedisInstanceStore creates a RedisInstanceStore.
// prefix is optional but recommended (e.g. "sagaflow:").
func NewRedisInstanceStore(client *redis.Client, prefix string) *RedisInstanceStore {
	if prefix == "" {
		prefix = "sagaflow:"
	}
	return &RedisInstanceStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisInstanceStore) keyOrder(id string) string {
	return s.prefix + "order:" + id
}

func (s *RedisInstanceStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisInstanceStore) keyStatus(status api.Status) string {
	return s.prefix + "idx:status:" + string(status)
}

func encodeRedisRecord(inst *api.Instance) ([]byte, error) {
	body, err := encodeBody(inst)
	if err != nil {
		return nil, err
	}
	rec := redisInstanceRecord{
		OrderID:         inst.OrderID,
		Status:          string(inst.Status),
		Stage:           int(inst.Stage),
		Version:         inst.Version,
		CancelRequested: inst.CancelRequested,
		LastError:       inst.LastError,
		RunAfterNs:      inst.RunAfter.UnixNano(),
		CreatedAtNs:     inst.CreatedAt.UnixNano(),
		UpdatedAtNs:     inst.UpdatedAt.UnixNano(),
		Body:            body,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRedisRecord(data []byte) (*api.Instance, error) {
	if len(data) == 0 {
		return nil, api.ErrOrderNotFound
	}
	var rec redisInstanceRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, err
	}
	inst := &api.Instance{
		OrderID:         rec.OrderID,
		Status:          api.Status(rec.Status),
		Stage:           api.Stage(rec.Stage),
		Version:         rec.Version,
		CancelRequested: rec.CancelRequested,
		LastError:       rec.LastError,
		RunAfter:        time.Unix(0, rec.RunAfterNs),
		CreatedAt:       time.Unix(0, rec.CreatedAtNs),
		UpdatedAt:       time.Unix(0, rec.UpdatedAtNs),
	}
	if err := decodeBody(rec.Body, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *RedisInstanceStore) CreateInstance(ctx context.Context, inst *api.Instance) error {
	inst.Version = 1
	data, err := encodeRedisRecord(inst)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.keyOrder(inst.OrderID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return api.ErrDuplicateOrder
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, s.keyAll(), inst.OrderID)
	pipe.SAdd(ctx, s.keyStatus(inst.Status), inst.OrderID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisInstanceStore) GetInstance(ctx context.Context, orderID string) (*api.Instance, error) {
	data, err := s.client.Get(ctx, s.keyOrder(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, api.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRedisRecord(data)
}

func (s *RedisInstanceStore) UpdateInstance(ctx context.Context, inst *api.Instance, expectedVersion int64) error {
	key := s.keyOrder(inst.OrderID)
	now := time.Now()

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return api.ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		stored, err := decodeRedisRecord(data)
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return api.ErrVersionConflict
		}

		next := inst.Clone()
		next.Version = expectedVersion + 1
		next.UpdatedAt = now
		newData, err := encodeRedisRecord(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, 0)
			if stored.Status != inst.Status {
				pipe.SRem(ctx, s.keyStatus(stored.Status), inst.OrderID)
				pipe.SAdd(ctx, s.keyStatus(inst.Status), inst.OrderID)
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Another writer touched the key between our read and the commit.
		return api.ErrVersionConflict
	}
	if err != nil {
		return err
	}

	inst.Version = expectedVersion + 1
	inst.UpdatedAt = now
	return nil
}

func (s *RedisInstanceStore) ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.Instance, error) {
	idxKey := s.keyAll()
	if filter.Status != "" {
		idxKey = s.keyStatus(filter.Status)
	}
	ids, err := s.client.SMembers(ctx, idxKey).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchAll(ctx, ids)
}

func (s *RedisInstanceStore) ListRunnable(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]string, error) {
	// The status indexes keep the candidate set small; time filtering
	// happens client-side on the decoded records.
	ids, err := s.client.SUnion(ctx,
		s.keyStatus(api.StatusPending),
		s.keyStatus(api.StatusCompensating),
		s.keyStatus(api.StatusRunning),
	).Result()
	if err != nil {
		return nil, err
	}

	instances, err := s.fetchAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	var candidates []*api.Instance
	for _, inst := range instances {
		if runnable(inst, now, staleAfter) {
			candidates = append(candidates, inst)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt)
	})

	out := make([]string, 0, len(candidates))
	for _, inst := range candidates {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, inst.OrderID)
	}
	return out, nil
}

func (s *RedisInstanceStore) DeleteInstance(ctx context.Context, orderID string) error {
	inst, err := s.GetInstance(ctx, orderID)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.keyOrder(orderID))
	pipe.SRem(ctx, s.keyAll(), orderID)
	pipe.SRem(ctx, s.keyStatus(inst.Status), orderID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisInstanceStore) fetchAll(ctx context.Context, ids []string) ([]*api.Instance, error) {
	var instances []*api.Instance
	for _, id := range ids {
		inst, err := s.GetInstance(ctx, id)
		if errors.Is(err, api.ErrOrderNotFound) {
			// Index entry outlived the record; skip.
			continue
		}
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}
