package queue

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a single Redis list.
//
// Key layout:
//
//	<prefix>notifications
//
// Values are gob-encoded Notification structs. LPUSH/BRPOP gives FIFO order
// with blocking consumers.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue constructs a Redis-backed Queue.
// prefix is optional but recommended (e.g. "sagaflow:").
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "sagaflow:"
	}
	return &RedisQueue{
		client: client,
		key:    prefix + "notifications",
	}
}

var _ Queue = (*RedisQueue)(nil)

func (q *RedisQueue) Publish(ctx context.Context, n Notification) error {
	data, err := EncodeNotification(n)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Consume blocks on BRPOP until a notification is available or ctx is
// cancelled.
func (q *RedisQueue) Consume(ctx context.Context) (*Notification, error) {
	// BRPop returns [key, value]
	res, err := q.client.BRPop(ctx, 0, q.key).Result()
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		slog.Warn("redis queue: BRPop returned unexpected result", slog.Int("len", len(res)))
		return nil, nil
	}
	return DecodeNotification([]byte(res[1]))
}

// Len returns the approximate queue depth (LLEN).
func (q *RedisQueue) Len() int {
	n, err := q.client.LLen(context.Background(), q.key).Result()
	if err != nil {
		slog.Warn("redis queue: LLEN failed", slog.Any("error", err))
		return 0
	}
	return int(n)
}
