package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueuePublishConsume(t *testing.T) {
	q := NewInMemoryQueue(4)
	ctx := context.Background()

	sent := Notification{
		ID:      "msg-1",
		OrderID: "order-1",
		Email:   "buyer@example.com",
		Message: "Your order has been successfully processed!",
		SentAt:  time.Now(),
	}
	require.NoError(t, q.Publish(ctx, sent))
	assert.Equal(t, 1, q.Len())

	got, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, sent.OrderID, got.OrderID)
	assert.Equal(t, sent.Message, got.Message)
	assert.Equal(t, 0, q.Len())
}

func TestInMemoryQueueConsumeRespectsContext(t *testing.T) {
	q := NewInMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Consume(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotificationCodecRoundTrip(t *testing.T) {
	n := Notification{
		ID:      "msg-1",
		OrderID: "order-1",
		Email:   "buyer@example.com",
		Message: "hello",
		SentAt:  time.Now().Truncate(time.Millisecond),
	}

	data, err := EncodeNotification(n)
	require.NoError(t, err)

	got, err := DecodeNotification(data)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.True(t, n.SentAt.Equal(got.SentAt))
}
