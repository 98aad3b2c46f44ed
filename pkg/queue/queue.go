// Package queue provides the at-least-once notification channel used by the
// fulfillment workflow. Notifications published here are consumed by whatever
// delivers customer email; duplicates are possible under redelivery and
// consumers must tolerate them.
package queue

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"
)

// Notification is a single customer-facing message about an order.
type Notification struct {
	// ID is a unique message id, assigned by the publisher.
	ID string

	OrderID string
	Email   string
	Message string

	SentAt time.Time
}

// Queue is the notification transport contract.
type Queue interface {
	// Publish enqueues a notification. Delivery is at-least-once.
	Publish(ctx context.Context, n Notification) error

	// Consume blocks until a notification is available or ctx is cancelled.
	Consume(ctx context.Context) (*Notification, error)

	// Len returns the approximate number of queued notifications.
	Len() int
}

// EncodeNotification serializes a notification with gob.
func EncodeNotification(n Notification) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeNotification deserializes a notification encoded with
// EncodeNotification.
func DecodeNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&n); err != nil {
		return nil, err
	}
	return &n, nil
}
