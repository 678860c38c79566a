// Package idempotency replays the first response of a retried mutating
// request identified by its Idempotency-Key header.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrInFlight is returned when another request with the same key has not
// finished yet.
var ErrInFlight = errors.New("idempotency: request with this key is in flight")

// Record is a stored response.
type Record struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Store reserves keys and keeps completed responses until their TTL passes.
type Store interface {
	// Reserve claims key for the caller. When a completed record exists it is
	// returned instead; when the key is reserved but unfinished, ErrInFlight.
	Reserve(ctx context.Context, key string, ttl time.Duration) (*Record, error)
	// Complete stores the response for a reserved key.
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}
