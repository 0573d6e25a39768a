package idempotency

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the key reservation backend. Reserve must be atomic: of any set
// of concurrent callers with the same key, exactly one gets claimed=true.
type Store interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (claimed bool, stored []byte, err error)
	Store(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// Idempotency replays the stored response for a previously seen
// Idempotency-Key instead of re-running the mutation. A key is reserved
// before the mutation runs, so a retried request that races its original
// cannot execute the mutation twice.
type Idempotency struct {
	store Store
	ttl   time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

// Begin claims key for the caller. On claimed=true the caller must call
// Finish after a successful mutation or Abort after a failed one. Otherwise
// replay carries the saved response, or nil when the original request is
// still in flight.
func (i *Idempotency) Begin(ctx context.Context, key string) (claimed bool, replay *Response, err error) {
	claimed, stored, err := i.store.Reserve(ctx, key, i.ttl)
	if err != nil || stored == nil {
		return claimed, nil, err
	}
	var resp Response
	if err := json.Unmarshal(stored, &resp); err != nil {
		return false, nil, err
	}
	return false, &resp, nil
}

// Finish records the response to replay for later requests with the same key.
func (i *Idempotency) Finish(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.store.Store(ctx, key, data, i.ttl)
}

// Abort releases the key so the client can retry the mutation.
func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.store.Release(ctx, key)
}
