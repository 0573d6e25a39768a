package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingMarker claims a key before its response exists. It can never be
// mistaken for a stored response because responses are JSON objects.
const pendingMarker = "pending"

type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// Reserve atomically claims key with SETNX. Exactly one of the concurrent
// callers gets claimed=true and owns the key until Store or Release. For the
// rest, stored is the previously saved response, or nil when the winning
// request is still in flight.
func (i *Idempotency) Reserve(ctx context.Context, key string, ttl time.Duration) (claimed bool, stored []byte, err error) {
	ok, err := i.client.SetNX(ctx, "idemp:"+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}

	val, err := i.client.Get(ctx, "idemp:"+key).Bytes()
	if err == redis.Nil {
		// Key vanished between SETNX and GET; treat as in flight, the
		// caller retries with the same key.
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if string(val) == pendingMarker {
		return false, nil, nil
	}
	return false, val, nil
}

// Store replaces the pending marker with the response to replay.
func (i *Idempotency) Store(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return i.client.Set(ctx, "idemp:"+key, data, ttl).Err()
}

// Release frees a claimed key so the client can retry after a failure.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.client.Del(ctx, "idemp:"+key).Err()
}
