package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock is a single-holder lease on a Redis key.
type Lock struct {
	client *redis.Client
	key    string
	owner  string
}

// TryLock acquires key for ttl. It returns (nil, nil) when another holder owns it.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	owner := uuid.NewString()
	ok, err := c.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{client: c.Client, key: key, owner: owner}, nil
}

// Release gives up the lease if it is still held.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err()
}

// KeyLock is a reusable lease on one key, for periodic jobs that must run on a single instance.
type KeyLock struct {
	client *Client
	key    string
	ttl    time.Duration
}

// NewKeyLock returns a lease on key held for at most ttl per acquisition.
func (c *Client) NewKeyLock(key string, ttl time.Duration) *KeyLock {
	return &KeyLock{client: c, key: key, ttl: ttl}
}

// Acquire takes the lease. ok is false when another instance holds it.
func (k *KeyLock) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	l, err := k.client.TryLock(ctx, k.key, k.ttl)
	if err != nil || l == nil {
		return nil, false, err
	}
	return func() { _ = l.Release(context.Background()) }, true, nil
}
