package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis holds short-lived table locks so two booking requests racing for the
// same table serialize before either opens a database transaction. The lock
// expires on its own; the database transaction remains the source of truth.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{Client: client, TTL: ttl}
}

// LockTable takes the table lock for the given booking attempt. Returns false
// when another attempt currently holds it.
func (r *Redis) LockTable(ctx context.Context, tableID, owner string) (bool, error) {
	key := "table_lock:" + tableID
	return r.Client.SetNX(ctx, key, owner, r.TTL).Result()
}

// UnlockTable releases the lock if this attempt still owns it. A lock that
// expired or was taken over by another owner is left alone.
func (r *Redis) UnlockTable(ctx context.Context, tableID, owner string) error {
	key := "table_lock:" + tableID
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err = r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// IsTableLocked reports whether the table lock is currently held, without
// taking it.
func (r *Redis) IsTableLocked(ctx context.Context, tableID string) (bool, error) {
	_, err := r.Client.Get(ctx, "table_lock:"+tableID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
