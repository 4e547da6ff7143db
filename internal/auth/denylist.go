package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist tracks revoked credential IDs in Redis until their natural expiry.
type Denylist struct {
	rdb *redis.Client
}

// NewDenylist constructs a denylist.
func NewDenylist(rdb *redis.Client) *Denylist {
	return &Denylist{rdb: rdb}
}

func denylistKey(jti string) string {
	return "auth:denylist:" + jti
}

// Revoke marks a credential ID as unusable for the remaining lifetime.
func (d *Denylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, denylistKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether a credential ID has been revoked.
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := d.rdb.Get(ctx, denylistKey(jti)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
