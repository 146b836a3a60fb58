package jobsculpt

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:"

// RedisRevocationStore shares the denylist across instances. Each entry is
// a key with TTL equal to the remaining token lifetime.
type RedisRevocationStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ RevocationStore = (*RedisRevocationStore)(nil)

// NewRedisRevocationStore wraps client
func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{
		client: client,
		prefix: revokedKeyPrefix,
		now:    time.Now,
	}
}

// WithClock overrides the clock used to compute entry TTLs
func (r *RedisRevocationStore) WithClock(now func() time.Time) *RedisRevocationStore {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrTokenMalformed
	}

	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	// redis expirations have second resolution
	if ttl < time.Second {
		ttl = time.Second
	}

	if err := r.client.Set(ctx, r.prefix+tokenID, 1, ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke token")
	}
	return nil
}

// RevokeOnce claims tokenID with SET NX so only one caller wins
func (r *RedisRevocationStore) RevokeOnce(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrTokenMalformed
	}

	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return true, nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := r.client.SetNX(ctx, r.prefix+tokenID, 1, ttl).Result()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke token")
	}
	return ok, nil
}

func (r *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, r.prefix+tokenID).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check token revocation")
}
