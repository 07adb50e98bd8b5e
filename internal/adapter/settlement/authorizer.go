package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAuthorizer answers the signature predicate from a registry of attested
// offering hashes. The signing service verifies signatures off-platform and
// records "authsig:<hash>:<signer>" entries; an absent key means unapproved,
// never an error.
type RedisAuthorizer struct {
	rdb *redis.Client
}

func NewRedisAuthorizer(rdb *redis.Client) *RedisAuthorizer { return &RedisAuthorizer{rdb: rdb} }

func authKey(hash, signer string) string { return "authsig:" + hash + ":" + signer }

func (a *RedisAuthorizer) IsAuthorized(ctx context.Context, hash, signer string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := a.rdb.Get(ctx, authKey(hash, signer)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Attest records a verified signature so future commits against the offering
// pass the predicate.
func (a *RedisAuthorizer) Attest(ctx context.Context, hash, signer string) error {
	return a.rdb.Set(ctx, authKey(hash, signer), "1", 0).Err()
}
