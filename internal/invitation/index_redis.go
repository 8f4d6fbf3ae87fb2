package invitation

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	id "firmo/pkg/domain"
)

// activeKeyPrefix namespaces the per-pair active-invitation markers.
const activeKeyPrefix = "invitation:active:"

// RedisActiveIndex marks one active invitation per (contract, email) pair
// with SETNX, so concurrent creates across instances agree on a single
// winner before the store is even consulted. The store-level uniqueness
// check remains authoritative; the index is a fast path.
type RedisActiveIndex struct {
	client *redis.Client
}

func NewRedisActiveIndex(client *redis.Client) *RedisActiveIndex {
	return &RedisActiveIndex{client: client}
}

// Claim marks the pair's active slot. It reports whether this caller won
// the slot; false means an active invitation already holds it.
func (i *RedisActiveIndex) Claim(ctx context.Context, contractID id.ContractID, email string, ttl time.Duration) (bool, error) {
	return i.client.SetNX(ctx, activeKey(contractID, email), "1", ttl).Result()
}

// Release frees the pair's active slot after the invitation is redeemed or
// invalidated.
func (i *RedisActiveIndex) Release(ctx context.Context, contractID id.ContractID, email string) error {
	return i.client.Del(ctx, activeKey(contractID, email)).Err()
}

func activeKey(contractID id.ContractID, email string) string {
	return activeKeyPrefix + contractID.String() + ":" + strings.ToLower(email)
}
