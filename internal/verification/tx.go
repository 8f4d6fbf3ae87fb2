package verification

import (
	"context"
	"sync"
	"time"

	id "firmo/pkg/domain"
	dErrors "firmo/pkg/domain-errors"
)

// Atomic runs a function inside one atomic boundary scoped to a contract.
// Every store call the function makes commits or rolls back together: the
// Postgres implementation opens a transaction and threads it through ctx via
// pkg/platform/tx, the in-memory implementation serializes on a per-contract
// lock. Completion and its phase write always share one boundary.
type Atomic interface {
	RunInTx(ctx context.Context, contractID id.ContractID, fn func(ctx context.Context) error) error
}

// MemoryAtomic provides the atomic boundary for the in-memory stores using
// sharded mutexes. Operations are distributed across N shards by a hash of
// the contract ID, so unrelated contracts never contend while two operations
// on the same contract always serialize.
const numTxShards = 128

// defaultTxTimeout caps a transaction that arrives without a deadline.
const defaultTxTimeout = 5 * time.Second

type MemoryAtomic struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func NewMemoryAtomic() *MemoryAtomic {
	return &MemoryAtomic{}
}

func (a *MemoryAtomic) RunInTx(ctx context.Context, contractID id.ContractID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := a.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := shardForContract(contractID)
	a.shards[shard].Lock()
	defer a.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

func shardForContract(contractID id.ContractID) int {
	return int(fnvHash(contractID.String()) % numTxShards)
}

// fnvHash uses FNV-1a for better hash distribution than simple multiply-add.
func fnvHash(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
