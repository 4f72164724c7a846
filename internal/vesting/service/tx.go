package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "custody/pkg/domain"
	dErrors "custody/pkg/domain-errors"
)

// CustodianTx serializes mutations of one custodian. fn receives the context
// it must pass to every store, ledger and audit call so a database-backed
// implementation can carry its transaction.
type CustodianTx interface {
	RunInTx(ctx context.Context, custodianID id.CustodianID, fn func(ctx context.Context) error) error
}

// numCustodianShards bounds lock memory while keeping unrelated custodians
// from contending.
const numCustodianShards = 128

const defaultCustodianTxTimeout = 5 * time.Second

// shardedCustodianTx is the in-memory CustodianTx. Operations on the same
// custodian always hash to the same shard and run one at a time.
type shardedCustodianTx struct {
	shards  [numCustodianShards]sync.Mutex
	timeout time.Duration
}

func newShardedCustodianTx() *shardedCustodianTx {
	return &shardedCustodianTx{timeout: defaultCustodianTxTimeout}
}

func (t *shardedCustodianTx) RunInTx(ctx context.Context, custodianID id.CustodianID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := shardFor(custodianID)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

func shardFor(custodianID id.CustodianID) int {
	h := fnv.New32a()
	_, _ = h.Write(custodianID[:])
	return int(h.Sum32() % numCustodianShards)
}
