package ledger

import (
	"context"
	"sync"

	id "custody/pkg/domain"
	"custody/pkg/platform/sentinel"
)

type holding struct {
	asset   id.AssetID
	account id.AccountID
}

// InMemory is a process-local ledger used by tests and single-node
// deployments.
type InMemory struct {
	mu       sync.RWMutex
	balances map[holding]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[holding]uint64)}
}

// Mint credits amount of asset to account out of thin air.
func (l *InMemory) Mint(_ context.Context, asset id.AssetID, account id.AccountID, amount uint64) error {
	if account.IsNil() {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(holding{asset: asset, account: account}, amount)
}

func (l *InMemory) BalanceOf(_ context.Context, asset id.AssetID, account id.AccountID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[holding{asset: asset, account: account}], nil
}

// Transfer moves amount from one account to another. It either applies in
// full or not at all.
func (l *InMemory) Transfer(_ context.Context, asset id.AssetID, from, to id.AccountID, amount uint64) error {
	if to.IsNil() {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	src := holding{asset: asset, account: from}
	if l.balances[src] < amount {
		return sentinel.ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	dst := holding{asset: asset, account: to}
	if MaxBalance-l.balances[dst] < amount {
		return ErrOverflow
	}
	l.balances[src] -= amount
	l.balances[dst] += amount
	return nil
}

func (l *InMemory) credit(h holding, amount uint64) error {
	if MaxBalance-l.balances[h] < amount {
		return ErrOverflow
	}
	l.balances[h] += amount
	return nil
}
