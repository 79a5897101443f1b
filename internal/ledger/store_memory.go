package ledger

import (
	"context"
	"math"
	"sync"
	"time"

	id "chimera/pkg/domain"
	"chimera/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.Mutex
	entries []Entry
	balance id.Amount
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (l *InMemory) Credit(_ context.Context, account id.Address, amount id.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance > math.MaxUint64-amount {
		return sentinel.ErrInvalidState
	}
	l.entries = append(l.entries, Entry{Account: account, Amount: amount, Kind: KindCredit, CreatedAt: time.Now()})
	l.balance += amount
	return nil
}

// Reverse cancels an earlier credit. It fails with ErrInvalidState when the
// balance no longer covers the amount.
func (l *InMemory) Reverse(_ context.Context, account id.Address, amount id.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount > l.balance {
		return sentinel.ErrInvalidState
	}
	l.entries = append(l.entries, Entry{Account: account, Amount: amount, Kind: KindReversal, CreatedAt: time.Now()})
	l.balance -= amount
	return nil
}

func (l *InMemory) Balance(_ context.Context) (id.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, nil
}

// Withdraw drains the whole balance to `to`. An empty balance pays out zero
// and books nothing.
func (l *InMemory) Withdraw(_ context.Context, to id.Address) (id.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	amount := l.balance
	if amount == 0 {
		return 0, nil
	}
	l.entries = append(l.entries, Entry{Account: to, Amount: amount, Kind: KindWithdrawal, CreatedAt: time.Now()})
	l.balance = 0
	return amount, nil
}

// Entries returns a copy of the booked entries in order.
func (l *InMemory) Entries(_ context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...), nil
}
