// Package ledger books registry payments and pays out the accumulated balance.
package ledger

import (
	"time"

	id "chimera/pkg/domain"
)

type Kind string

const (
	KindCredit     Kind = "credit"
	KindWithdrawal Kind = "withdrawal"
	KindReversal   Kind = "reversal"
)

// Entry is one booked movement. Withdrawals record the payout address as
// the account. Reversals cancel a credit booked for an operation that did
// not commit.
type Entry struct {
	Account   id.Address `json:"account"`
	Amount    id.Amount  `json:"amount"`
	Kind      Kind       `json:"kind"`
	CreatedAt time.Time  `json:"created_at"`
}

// balanceOf folds entries into the outstanding balance.
func balanceOf(entries []Entry) id.Amount {
	var balance id.Amount
	for _, e := range entries {
		switch e.Kind {
		case KindCredit:
			balance += e.Amount
		case KindWithdrawal, KindReversal:
			balance -= e.Amount
		}
	}
	return balance
}
