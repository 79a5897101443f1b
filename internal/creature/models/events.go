package models

import (
	id "chimera/pkg/domain"
)

// RecordMinted is published after a fresh record is stored.
type RecordMinted struct {
	ID         id.RecordID  `json:"id"`
	Owner      id.Address   `json:"owner"`
	Attributes AttributeSet `json:"attributes"`
}

// RecordsMerged is published after two parents are retired and their child
// stored.
type RecordsMerged struct {
	NewID      id.RecordID  `json:"new_id"`
	ID1        id.RecordID  `json:"id1"`
	ID2        id.RecordID  `json:"id2"`
	Attributes AttributeSet `json:"attributes"`
	MergeCount uint64       `json:"merge_count"`
}

type MergeFeeUpdated struct {
	NewFee id.Amount `json:"new_fee"`
}

type BalanceWithdrawn struct {
	To     id.Address `json:"to"`
	Amount id.Amount  `json:"amount"`
}

type RecordTransferred struct {
	ID   id.RecordID `json:"id"`
	From id.Address  `json:"from"`
	To   id.Address  `json:"to"`
}
