package models

import (
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
)

// MintRequest asks the registry to create a fresh record for To. Payer is
// the account credited with Payment and defaults to To.
type MintRequest struct {
	To      id.Address
	Payer   id.Address
	Payment id.Amount
}

// PayingAccount returns the account the payment is booked against.
func (r *MintRequest) PayingAccount() id.Address {
	if r.Payer.IsZero() {
		return r.To
	}
	return r.Payer
}

// Validate checks the request shape. Payment is accepted as-is.
func (r *MintRequest) Validate() error {
	if r.To.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "recipient address is required")
	}
	return nil
}

// MergeRequest asks the registry to consume ID1 and ID2 and produce a child
// owned by Caller.
type MergeRequest struct {
	ID1     id.RecordID
	ID2     id.RecordID
	Caller  id.Address
	Payment id.Amount
}

// Validate runs the argument-only checks. Merging a record with itself is
// rejected here, before fee or ownership are looked at.
func (r *MergeRequest) Validate() error {
	if r.Caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller address is required")
	}
	if r.ID1 == r.ID2 {
		return dErrors.New(dErrors.CodeSameRecord, "cannot merge a record with itself")
	}
	return nil
}

// TransferRequest moves a live record from its current holder to To.
type TransferRequest struct {
	ID     id.RecordID
	Caller id.Address
	To     id.Address
}

func (r *TransferRequest) Validate() error {
	if r.Caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller address is required")
	}
	if r.To.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "recipient address is required")
	}
	return nil
}
