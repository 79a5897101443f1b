package handler

import (
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
)

// MintRequest is the HTTP request body for POST /creatures.
type MintRequest struct {
	To      string `json:"to,omitempty"`
	Payment uint64 `json:"payment"`

	parsedTo id.Address
}

// Validate parses the optional recipient. An empty recipient means the caller.
func (r *MintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.To == "" {
		return nil
	}
	to, err := id.ParseAddress(r.To)
	if err != nil {
		return err
	}
	r.parsedTo = to
	return nil
}

// Recipient returns the parsed recipient, falling back to caller.
func (r *MintRequest) Recipient(caller id.Address) id.Address {
	if r.parsedTo.IsZero() {
		return caller
	}
	return r.parsedTo
}

// MergeRequest is the HTTP request body for POST /creatures/merge.
type MergeRequest struct {
	ID1     *uint64 `json:"id1"`
	ID2     *uint64 `json:"id2"`
	Payment uint64  `json:"payment"`
}

// Validate requires both ids. Equal ids are left to the registry so the
// same_record code is reported from one place.
func (r *MergeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.ID1 == nil || r.ID2 == nil {
		return dErrors.New(dErrors.CodeValidation, "id1 and id2 are required")
	}
	return nil
}

// TransferRequest is the HTTP request body for POST /creatures/{id}/transfer.
type TransferRequest struct {
	To string `json:"to"`

	parsedTo id.Address
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	to, err := id.ParseAddress(r.To)
	if err != nil {
		return err
	}
	r.parsedTo = to
	return nil
}

// SetMergeFeeRequest is the HTTP request body for PUT /admin/merge-fee.
type SetMergeFeeRequest struct {
	MergeFee *uint64 `json:"merge_fee"`
}

func (r *SetMergeFeeRequest) Validate() error {
	if r == nil || r.MergeFee == nil {
		return dErrors.New(dErrors.CodeValidation, "merge_fee is required")
	}
	return nil
}
