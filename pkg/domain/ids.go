// Package domain holds the identifier and value types shared across the
// registry, its collaborators and the transport layer.
package domain

import (
	"encoding/hex"
	"strconv"
	"strings"

	dErrors "chimera/pkg/domain-errors"
)

// RecordID identifies a creature record. IDs are allocated from a
// monotonically increasing counter and never reused.
type RecordID uint64

func (id RecordID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseRecordID parses a decimal record identifier.
func ParseRecordID(s string) (RecordID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "record id is required")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, "record id must be a non-negative integer")
	}
	return RecordID(v), nil
}

// Address identifies a holder: "0x" followed by 40 lowercase hex digits.
type Address string

const addressHexLen = 40

// ParseAddress validates and normalizes a holder address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "address is required")
	}
	body, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok || len(body) != addressHexLen {
		return "", dErrors.New(dErrors.CodeValidation, "address must be 0x followed by 40 hex digits")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "address must be 0x followed by 40 hex digits")
	}
	return Address("0x" + body), nil
}

func (a Address) String() string {
	return string(a)
}

func (a Address) IsZero() bool {
	return a == ""
}

// Amount is a payment value in the ledger's smallest unit.
type Amount uint64
