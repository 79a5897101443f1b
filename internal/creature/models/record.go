package models

import (
	id "chimera/pkg/domain"
)

// Attribute labels feed the generator digest and name the metadata traits.
const (
	LabelStrength     = "strength"
	LabelSpeed        = "speed"
	LabelIntelligence = "intelligence"
	LabelRarity       = "rarity"
)

// MaxGeneratedValue is the inclusive upper bound of a freshly generated
// attribute. Merged attributes are not bounded by it.
const MaxGeneratedValue = 99

// AttributeSet holds the four numeric traits and the rendered visual.
// Visual is computed once when the record is created and cached here.
type AttributeSet struct {
	Strength     uint64 `json:"strength"`
	Speed        uint64 `json:"speed"`
	Intelligence uint64 `json:"intelligence"`
	Rarity       uint64 `json:"rarity"`
	Visual       string `json:"visual"`
}

// Record is a live creature.
//
// Invariants:
//   - ID is never reused, even after the record is retired
//   - MergeCount is 0 for minted records
//   - MergeCount of a merged record equals the parents' MergeCount sum plus one
//   - A retired record is removed from the store and never comes back
type Record struct {
	ID         id.RecordID  `json:"id"`
	Attributes AttributeSet `json:"attributes"`
	MergeCount uint64       `json:"merge_count"`
}

// NewMintedRecord builds a freshly generated record.
func NewMintedRecord(recordID id.RecordID, attrs AttributeSet) *Record {
	return &Record{ID: recordID, Attributes: attrs}
}

// ChildMergeCount returns the merge count a child of parent1 and parent2 carries.
func ChildMergeCount(parent1, parent2 *Record) uint64 {
	return parent1.MergeCount + parent2.MergeCount + 1
}

// NewMergedRecord builds the child of two parents from already combined attributes.
func NewMergedRecord(recordID id.RecordID, attrs AttributeSet, parent1, parent2 *Record) *Record {
	return &Record{
		ID:         recordID,
		Attributes: attrs,
		MergeCount: ChildMergeCount(parent1, parent2),
	}
}

// Clone returns a copy detached from the receiver.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
