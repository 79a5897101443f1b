package render

import (
	"encoding/json"
	"errors"
	"fmt"

	"chimera/internal/creature/models"
)

const description = "A creature of the chimera registry. Merge two to breed a stronger one."

// Trait names in the order they appear in the metadata document.
const (
	TraitStrength     = "Strength"
	TraitSpeed        = "Speed"
	TraitIntelligence = "Intelligence"
	TraitRarity       = "Rarity"
	TraitMergeCount   = "Merge Count"
)

// Trait is one entry of the metadata attributes list.
type Trait struct {
	TraitType string `json:"trait_type"`
	Value     uint64 `json:"value"`
}

// Document is the decoded form of a metadata data URI.
type Document struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Attributes  []Trait `json:"attributes"`
}

var errNilRecord = errors.New("render metadata: nil record")

// NewDocument composes the metadata document for a record. The image is the
// record's cached visual; it is not re-rendered.
func NewDocument(record *models.Record) Document {
	a := record.Attributes
	return Document{
		Name:        fmt.Sprintf("Creature #%d", record.ID),
		Description: description,
		Image:       a.Visual,
		Attributes: []Trait{
			{TraitType: TraitStrength, Value: a.Strength},
			{TraitType: TraitSpeed, Value: a.Speed},
			{TraitType: TraitIntelligence, Value: a.Intelligence},
			{TraitType: TraitRarity, Value: a.Rarity},
			{TraitType: TraitMergeCount, Value: record.MergeCount},
		},
	}
}

// Metadata renders the record as a data:application/json;base64 URI.
func Metadata(record *models.Record) (string, error) {
	if record == nil {
		return "", errNilRecord
	}
	payload, err := json.Marshal(NewDocument(record))
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return encodeDataURI(MediaTypeJSON, payload), nil
}

// DecodeMetadata parses a metadata data URI back into a Document.
func DecodeMetadata(uri string) (Document, error) {
	mediaType, payload, err := DecodeDataURI(uri)
	if err != nil {
		return Document{}, err
	}
	if mediaType != MediaTypeJSON {
		return Document{}, fmt.Errorf("%w: unexpected media type %q", ErrMalformedDataURI, mediaType)
	}
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Document{}, fmt.Errorf("decode metadata: %w", err)
	}
	return doc, nil
}
