package handler

import (
	"chimera/internal/creature/models"
	"chimera/internal/creature/service"
	id "chimera/pkg/domain"
)

// CreatureResponse is the JSON shape of a live record.
type CreatureResponse struct {
	ID           id.RecordID `json:"id"`
	Owner        id.Address  `json:"owner,omitempty"`
	Strength     uint64      `json:"strength"`
	Speed        uint64      `json:"speed"`
	Intelligence uint64      `json:"intelligence"`
	Rarity       uint64      `json:"rarity"`
	MergeCount   uint64      `json:"merge_count"`
	Image        string      `json:"image"`
}

// FromRecord maps a record; owner may be zero when the caller already knows it.
func FromRecord(record *models.Record, owner id.Address) CreatureResponse {
	a := record.Attributes
	return CreatureResponse{
		ID:           record.ID,
		Owner:        owner,
		Strength:     a.Strength,
		Speed:        a.Speed,
		Intelligence: a.Intelligence,
		Rarity:       a.Rarity,
		MergeCount:   record.MergeCount,
		Image:        a.Visual,
	}
}

// FromCreature maps a record together with its holder.
func FromCreature(c *service.Creature) CreatureResponse {
	return FromRecord(c.Record, c.Owner)
}

type MetadataResponse struct {
	TokenURI string `json:"token_uri"`
}

type HoldingsResponse struct {
	Owner     id.Address    `json:"owner"`
	Creatures []id.RecordID `json:"creatures"`
}

type CountResponse struct {
	LiveCreatures int `json:"live_creatures"`
}

type MergeFeeResponse struct {
	MergeFee id.Amount `json:"merge_fee"`
}

type BalanceResponse struct {
	Balance id.Amount `json:"balance"`
}

type WithdrawResponse struct {
	Amount id.Amount `json:"amount"`
}
