// Package merge combines the attributes of two parent records.
//
// The arithmetic is integer floor division applied in a fixed order; the
// intermediate rounding is part of the contract, so existing records can be
// reproduced bit for bit. Results are not clamped: two strong parents yield
// a child above the generator's 0..99 range.
package merge

import "chimera/internal/creature/models"

// Combine blends two attribute values: 60% of the higher plus 40% of the
// lower, then a 5% boost.
func Combine(a, b uint64) uint64 {
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	base := (hi*6 + lo*4) / 10
	return base * 105 / 100
}

// CombineSets applies Combine to each attribute independently. The Visual
// field is left empty; the caller renders it with the child's merge count.
func CombineSets(a, b models.AttributeSet) models.AttributeSet {
	return models.AttributeSet{
		Strength:     Combine(a.Strength, b.Strength),
		Speed:        Combine(a.Speed, b.Speed),
		Intelligence: Combine(a.Intelligence, b.Intelligence),
		Rarity:       Combine(a.Rarity, b.Rarity),
	}
}
