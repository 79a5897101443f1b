// Package genesis derives the attributes of a freshly minted record.
//
// Each attribute is Keccak-256(seed || uint256(id) || label) read as a
// big-endian integer, reduced modulo 100. The output depends only on the
// seed and the id, so tests can reproduce it exactly. The default seed is a
// timestamp, which anyone can predict before the mint executes.
package genesis

import (
	"encoding/binary"
	"math/big"
	"time"

	"golang.org/x/crypto/sha3"

	"chimera/internal/creature/models"
	"chimera/internal/creature/render"
	id "chimera/pkg/domain"
)

const wordSize = 32

var modulus = big.NewInt(models.MaxGeneratedValue + 1)

// Generate returns the attributes for record id, with the visual rendered
// for a merge count of zero.
func Generate(seed []byte, recordID id.RecordID) models.AttributeSet {
	attrs := models.AttributeSet{
		Strength:     Roll(seed, recordID, models.LabelStrength),
		Speed:        Roll(seed, recordID, models.LabelSpeed),
		Intelligence: Roll(seed, recordID, models.LabelIntelligence),
		Rarity:       Roll(seed, recordID, models.LabelRarity),
	}
	attrs.Visual = render.SVG(attrs, 0)
	return attrs
}

// Roll derives a single attribute value in [0, 99].
func Roll(seed []byte, recordID id.RecordID, label string) uint64 {
	h := sha3.NewLegacyKeccak256()
	h.Write(seed)
	h.Write(word(uint64(recordID)))
	h.Write([]byte(label))
	digest := new(big.Int).SetBytes(h.Sum(nil))
	return digest.Mod(digest, modulus).Uint64()
}

// ClockSeed encodes t as a 32-byte big-endian word of unix seconds.
func ClockSeed(t time.Time) []byte {
	return word(uint64(t.Unix()))
}

func word(v uint64) []byte {
	b := make([]byte, wordSize)
	binary.BigEndian.PutUint64(b[wordSize-8:], v)
	return b
}
