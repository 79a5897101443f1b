package render

import "encoding/hex"

// colorModulus reduces attribute values before they are encoded as colors.
// It is 0xffffff, not 0x1000000, so 16_777_215 wraps to black.
const colorModulus = 16_777_215

// ColorHex encodes v as a lowercase 6-digit hex color without the leading '#'.
func ColorHex(v uint64) string {
	r := v % colorModulus
	b := [3]byte{byte(r >> 16), byte(r >> 8), byte(r)}
	return hex.EncodeToString(b[:])
}
