package render

import (
	"fmt"

	"chimera/internal/creature/models"
)

// Canvas is the fixed width and height of every rendered image.
const Canvas = 400

// svgLayout draws, back to front: background (strength), centered circle
// (speed), centered triangle (intelligence) and the merge counter label.
const svgLayout = `<svg xmlns="http://www.w3.org/2000/svg" width="%[1]d" height="%[1]d" viewBox="0 0 %[1]d %[1]d">` +
	`<rect width="%[1]d" height="%[1]d" fill="#%[2]s"/>` +
	`<circle cx="200" cy="200" r="120" fill="#%[3]s"/>` +
	`<polygon points="200,110 290,266 110,266" fill="#%[4]s"/>` +
	`<text x="200" y="370" font-family="monospace" font-size="24" fill="#ffffff" text-anchor="middle">Merges: %[5]d</text>` +
	`</svg>`

// SVGMarkup returns the raw image markup. Rarity does not affect the image.
func SVGMarkup(attrs models.AttributeSet, mergeCount uint64) string {
	return fmt.Sprintf(svgLayout,
		Canvas,
		ColorHex(attrs.Strength),
		ColorHex(attrs.Speed),
		ColorHex(attrs.Intelligence),
		mergeCount,
	)
}

// SVG renders the image as a data:image/svg+xml;base64 URI.
func SVG(attrs models.AttributeSet, mergeCount uint64) string {
	return encodeDataURI(MediaTypeSVG, []byte(SVGMarkup(attrs, mergeCount)))
}
