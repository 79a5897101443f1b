// Package render turns records into self-contained data URIs: an SVG image
// for the visual and a JSON metadata document that embeds it.
//
// Everything here is pure and deterministic. The same attributes and merge
// count always produce byte-identical output.
package render
