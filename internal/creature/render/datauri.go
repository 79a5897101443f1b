package render

import (
	"encoding/base64"
	"errors"
	"strings"
)

const (
	MediaTypeSVG  = "image/svg+xml"
	MediaTypeJSON = "application/json"
)

// ErrMalformedDataURI is returned for strings that are not base64 data URIs.
var ErrMalformedDataURI = errors.New("malformed data uri")

func encodeDataURI(mediaType string, payload []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

// DecodeDataURI splits a base64 data URI into its media type and payload.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrMalformedDataURI
	}
	mediaType, encoded, ok := strings.Cut(rest, ";base64,")
	if !ok || mediaType == "" {
		return "", nil, ErrMalformedDataURI
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, errors.Join(ErrMalformedDataURI, err)
	}
	return mediaType, payload, nil
}
