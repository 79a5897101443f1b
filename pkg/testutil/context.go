package testutil

import (
	"net/http"
	"time"

	id "chimera/pkg/domain"
	"chimera/pkg/requestcontext"
)

// WithCaller adds a holder address to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the address does not parse, the request is returned unchanged.
func WithCaller(req *http.Request, addr string) *http.Request {
	parsed, err := id.ParseAddress(addr)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), parsed))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
