package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "chimera/pkg/domain"
	"chimera/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) { return v.claims, v.err }

type stubRevocation struct {
	revoked bool
	err     error
}

func (c stubRevocation) IsTokenRevoked(context.Context, string) (bool, error) {
	return c.revoked, c.err
}

const holder = "0x00000000000000000000000000000000000000a1"

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	valid := &JWTClaims{Address: holder, JTI: "jti-1"}

	cases := []struct {
		name       string
		header     string
		validator  JWTValidator
		revocation TokenRevocationChecker
		wantStatus int
	}{
		{name: "missing header", validator: stubValidator{claims: valid}, wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", validator: stubValidator{claims: valid}, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", validator: stubValidator{err: errors.New("bad")}, wantStatus: http.StatusUnauthorized},
		{name: "subject not an address", header: "Bearer t", validator: stubValidator{claims: &JWTClaims{Address: "alice"}}, wantStatus: http.StatusUnauthorized},
		{name: "revoked", header: "Bearer t", validator: stubValidator{claims: valid}, revocation: stubRevocation{revoked: true}, wantStatus: http.StatusUnauthorized},
		{name: "revocation lookup fails", header: "Bearer t", validator: stubValidator{claims: valid}, revocation: stubRevocation{err: errors.New("down")}, wantStatus: http.StatusInternalServerError},
		{name: "valid", header: "Bearer t", validator: stubValidator{claims: valid}, revocation: stubRevocation{}, wantStatus: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var caller id.Address
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				caller = requestcontext.Caller(r.Context())
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			RequireAuth(tc.validator, tc.revocation, logger)(next).ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, id.Address(holder), caller)
			} else {
				assert.True(t, caller.IsZero())
			}
		})
	}
}
