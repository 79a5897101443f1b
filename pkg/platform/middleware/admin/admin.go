package admin

import (
	"context"
	"log/slog"
	"net/http"

	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/httputil"
	request "chimera/pkg/platform/middleware/request"
	"chimera/pkg/requestcontext"
)

// AccessControl reports whether an address holds the admin role.
type AccessControl interface {
	IsAdmin(ctx context.Context, addr id.Address) (bool, error)
}

// RequireAdmin rejects callers without the admin role. It must run after
// auth.RequireAuth so the caller is in the context.
func RequireAdmin(access AccessControl, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := requestcontext.Caller(ctx)
			if caller.IsZero() {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			ok, err := access.IsAdmin(ctx, caller)
			if err != nil {
				logger.ErrorContext(ctx, "admin lookup failed",
					"request_id", request.GetRequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "admin lookup failed"))
				return
			}
			if !ok {
				logger.WarnContext(ctx, "admin route denied",
					"request_id", request.GetRequestID(ctx),
					"caller", caller,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
