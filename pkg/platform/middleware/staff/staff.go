// Package staff guards instructor-only routes (open/close sessions, amend
// records, rosters) with a shared staff token.
package staff

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// HeaderName carries the staff token.
const HeaderName = "X-Staff-Token"

// RequireStaffToken rejects requests whose token does not match expected.
// An empty expected token disables the guard (development mode).
func RequireStaffToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := r.Header.Get(HeaderName)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "staff token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "staff token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
