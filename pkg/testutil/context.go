package testutil

import (
	"net/http"
	"time"

	"rollcall/pkg/requestcontext"
)

// WithRequestTime pins the request clock, as the request-time middleware
// would at the start of a request.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
