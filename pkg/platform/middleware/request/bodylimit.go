package request

import (
	"net/http"

	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/httputil"
)

// BodyLimit caps request bodies at maxBytes. A request whose declared
// Content-Length already exceeds the cap is refused with 413 before the
// handler runs; otherwise the body is wrapped so that reading past the cap
// fails and httputil.DecodeAndPrepare answers 413 itself.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, dErrors.New(dErrors.CodeTooLarge, "request body too large"))
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
