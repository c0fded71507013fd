// Package middleware holds the HTTP middleware chain: request identity,
// admin authentication, request time.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"detour/pkg/requestcontext"
)

// HeaderRequestID is the inbound and outbound request ID header.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns every request an ID, honoring one supplied by the
// caller, and reflects it in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
