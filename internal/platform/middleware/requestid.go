package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"registrar/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries a correlation ID: the inbound
// header when present, a fresh UUID otherwise. The ID goes into the
// context and is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
