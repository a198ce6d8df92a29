package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"registrar/pkg/requestcontext"
)

// ClientMetadata captures the caller's IP and a parsed User-Agent summary
// into the context for audit logging.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		ua := useragent.New(r.UserAgent())
		name, version := ua.Browser()
		summary := strings.TrimSpace(name + " " + version)
		if ua.OS() != "" {
			summary = strings.TrimSpace(summary + " (" + ua.OS() + ")")
		}

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, summary)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the original client.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
