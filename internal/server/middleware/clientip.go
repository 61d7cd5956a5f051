package middleware

import (
	"net/http"
	"strings"
)

// UnknownClient is the identity used when no client header is present. All
// such requests share one rate-limit bucket.
const UnknownClient = "unknown"

// ClientKey derives the client identity from proxy headers, in order:
// CF-Connecting-IP, X-Real-IP, the first X-Forwarded-For element, X-Client-IP.
// The headers are trusted as set by the fronting proxy.
func ClientKey(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		first, _, _ := strings.Cut(v, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-Client-IP")); v != "" {
		return v
	}
	return UnknownClient
}
