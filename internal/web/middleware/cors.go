// Package middleware holds HTTP middleware shared by the API server.
package middleware

import (
	"net/http"
	"os"
	"strings"
)

// allowedOrigins reads FACE_AUTH_ALLOWED_ORIGINS and returns the set of
// origins that may call the API from a browser.
func allowedOrigins() map[string]struct{} {
	origins := make(map[string]struct{})
	for _, o := range strings.Split(os.Getenv("FACE_AUTH_ALLOWED_ORIGINS"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

// originAllowed reports whether an origin should receive CORS headers.
// Localhost origins are always permitted for development convenience.
func originAllowed(origin string, allowed map[string]struct{}) bool {
	if origin == "" {
		return false
	}
	if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "https://localhost") {
		return true
	}
	_, ok := allowed[origin]
	return ok
}

// CORS returns middleware that handles CORS headers with an origin whitelist
// taken from the FACE_AUTH_ALLOWED_ORIGINS environment variable.
func CORS() func(http.Handler) http.Handler {
	allowed := allowedOrigins()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); originAllowed(origin, allowed) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
