// ABOUTME: CORS middleware for API cross-origin requests
// ABOUTME: Echoes only allow-listed origins and answers preflight requests

package middleware

import (
	"net/http"
	"slices"
)

// CORS returns middleware that allows cross-origin requests from the given
// origins. An empty list blocks all cross-origin browsers; "*" allows any.
// OPTIONS preflight requests are answered with 204 without calling next.
func CORS(allowedOrigins []string) func(http.HandlerFunc) http.HandlerFunc {
	allowAny := slices.Contains(allowedOrigins, "*")

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Add("Vary", "Origin")
				if allowAny || slices.Contains(allowedOrigins, origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
					w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next(w, r)
		}
	}
}
