package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pantrypal/users-api/internal/api/respond"
)

// DefaultHeader is the header checked when none is configured.
const DefaultHeader = "X-API-Key"

// APIKeyMiddleware rejects requests whose header does not carry the shared key.
// The check runs before any handler, so unauthorized calls never reach the store.
func APIKeyMiddleware(header, key string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultHeader
	}
	expected := []byte(key)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(header)
			if provided == "" || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				log.Warn().
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Bool("header_present", provided != "").
					Msg("Rejected request with invalid API key")
				respond.Error(w, http.StatusUnauthorized, "Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
