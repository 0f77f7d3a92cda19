package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/actuallystonmai/measurement-service/internal/domain"
)

// RequireAPIKey rejects requests whose X-API-Key header does not match key.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-API-Key")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeEnvelope(w, domain.NewError(domain.AuthenticationError, "invalid_key",
					"Invalid or missing API key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
