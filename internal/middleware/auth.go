package middleware

import (
	"crypto/subtle"
	"net/http"
)

// JobSecretHeader authenticates externally scheduled job triggers.
const JobSecretHeader = "X-Job-Secret"

// RequireJobSecret guards job-trigger endpoints with a static shared secret.
// Comparison is constant-time. A missing configured secret fails closed, so a
// deployment without the secret set cannot be triggered at all.
func RequireJobSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(JobSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
