package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/boostmarket/paywebhook/internal/handler"
	"github.com/boostmarket/paywebhook/internal/logging"
)

// BearerToken admits requests whose Authorization header carries token. An
// empty token rejects every request, which keeps unconfigured endpoints closed.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			supplied, found := strings.CutPrefix(header, "Bearer ")
			if !found || supplied == "" || token == "" ||
				subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				logging.FromContext(r.Context()).Warn("rejected bearer token", "path", r.URL.Path)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
