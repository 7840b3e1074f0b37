package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/boostmarket/paywebhook/internal/handler"
	"github.com/boostmarket/paywebhook/internal/logging"
)

// Recovery answers panics on the JSON API routes. Webhook handlers recover on
// their own so they can answer in the gateway's envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log := logging.FromContext(r.Context())
				log.Error("panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
