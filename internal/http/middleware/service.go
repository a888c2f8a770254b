package middleware

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"transport-dispatch/internal/logx"
)

// ServiceTokenHeader carries the shared secret of the order service.
const ServiceTokenHeader = "X-Service-Token"

// ServiceToken is the secret that admits order service calls. Empty disables
// the internal routes.
type ServiceToken string

// RequireService admits only order service calls. Requests carrying a
// transporter identity get 403, a missing or wrong token gets 401.
func RequireService(logger logx.Logger, token ServiceToken) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get(TransporterHeader)) != "" {
				logger.Warn("transporter call to internal route",
					logx.String("method", r.Method),
					logx.String("path", r.URL.Path),
				)
				writeDenied(logger, w, http.StatusForbidden,
					`{"success":false,"error":{"code":"forbidden","message":"internal route"}}`)
				return
			}
			got := r.Header.Get(ServiceTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Warn("service token rejected",
					logx.String("method", r.Method),
					logx.String("path", r.URL.Path),
				)
				writeDenied(logger, w, http.StatusUnauthorized,
					`{"success":false,"error":{"code":"unauthorized","message":"service token required"}}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(logger logx.Logger, w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		logger.Debug("denied response write failed", logx.Err(err))
	}
}
