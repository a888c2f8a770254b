package middleware

import (
	"context"
	"io"
	"net/http"
	"strings"

	"transport-dispatch/internal/logx"
)

// TransporterHeader carries the caller identity set by the upstream auth gateway.
const TransporterHeader = "X-Transporter-ID"

type transporterKey struct{}

// WithTransporterID stores the caller identity in ctx.
func WithTransporterID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, transporterKey{}, id)
}

// TransporterID returns the caller identity stored by RequireTransporter.
func TransporterID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(transporterKey{}).(string)
	return id, ok && id != ""
}

// RequireTransporter rejects requests without a transporter identity with 401.
func RequireTransporter(logger logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(TransporterHeader))
			if id == "" {
				logger.Warn("missing transporter identity",
					logx.String("method", r.Method),
					logx.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				if _, err := io.WriteString(w, `{"success":false,"error":{"code":"unauthorized","message":"transporter identity required"}}`); err != nil {
					logger.Debug("unauthorized response write failed", logx.Err(err))
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTransporterID(r.Context(), id)))
		})
	}
}
