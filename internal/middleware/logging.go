package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/clinicauth/internal/auth"
	pkglogger "github.com/BradenHooton/clinicauth/pkg/logger"
)

// SecureLogger logs one line per request. Query strings carrying codes,
// passwords or tokens are redacted.
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// The client id is attached further down the chain, so capture it
			// through a holder shared with the inner handler.
			holder := &clientHolder{}
			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), clientHolderKey{}, holder)))

			path := r.URL.Path
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path += "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path += "?" + r.URL.RawQuery
			}

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.Int64("bytes", int64(wrapped.BytesWritten())),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if holder.clientID != "" {
				attrs = append(attrs, slog.String("client_id", holder.clientID))
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(context.Background(), level, "http_request", attrs...)
		})
	}
}

type clientHolderKey struct{}

type clientHolder struct {
	clientID string
}

// CaptureClientID records the resolved client id for SecureLogger. Mount it
// after the client middleware.
func CaptureClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder, ok := r.Context().Value(clientHolderKey{}).(*clientHolder); ok {
			holder.clientID = auth.GetClientID(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}
