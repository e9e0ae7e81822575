package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/clinicauth/internal/models"
	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
)

type contextKey string

const clientIDContextKey contextKey = "client_id"

// ClientMiddleware identifies the browser client behind every request. Requests
// without a valid client cookie get a new client id and a fresh cookie.
// Tokens past half their lifetime are re-issued for the same client.
func ClientMiddleware(tm *ClientTokenManager, cookies CookieConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, reissue := "", true

			if raw, err := GetClientCookie(r); err == nil && raw != "" {
				claims, err := tm.Validate(raw)
				if err == nil {
					clientID = claims.Subject
					remaining := claims.ExpiresAt.Time.Sub(tm.now())
					reissue = remaining < tm.expiry/2
				} else {
					logger.Debug("discarding invalid client token", "error", err)
				}
			}

			if clientID == "" {
				clientID = NewClientID()
			}

			if reissue {
				token, expiresAt, err := tm.Issue(clientID)
				if err != nil {
					logger.Error("failed to issue client token", "error", err)
					pkghttp.WriteInternalError(w, "Internal server error")
					return
				}
				SetClientCookie(w, token, expiresAt, cookies)
			}

			next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
		})
	}
}

// WithClientID returns a copy of ctx carrying clientID
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}

// GetClientID extracts the client id from the context, "" when absent
func GetClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDContextKey).(string)
	return id
}

// RoleLookup returns the role of the user logged in on clientID, "" if nobody is.
type RoleLookup func(ctx context.Context, clientID string) (models.Role, error)

// RequireRole guards a route behind a minimum role requirement. Missing sessions
// get 401 and insufficient roles get 403.
func RequireRole(resolver *Resolver, lookup RoleLookup, required models.Role, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := GetClientID(r.Context())
			if clientID == "" {
				pkghttp.WriteUnauthorized(w, "Sessão não encontrada. Faça login novamente.")
				return
			}

			current, err := lookup(r.Context(), clientID)
			if err != nil {
				logger.Error("failed to resolve client role", "client_id", clientID, "error", err)
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if current == "" {
				pkghttp.WriteUnauthorized(w, "Sessão não encontrada. Faça login novamente.")
				return
			}

			if !resolver.Allows(current, required) {
				logger.Warn("role requirement not met",
					"client_id", clientID,
					"role", current,
					"required", required,
					"path", r.URL.Path,
				)
				pkghttp.WriteForbidden(w, "Acesso não autorizado para este perfil.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

