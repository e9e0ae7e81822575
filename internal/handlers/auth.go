package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/clinicauth/internal/auth"
	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/BradenHooton/clinicauth/internal/services"
	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
)

// AuthFlows is the per-client slice of services.AuthService used by the handlers
type AuthFlows interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	VerifyMFA(ctx context.Context, code string) bool
	Register(ctx context.Context, in services.RegisterInput) (*models.Session, error)
	Logout(ctx context.Context)
	LogoutAll(ctx context.Context) error
	CurrentSession(ctx context.Context) (*models.Session, error)
	RecordActivity(ctx context.Context, signal models.ActivitySignal) (*models.Session, error)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	EnrollMFA(ctx context.Context) (*auth.TOTPEnrollment, error)
	ConfirmMFA(ctx context.Context, code string) error
}

// ClientResolver returns the flows bound to a browser client
type ClientResolver func(ctx context.Context, clientID string) (AuthFlows, error)

// RegistryResolver adapts a ClientRegistry to a ClientResolver
func RegistryResolver(registry *services.ClientRegistry) ClientResolver {
	return func(ctx context.Context, clientID string) (AuthFlows, error) {
		svc, err := registry.ForClient(ctx, clientID)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}

// AuthHandler handles login, registration, logout and session requests
type AuthHandler struct {
	clients ClientResolver
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(clients ClientResolver, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{clients: clients, logger: logger}
}

// flows resolves the caller's client. On failure the response is already written.
func (h *AuthHandler) flows(w http.ResponseWriter, r *http.Request) (AuthFlows, bool) {
	clientID := auth.GetClientID(r.Context())
	if clientID == "" {
		pkghttp.WriteUnauthorized(w, msgNoSession)
		return nil, false
	}
	flows, err := h.clients(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return nil, false
	}
	return flows, true
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	flows, ok := h.flows(w, r)
	if !ok {
		return
	}

	result, err := flows.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if result.MFARequired {
		pkghttp.WriteJSON(w, http.StatusAccepted, LoginResponse{MFARequired: true})
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{SessionResponse: newSessionResponse(result.Session)})
}

// VerifyMFA handles POST /auth/mfa/verify, the second step of an MFA login
func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req MFACodeRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	flows, ok := h.flows(w, r)
	if !ok {
		return
	}

	if !flows.VerifyMFA(r.Context(), req.Code) {
		pkghttp.WriteUnauthorized(w, msgInvalidMFACode)
		return
	}

	session, err := flows.CurrentSession(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{SessionResponse: newSessionResponse(session)})
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	var role models.Role
	if req.Role != "" {
		parsed, ok := models.ParseRole(req.Role)
		if !ok {
			pkghttp.WriteBadRequest(w, "Perfil inválido.")
			return
		}
		role = parsed
	}

	flows, ok := h.flows(w, r)
	if !ok {
		return
	}

	session, err := flows.Register(r.Context(), services.RegisterInput{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		if isConflict(err) {
			pkghttp.WriteConflict(w, "Este e-mail já está cadastrado.")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, newSessionResponse(session))
}

// Logout handles POST /auth/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	flows, ok := h.flows(w, r)
	if !ok {
		return
	}
	flows.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	flows, ok := h.flows(w, r)
	if !ok {
		return
	}
	if err := flows.LogoutAll(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	flows, ok := h.flows(w, r)
	if !ok {
		return
	}
	session, err := flows.CurrentSession(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, newSessionResponse(session))
}

// Activity handles POST /auth/session/activity. Unknown signals are accepted
// and ignored, so the response always reflects the current session.
func (h *AuthHandler) Activity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	flows, ok := h.flows(w, r)
	if !ok {
		return
	}

	session, err := flows.RecordActivity(r.Context(), models.ActivitySignal(strings.ToLower(req.Signal)))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, newSessionResponse(session))
}

// ChangePassword handles POST /auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	flows, ok := h.flows(w, r)
	if !ok {
		return
	}

	if err := flows.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: msgPasswordChanged})
}
