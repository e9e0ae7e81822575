package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/clinicauth/internal/models"
	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
)

// RecoveryFlows is the password recovery surface of services.RecoveryService
type RecoveryFlows interface {
	RequestPasswordReset(ctx context.Context, email string) (*models.RecoveryCodeIssued, error)
	ResendRecoveryCode(ctx context.Context, email string) (*models.RecoveryCodeIssued, error)
	VerifyRecoveryCode(ctx context.Context, email, code string) error
	ResetPasswordWithCode(ctx context.Context, email, code, newPassword string) error
}

// RecoveryHandler serves the three step password recovery flow
type RecoveryHandler struct {
	service    RecoveryFlows
	exposeCode bool
	logger     *slog.Logger
}

// NewRecoveryHandler creates a RecoveryHandler. exposeCode echoes issued codes
// in responses and must stay off in production.
func NewRecoveryHandler(service RecoveryFlows, exposeCode bool, logger *slog.Logger) *RecoveryHandler {
	return &RecoveryHandler{service: service, exposeCode: exposeCode, logger: logger}
}

// issuedResponse describes an issued code. Without exposeCode the body is the
// bare acknowledgement, identical for known and unknown emails.
func (h *RecoveryHandler) issuedResponse(issued *models.RecoveryCodeIssued) RecoveryResponse {
	if !h.exposeCode || issued == nil {
		return RecoveryResponse{Message: msgResetRequested}
	}
	return RecoveryResponse{
		Message:           msgResetRequested,
		ExpiresAt:         &issued.ExpiresAt,
		ResendAvailableAt: &issued.ResendAvailableAt,
		Code:              issued.Code,
	}
}

// Request handles POST /auth/recovery/request. Unknown emails get the same
// 202 as known ones.
func (h *RecoveryHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req RecoveryEmailRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	issued, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if errors.Is(err, models.ErrNotFound) {
		pkghttp.WriteJSON(w, http.StatusAccepted, h.issuedResponse(nil))
		return
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusAccepted, h.issuedResponse(issued))
}

// Resend handles POST /auth/recovery/resend. Without exposeCode, a missing
// code and an active cooldown are answered with the plain acknowledgement,
// so the response never tells whether the email has an outstanding code.
func (h *RecoveryHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req RecoveryEmailRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	issued, err := h.service.ResendRecoveryCode(r.Context(), req.Email)
	if !h.exposeCode && (errors.Is(err, models.ErrCodeNotFound) || errors.Is(err, models.ErrResendCooldown)) {
		pkghttp.WriteJSON(w, http.StatusAccepted, h.issuedResponse(nil))
		return
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusAccepted, h.issuedResponse(issued))
}

// Verify handles POST /auth/recovery/verify
func (h *RecoveryHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req RecoveryVerifyRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	if err := h.service.VerifyRecoveryCode(r.Context(), req.Email, req.Code); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Código verificado."})
}

// Reset handles POST /auth/recovery/reset
func (h *RecoveryHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req RecoveryResetRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	if err := h.service.ResetPasswordWithCode(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: msgPasswordChanged})
}
