package handlers

import (
	"net/http"

	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
)

// EnrollMFA handles POST /auth/mfa/enroll. The response carries the secret and
// QR code once; MFA stays off until ConfirmMFA succeeds.
func (h *AuthHandler) EnrollMFA(w http.ResponseWriter, r *http.Request) {
	flows, ok := h.flows(w, r)
	if !ok {
		return
	}

	enrollment, err := flows.EnrollMFA(r.Context())
	if err != nil {
		if isConflict(err) {
			pkghttp.WriteConflict(w, "A verificação em duas etapas já está ativa.")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusOK, MFAEnrollResponse{
		Secret:          enrollment.Secret,
		ProvisioningURL: enrollment.ProvisioningURL,
		QRCode:          enrollment.QRCode,
	})
}

// ConfirmMFA handles POST /auth/mfa/confirm
func (h *AuthHandler) ConfirmMFA(w http.ResponseWriter, r *http.Request) {
	var req MFACodeRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	flows, ok := h.flows(w, r)
	if !ok {
		return
	}

	if err := flows.ConfirmMFA(r.Context(), req.Code); err != nil {
		if isConflict(err) {
			pkghttp.WriteConflict(w, "A verificação em duas etapas já está ativa.")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Verificação em duas etapas ativada."})
}
