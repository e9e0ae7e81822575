package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/clinicauth/internal/models"
	pkgauth "github.com/BradenHooton/clinicauth/pkg/auth"
	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
)

const (
	msgInvalidBody     = "Corpo da requisição inválido."
	msgNoSession       = "Sessão não encontrada. Faça login novamente."
	msgInternal        = "Erro interno. Tente novamente mais tarde."
	msgInvalidEmail    = "E-mail inválido."
	msgBadCredentials  = "E-mail ou senha incorretos."
	msgCodeNotFound    = "Nenhum código de recuperação encontrado. Solicite um novo código."
	msgCodeUsed        = "Este código já foi utilizado."
	msgCodeExpired     = "Código expirado. Solicite um novo código."
	msgCodeExhausted   = "Número máximo de tentativas excedido. Solicite um novo código."
	msgInvalidMFACode  = "Código de verificação inválido."
	msgResetRequested  = "Se o e-mail estiver cadastrado, você receberá um código de recuperação."
	msgPasswordChanged = "Senha alterada com sucesso."
)

// writeServiceError maps a service error onto the JSON error contract.
// Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		validationErr *ValidationError
		lockout       *models.LockoutError
		rateLimit     *models.RateLimitError
		cooldown      *models.CooldownError
		incorrect     *models.IncorrectCodeError
	)

	switch {
	case errors.As(err, &validationErr):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Dados inválidos: "+validationErr.Error(), validationErr.Fields)
	case errors.Is(err, models.ErrInvalidFormat):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_format", msgInvalidEmail)
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", msgBadCredentials)
	case errors.As(err, &lockout):
		pkghttp.WriteErrorWithDetails(w, http.StatusTooManyRequests, "account_locked",
			fmt.Sprintf("Conta temporariamente bloqueada. Tente novamente em %d minuto(s).", lockout.RemainingMinutes),
			map[string]int{"remaining_minutes": lockout.RemainingMinutes})
	case errors.As(err, &rateLimit):
		pkghttp.WriteErrorWithDetails(w, http.StatusTooManyRequests, "reset_rate_limited",
			fmt.Sprintf("Limite de solicitações atingido. Tente novamente em %d hora(s).", rateLimit.RemainingHours),
			map[string]int{"remaining_hours": rateLimit.RemainingHours})
	case errors.As(err, &cooldown):
		pkghttp.WriteErrorWithDetails(w, http.StatusTooManyRequests, "resend_cooldown",
			fmt.Sprintf("Aguarde %d segundo(s) para reenviar o código.", cooldown.RemainingSeconds),
			map[string]int{"remaining_seconds": cooldown.RemainingSeconds})
	case errors.As(err, &incorrect):
		pkghttp.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, "incorrect_code",
			fmt.Sprintf("Código incorreto. Tentativas restantes: %d", incorrect.RemainingAttempts),
			map[string]int{"remaining_attempts": incorrect.RemainingAttempts})
	case errors.Is(err, models.ErrIncorrectCode):
		pkghttp.WriteUnprocessable(w, "incorrect_code", msgInvalidMFACode)
	case errors.Is(err, models.ErrCodeNotFound):
		pkghttp.WriteError(w, http.StatusNotFound, "code_not_found", msgCodeNotFound)
	case errors.Is(err, models.ErrCodeAlreadyUsed):
		pkghttp.WriteGone(w, "code_already_used", msgCodeUsed)
	case errors.Is(err, models.ErrCodeExpired):
		pkghttp.WriteGone(w, "code_expired", msgCodeExpired)
	case errors.Is(err, models.ErrAttemptsExhausted):
		pkghttp.WriteGone(w, "attempts_exhausted", msgCodeExhausted)
	case errors.Is(err, models.ErrWeakPassword):
		pkghttp.WriteUnprocessable(w, "weak_password", weakPasswordMessage(err))
	case errors.Is(err, models.ErrUnauthenticated):
		pkghttp.WriteError(w, http.StatusUnauthorized, "unauthenticated", msgNoSession)
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Conflito com o estado atual do recurso.")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Requisição inválida.")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Recurso não encontrado.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "request_cancelled", "Requisição cancelada.")
	default:
		logger.Error("unhandled service error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		pkghttp.WriteInternalError(w, msgInternal)
	}
}

func weakPasswordMessage(err error) string {
	var lengthErr *pkgauth.PasswordLengthError
	if errors.As(err, &lengthErr) {
		if errors.Is(lengthErr, pkgauth.ErrPasswordTooLong) {
			return fmt.Sprintf("A senha deve ter no máximo %d caracteres.", lengthErr.Bound)
		}
		return fmt.Sprintf("A senha deve ter pelo menos %d caracteres.", lengthErr.Bound)
	}
	return "Senha muito curta."
}

// decodeAndValidate reads the JSON body into req and runs struct validation.
// It writes the 400 itself and reports false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, req any) bool {
	if err := pkghttp.DecodeJSON(r, req); err != nil {
		pkghttp.WriteBadRequest(w, msgInvalidBody)
		return false
	}
	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, r, logger, err)
		return false
	}
	return true
}

func isConflict(err error) bool {
	return errors.Is(err, models.ErrConflict)
}
