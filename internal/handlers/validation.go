package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationErrorResponse represents a validation error with field-level details
type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Global validator instance (reused across all handlers)
var validate = validator.New()

// ValidationError carries every field that failed validation. Error reports the first.
type ValidationError struct {
	Fields []ValidationErrorResponse
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "Dados inválidos."
	}
	return fmt.Sprintf("%s: %s", e.Fields[0].Field, e.Fields[0].Message)
}

// ValidateRequest validates a request struct using go-playground/validator
func ValidateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validation failed: %w", err)
	}

	fields := make([]ValidationErrorResponse, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, ValidationErrorResponse{
			Field:   jsonFieldName(fe),
			Message: formatValidationError(fe),
		})
	}
	return &ValidationError{Fields: fields}
}

func jsonFieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "Email":
		return "email"
	case "Password":
		return "password"
	case "NewPassword":
		return "new_password"
	case "CurrentPassword":
		return "current_password"
	case "Code":
		return "code"
	case "Name":
		return "name"
	case "Role":
		return "role"
	case "Signal":
		return "signal"
	default:
		return fe.Field()
	}
}

// formatValidationError converts a validator FieldError to a user-facing message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "email":
		return "informe um e-mail válido"
	case "min":
		return fmt.Sprintf("deve ter no mínimo %s caracteres", fe.Param())
	case "max":
		return fmt.Sprintf("deve ter no máximo %s caracteres", fe.Param())
	case "len":
		return fmt.Sprintf("deve ter exatamente %s caracteres", fe.Param())
	case "numeric":
		return "deve conter apenas números"
	case "oneof":
		return fmt.Sprintf("deve ser um de: %s", fe.Param())
	default:
		return fmt.Sprintf("valor inválido (%s)", fe.Tag())
	}
}
