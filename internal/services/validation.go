package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BradenHooton/clinicauth/internal/models"
	pkgauth "github.com/BradenHooton/clinicauth/pkg/auth"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// normalizeEmail lower-cases and trims email and checks its syntax.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return "", models.ErrInvalidFormat
	}
	return email, nil
}

// checkPassword wraps length violations in ErrWeakPassword.
func checkPassword(password string, minLen int) error {
	if err := pkgauth.ValidatePassword(password, minLen); err != nil {
		return fmt.Errorf("%w: %w", models.ErrWeakPassword, err)
	}
	return nil
}

func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}

func ceilHours(d time.Duration) int {
	return int(math.Ceil(d.Hours()))
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
