package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/clinicauth/internal/clock"
	"github.com/BradenHooton/clinicauth/internal/models"
	pkgauth "github.com/BradenHooton/clinicauth/pkg/auth"
	pkglogger "github.com/BradenHooton/clinicauth/pkg/logger"
)

// DemoAccount is a sign-in available out of the box in development
type DemoAccount struct {
	Name       string
	Email      string
	Password   string
	Role       models.Role
	TOTPSecret string // base32; empty means no MFA
}

var DemoAccounts = []DemoAccount{
	{Name: "Maria Paciente", Email: "paciente@clinica.com", Password: "paciente123", Role: models.RolePatient},
	{Name: "Dr. João Profissional", Email: "profissional@clinica.com", Password: "profissional123", Role: models.RoleProfessional, TOTPSecret: "JBSWY3DPEHPK3PXP"},
	{Name: "Admin Clínica", Email: "admin@clinica.com", Password: "admin12345", Role: models.RoleAdmin},
}

// SecretEncrypter seals a TOTP secret for storage
type SecretEncrypter interface {
	EncryptSecret(secret string) ([]byte, []byte, error)
}

// SeedDemoUsers creates the demo accounts that do not exist yet and returns
// how many were added.
func SeedDemoUsers(ctx context.Context, users UserRepository, enc SecretEncrypter, clk clock.Clock, bcryptCost int, logger *slog.Logger) (int, error) {
	created := 0
	for _, account := range DemoAccounts {
		if _, err := users.GetByEmail(ctx, account.Email); err == nil {
			continue
		} else if !errors.Is(err, models.ErrNotFound) {
			return created, fmt.Errorf("failed to look up %s: %w", pkglogger.SanitizedEmail(account.Email), err)
		}

		hash, err := pkgauth.HashPasswordWithCost(account.Password, bcryptCost)
		if err != nil {
			return created, err
		}

		user := &models.User{
			Email:        account.Email,
			Name:         account.Name,
			PasswordHash: hash,
			Role:         account.Role,
			CreatedAt:    clk.Now(),
		}
		if account.TOTPSecret != "" && enc != nil {
			encrypted, nonce, err := enc.EncryptSecret(account.TOTPSecret)
			if err != nil {
				return created, fmt.Errorf("failed to encrypt demo MFA secret: %w", err)
			}
			user.MFAEnabled = true
			user.MFASecretEncrypted = encrypted
			user.MFASecretNonce = nonce
		}

		if _, err := users.Create(ctx, user); err != nil {
			if errors.Is(err, models.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("failed to create demo user: %w", err)
		}
		created++
		logger.Info("demo user seeded", slog.String("email", pkglogger.SanitizedEmail(account.Email)), slog.String("role", account.Role.String()))
	}
	return created, nil
}
