package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/clinicauth/internal/clock"
	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/BradenHooton/clinicauth/internal/repositories"
	pkgauth "github.com/BradenHooton/clinicauth/pkg/auth"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

const (
	testPassword = "senha123"
	testTOTPCode = "246810"
)

// testEnv wires real in-memory stores to a fake clock
type testEnv struct {
	clock    *clock.Fake
	users    *repositories.MemoryUserRepository
	attempts *repositories.LoginAttemptRepository
	codes    *repositories.RecoveryCodeRepository
	storage  *repositories.MemoryClientStorage
	sender   *MockCodeSender
	totp     *MockTOTP
	guard    *LoginGuard
	limiter  *ResetLimiter
	recovery *RecoveryService
	deps     AuthDependencies
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:    clock.NewFake(testStart),
		users:    repositories.NewMemoryUserRepository(),
		attempts: repositories.NewLoginAttemptRepository(),
		codes:    repositories.NewRecoveryCodeRepository(),
		sender:   &MockCodeSender{},
		totp:     &MockTOTP{ValidCode: testTOTPCode},
	}
	env.storage = repositories.NewMemoryClientStorage(env.clock.Now)
	logger := newTestLogger()

	env.guard = NewLoginGuard(env.attempts, LoginGuardConfig{MaxFailedAttempts: 5, LockoutDuration: 30 * time.Minute}, env.clock, logger)
	env.limiter = NewResetLimiter(repositories.NewResetRequestRepository(), 3, 24*time.Hour, env.clock)
	env.recovery = NewRecoveryService(RecoveryDependencies{
		Codes:   env.codes,
		Users:   env.users,
		Limiter: env.limiter,
		Sender:  env.sender,
		Clock:   env.clock,
		Logger:  logger,
	}, RecoveryConfig{
		CodeTTL:           15 * time.Minute,
		MaxAttempts:       5,
		ResendCooldown:    2 * time.Minute,
		MinPasswordLength: 6,
		BcryptCost:        bcrypt.MinCost,
	})
	env.deps = AuthDependencies{
		Users: env.users,
		Guard: env.guard,
		TOTP:  env.totp,
		Clock: env.clock,
		Config: AuthConfig{
			MinPasswordLength: 6,
			BcryptCost:        bcrypt.MinCost,
			MFAPendingTTL:     5 * time.Minute,
			MFAMaxAttempts:    5,
		},
		Logger: logger,
	}
	return env
}

func (e *testEnv) seedUser(t *testing.T, email string, role models.Role, mfa bool) *models.User {
	t.Helper()
	hash, err := pkgauth.HashPasswordWithCost(testPassword, bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{Email: email, Name: "Usuário Teste", PasswordHash: hash, Role: role}
	if mfa {
		user.MFAEnabled = true
		user.MFASecretEncrypted = []byte("JBSWY3DPEHPK3PXP")
		user.MFASecretNonce = []byte("nonce")
	}
	created, err := e.users.Create(context.Background(), user)
	require.NoError(t, err)
	return created
}

func (e *testEnv) sessionManager(clientID string) *SessionManager {
	return NewSessionManager(e.storage.ForClient(clientID), e.clock, 30*time.Minute, newTestLogger())
}

func (e *testEnv) authService(clientID string) *AuthService {
	return NewAuthService(e.deps, e.sessionManager(clientID), clientID)
}
