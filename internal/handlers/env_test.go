package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/clinicauth/internal/clock"
	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/BradenHooton/clinicauth/internal/repositories"
	"github.com/BradenHooton/clinicauth/internal/services"
	pkgauth "github.com/BradenHooton/clinicauth/pkg/auth"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

const (
	testPassword = "senha123"
	testTOTPCode = "246810"
	testClient   = "7b0d5c1e-2f0a-4d4b-9a57-0d6f3c1b2a90"
)

// handlerEnv runs the handlers against real in-memory services on a fake clock
type handlerEnv struct {
	clock    *clock.Fake
	users    *repositories.MemoryUserRepository
	sender   *services.MockCodeSender
	registry *services.ClientRegistry
	auth     *AuthHandler
	recovery *RecoveryHandler
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	clk := clock.NewFake(testStart)
	logger := newTestLogger()
	users := repositories.NewMemoryUserRepository()
	storage := repositories.NewMemoryClientStorage(clk.Now)

	guard := services.NewLoginGuard(repositories.NewLoginAttemptRepository(),
		services.LoginGuardConfig{MaxFailedAttempts: 5, LockoutDuration: 30 * time.Minute}, clk, logger)

	deps := services.AuthDependencies{
		Users: users,
		Guard: guard,
		TOTP:  &services.MockTOTP{ValidCode: testTOTPCode},
		Clock: clk,
		Config: services.AuthConfig{
			MinPasswordLength: 6,
			BcryptCost:        bcrypt.MinCost,
			MFAPendingTTL:     5 * time.Minute,
			MFAMaxAttempts:    5,
		},
		Logger: logger,
	}
	registry := services.NewClientRegistry(deps, func(clientID string) services.Storage {
		return storage.ForClient(clientID)
	}, 30*time.Minute)
	t.Cleanup(registry.Shutdown)

	sender := &services.MockCodeSender{}
	recovery := services.NewRecoveryService(services.RecoveryDependencies{
		Codes:   repositories.NewRecoveryCodeRepository(),
		Users:   users,
		Limiter: services.NewResetLimiter(repositories.NewResetRequestRepository(), 3, 24*time.Hour, clk),
		Sender:  sender,
		Clock:   clk,
		Logger:  logger,
	}, services.RecoveryConfig{
		CodeTTL:           15 * time.Minute,
		MaxAttempts:       5,
		ResendCooldown:    2 * time.Minute,
		MinPasswordLength: 6,
		BcryptCost:        bcrypt.MinCost,
	})

	return &handlerEnv{
		clock:    clk,
		users:    users,
		sender:   sender,
		registry: registry,
		auth:     NewAuthHandler(RegistryResolver(registry), logger),
		recovery: NewRecoveryHandler(recovery, true, logger),
	}
}

func (e *handlerEnv) seedUser(t *testing.T, email string, role models.Role, mfa bool) *models.User {
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

// serve runs h for the test client
func serve(t *testing.T, h http.HandlerFunc, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, WithClient(NewTestRequest(t, method, url, body), testClient))
	return w
}
