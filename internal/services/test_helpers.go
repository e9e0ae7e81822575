package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/clinicauth/internal/auth"
	"github.com/BradenHooton/clinicauth/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc     func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	return user, nil
}

// MockCodeSender records every code it is asked to deliver
type MockCodeSender struct {
	mu       sync.Mutex
	Sent     []SentCode
	SendFunc func(ctx context.Context, email, code string, expiresAt time.Time) error
}

type SentCode struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

func (m *MockCodeSender) SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, email, code, expiresAt); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentCode{Email: email, Code: code, ExpiresAt: expiresAt})
	return nil
}

func (m *MockCodeSender) Last() SentCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentCode{}
	}
	return m.Sent[len(m.Sent)-1]
}

// MockTOTP treats the "encrypted" secret as plaintext and accepts ValidCode
type MockTOTP struct {
	ValidCode  string
	EnrollFunc func(accountName string) (*auth.TOTPEnrollment, error)
}

func (m *MockTOTP) Enroll(accountName string) (*auth.TOTPEnrollment, error) {
	if m.EnrollFunc != nil {
		return m.EnrollFunc(accountName)
	}
	return &auth.TOTPEnrollment{
		Secret:          "JBSWY3DPEHPK3PXP",
		ProvisioningURL: "otpauth://totp/Clinica:" + accountName,
		QRCode:          "data:image/png;base64,AAAA",
		Encrypted:       []byte("JBSWY3DPEHPK3PXP"),
		Nonce:           []byte("nonce"),
	}, nil
}

func (m *MockTOTP) DecryptSecret(encrypted, nonce []byte) (string, error) {
	if len(encrypted) == 0 {
		return "", errors.New("empty secret")
	}
	return string(encrypted), nil
}

func (m *MockTOTP) ValidateTOTP(secret, code string, at time.Time) (bool, error) {
	return code == m.ValidCode, nil
}

// FailingStorage returns Err from every call
type FailingStorage struct {
	Err error
}

func (f *FailingStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	return "", false, f.Err
}

func (f *FailingStorage) SetItems(ctx context.Context, items map[string]string) error {
	return f.Err
}

func (f *FailingStorage) RemoveItems(ctx context.Context, keys ...string) error {
	return f.Err
}

func (f *FailingStorage) Clear(ctx context.Context) error {
	return f.Err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
