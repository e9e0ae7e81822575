package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/clinicauth/internal/auth"
	"github.com/BradenHooton/clinicauth/internal/models"
	"github.com/BradenHooton/clinicauth/internal/services"
	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithClient attaches a client id the way auth.ClientMiddleware would
func WithClient(req *http.Request, clientID string) *http.Request {
	return req.WithContext(auth.WithClientID(req.Context(), clientID))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch: %s", w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response and returns it
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch: %s", w.Body.String())

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthFlows implements AuthFlows for testing
type MockAuthFlows struct {
	LoginFunc          func(ctx context.Context, email, password string) (*services.LoginResult, error)
	VerifyMFAFunc      func(ctx context.Context, code string) bool
	RegisterFunc       func(ctx context.Context, in services.RegisterInput) (*models.Session, error)
	LogoutFunc         func(ctx context.Context)
	LogoutAllFunc      func(ctx context.Context) error
	CurrentSessionFunc func(ctx context.Context) (*models.Session, error)
	RecordActivityFunc func(ctx context.Context, signal models.ActivitySignal) (*models.Session, error)
	ChangePasswordFunc func(ctx context.Context, currentPassword, newPassword string) error
	EnrollMFAFunc      func(ctx context.Context) (*auth.TOTPEnrollment, error)
	ConfirmMFAFunc     func(ctx context.Context, code string) error
}

func (m *MockAuthFlows) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthFlows) VerifyMFA(ctx context.Context, code string) bool {
	if m.VerifyMFAFunc == nil {
		return false
	}
	return m.VerifyMFAFunc(ctx, code)
}

func (m *MockAuthFlows) Register(ctx context.Context, in services.RegisterInput) (*models.Session, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, in)
}

func (m *MockAuthFlows) Logout(ctx context.Context) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx)
	}
}

func (m *MockAuthFlows) LogoutAll(ctx context.Context) error {
	if m.LogoutAllFunc == nil {
		return nil
	}
	return m.LogoutAllFunc(ctx)
}

func (m *MockAuthFlows) CurrentSession(ctx context.Context) (*models.Session, error) {
	if m.CurrentSessionFunc == nil {
		return nil, nil
	}
	return m.CurrentSessionFunc(ctx)
}

func (m *MockAuthFlows) RecordActivity(ctx context.Context, signal models.ActivitySignal) (*models.Session, error) {
	if m.RecordActivityFunc == nil {
		return nil, nil
	}
	return m.RecordActivityFunc(ctx, signal)
}

func (m *MockAuthFlows) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc == nil {
		return models.ErrUnauthenticated
	}
	return m.ChangePasswordFunc(ctx, currentPassword, newPassword)
}

func (m *MockAuthFlows) EnrollMFA(ctx context.Context) (*auth.TOTPEnrollment, error) {
	if m.EnrollMFAFunc == nil {
		return nil, models.ErrUnauthenticated
	}
	return m.EnrollMFAFunc(ctx)
}

func (m *MockAuthFlows) ConfirmMFA(ctx context.Context, code string) error {
	if m.ConfirmMFAFunc == nil {
		return models.ErrUnauthenticated
	}
	return m.ConfirmMFAFunc(ctx, code)
}

// StaticResolver hands the same flows to every client
func StaticResolver(flows AuthFlows) ClientResolver {
	return func(ctx context.Context, clientID string) (AuthFlows, error) {
		return flows, nil
	}
}
