package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidClientToken = errors.New("invalid client token")

// ClientClaims identifies a browser client. The subject is the client id.
type ClientClaims struct {
	jwt.RegisteredClaims
}

// ClientTokenManager signs and validates client identity tokens
type ClientTokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewClientTokenManager creates a new ClientTokenManager. now may be nil.
func NewClientTokenManager(secret string, expiry time.Duration, now func() time.Time) *ClientTokenManager {
	if now == nil {
		now = time.Now
	}
	return &ClientTokenManager{
		secret: []byte(secret),
		expiry: expiry,
		now:    now,
	}
}

// NewClientID returns a fresh random client id.
func NewClientID() string {
	return uuid.New().String()
}

// Issue signs a token for clientID and returns it with its expiry.
func (tm *ClientTokenManager) Issue(clientID string) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.expiry)

	claims := &ClientClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign client token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate verifies a token and returns its claims
func (tm *ClientTokenManager) Validate(tokenString string) (*ClientClaims, error) {
	claims := &ClientClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidClientToken
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: malformed subject", ErrInvalidClientToken)
	}

	return claims, nil
}
