// Package auth holds the credential primitives of the server: password
// hashing, session token issuing/verification and the request guard.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims plus the account id under "id", which
// older clients read instead of "sub".
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"id,omitempty"`
}

// TokenService issues and verifies HS256 session tokens. It is safe for
// concurrent use; the secret is never modified after construction.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a service signing with secret. A zero ttl issues
// tokens without an expiry claim.
func NewTokenService(secret []byte, ttl time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	if ttl < 0 {
		return nil, errors.New("token ttl is negative")
	}

	s := make([]byte, len(secret))
	copy(s, secret)

	return &TokenService{secret: s, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token whose subject is accountID.
func (s *TokenService) Issue(accountID string) (string, error) {
	if accountID == "" {
		return "", errors.New("account id is empty")
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  accountID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		AccountID: accountID,
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// Verify checks signature, algorithm and expiry of token and returns the
// account id it was issued for. Every failure is common.ErrInvalidToken.
func (s *TokenService) Verify(token string) (string, error) {
	if token == "" {
		return "", common.ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil || !parsed.Valid {
		return "", common.ErrInvalidToken
	}

	id := claims.Subject
	if id == "" {
		id = claims.AccountID
	}
	if id == "" {
		return "", common.ErrInvalidToken
	}

	return id, nil
}
