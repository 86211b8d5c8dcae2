// Package authn gates the control plane's mutating routes behind an
// optional admin bearer token, adapted from the teacher's user-account
// JWT auth down to a single admin identity — there are no per-user
// accounts in this system, only an operator who may enqueue jobs and
// trigger promotion ticks.
package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload for the admin identity.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// TokenPair is an access/refresh token pair issued after a successful
// admin login.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

var (
	ErrInvalidToken = errors.New("authn: invalid or expired token")
)

// JWTManager issues and validates the admin access/refresh token pair.
type JWTManager struct {
	secret          []byte
	issuer          string
	accessTTL       time.Duration
	refreshTTL      time.Duration
}

// NewJWTManager builds a manager with the given signing secret and
// issuer claim.
func NewJWTManager(secret, issuer string) *JWTManager {
	return &JWTManager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
	}
}

// GenerateTokenPair issues a fresh access/refresh pair for the admin
// subject.
func (m *JWTManager) GenerateTokenPair(subject string) (*TokenPair, error) {
	now := time.Now()
	access, err := m.sign(subject, now, m.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("authn: sign access token: %w", err)
	}
	refresh, err := m.sign(subject, now, m.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("authn: sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(m.accessTTL),
	}, nil
}

func (m *JWTManager) sign(subject string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and verifies a bearer token, returning its claims.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authn: unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
