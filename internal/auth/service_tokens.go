package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultServiceTokenTTL = 30 * time.Minute

var (
	// ErrMissingSigningSecret indicates the token manager has no key material.
	ErrMissingSigningSecret = errors.New("auth: signing secret must be provided")
	// ErrMissingSubject indicates an empty token subject.
	ErrMissingSubject = errors.New("auth: subject must be provided")
	// ErrInvalidServiceToken indicates a malformed or unverifiable token.
	ErrInvalidServiceToken = errors.New("auth: invalid service token")
)

// ServiceTokensConfig configures the HS256 service-token manager that
// authenticates read-API consumers (the UI/API layer).
type ServiceTokensConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// ServiceTokens issues and validates HS256 JWTs for read-API consumers.
type ServiceTokens struct {
	signingSecret []byte
	issuer        string
	audience      string
	tokenTTL      time.Duration
	clock         func() time.Time
}

// NewServiceTokens constructs a ServiceTokens manager with sane defaults.
func NewServiceTokens(cfg ServiceTokensConfig) *ServiceTokens {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultServiceTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ServiceTokens{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		tokenTTL:      ttl,
		clock:         clock,
	}
}

// Issue produces a signed token and its expiry (seconds) for the subject.
func (m *ServiceTokens) Issue(subject string) (string, int64, error) {
	if len(m.signingSecret) == 0 {
		return "", 0, ErrMissingSigningSecret
	}
	if strings.TrimSpace(subject) == "" {
		return "", 0, ErrMissingSubject
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.tokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		Audience:  []string{m.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// Validate ensures the token is well formed and returns its subject.
func (m *ServiceTokens) Validate(tokenString string) (string, error) {
	if len(m.signingSecret) == 0 {
		return "", ErrMissingSigningSecret
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidServiceToken, token.Method.Alg())
			}
			return m.signingSecret, nil
		},
		jwt.WithAudience(m.audience),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidServiceToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}
