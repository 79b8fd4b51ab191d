package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, expired and wrong-purpose tokens.
var ErrInvalidToken = errors.New("invalid token")

const (
	roleUser  = "user"
	roleAdmin = "admin"

	purposeSession = "session"
	purposeReset   = "password_reset"

	adminSubject = "admin"

	resetTokenTTL = time.Hour
)

// Claims are the JWT claims issued by the service.
type Claims struct {
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret   []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenManager creates a manager; audience may be empty.
func NewTokenManager(secret, audience string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret:   []byte(strings.TrimSpace(secret)),
		audience: strings.TrimSpace(audience),
		ttl:      ttl,
		now:      time.Now,
	}
}

// IssueSession signs a session token for a user or the administrator.
func (m *TokenManager) IssueSession(s SessionContext) (string, error) {
	subject, role := strconv.FormatUint(uint64(s.UserID), 10), roleUser
	if s.Admin {
		subject, role = adminSubject, roleAdmin
	}
	return m.sign(subject, role, purposeSession, m.ttl)
}

// ParseSession verifies a session token and returns its identity.
func (m *TokenManager) ParseSession(token string) (SessionContext, error) {
	claims, err := m.parse(token, purposeSession)
	if err != nil {
		return SessionContext{}, err
	}

	switch claims.Role {
	case roleAdmin:
		if claims.Subject != adminSubject {
			return SessionContext{}, fmt.Errorf("%w: bad admin subject", ErrInvalidToken)
		}
		return SessionContext{Admin: true}, nil
	case roleUser:
		id, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || id == 0 {
			return SessionContext{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
		}
		return SessionContext{UserID: uint(id)}, nil
	default:
		return SessionContext{}, fmt.Errorf("%w: unknown role", ErrInvalidToken)
	}
}

// IssueReset signs a one-hour password reset token for email.
func (m *TokenManager) IssueReset(email string) (string, error) {
	return m.sign(email, "", purposeReset, resetTokenTTL)
}

// ParseReset verifies a reset token and returns the email it was issued for.
func (m *TokenManager) ParseReset(token string) (string, error) {
	claims, err := m.parse(token, purposeReset)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (m *TokenManager) sign(subject, role, purpose string, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("missing JWT secret")
	}
	now := m.now()
	claims := &Claims{
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) parse(tokenString, purpose string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, errors.New("missing JWT secret")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: wrong purpose", ErrInvalidToken)
	}
	return claims, nil
}
