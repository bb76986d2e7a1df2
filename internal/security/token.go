package security

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"plotwaitlist-backend/internal/clock"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

const (
	issuer        = "plotwaitlist"
	adminAudience = "waitlist-admin"
	adminRole     = "admin"
)

// AdminClaims are carried by the admin access token.
type AdminClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims grant administrator access.
func (c *AdminClaims) IsAdmin() bool {
	for _, r := range c.Roles {
		if r == adminRole {
			return true
		}
	}
	return false
}

type TokenManager interface {
	// Login checks the admin credentials and issues an access token.
	Login(email, password string) (string, time.Time, error)
	ValidateToken(tokenString string) (*AdminClaims, error)
}

type tokenManager struct {
	secret       []byte
	adminEmail   string
	passwordHash []byte
	ttl          time.Duration
	clock        clock.Clock
}

func NewTokenManager(secret, adminEmail, passwordHash string, ttl time.Duration, clk clock.Clock) TokenManager {
	return &tokenManager{
		secret:       []byte(secret),
		adminEmail:   strings.ToLower(strings.TrimSpace(adminEmail)),
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		clock:        clk,
	}
}

// HashPassword returns the bcrypt hash stored in the admin configuration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (m *tokenManager) Login(email, password string) (string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(m.adminEmail)) == 1
	// Always run bcrypt so a wrong email costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password))
	if !emailOK || passErr != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := m.clock.Now()
	expires := now.Add(m.ttl)
	claims := AdminClaims{
		Email: email,
		Roles: []string{adminRole},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{adminAudience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (m *tokenManager) ValidateToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithAudience(adminAudience),
		jwt.WithIssuer(issuer),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid && claims.IsAdmin() {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
