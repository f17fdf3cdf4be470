package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"finwise/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of the backend's access tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
}

var parser = jwt.NewParser()

// hmacMethods are the algorithms the backend signs access tokens with.
var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

var errNoSecret = errors.New("token secret not configured")

// ParseSession decodes token without verifying its signature and rejects it
// when it is malformed or expired at now. Use it only on tokens that come
// from trusted configuration or that are forwarded to the backend, which
// checks the signature itself. Identity taken from a caller's request goes
// through a Verifier.
func ParseSession(token string, now time.Time) (core.Session, error) {
	token = trimBearer(token)
	if token == "" {
		return core.Session{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	var claims Claims
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return core.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return sessionFromClaims(token, claims, now)
}

// Verifier authenticates access tokens signed with the secret shared with
// the backend.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for secret. An empty secret yields a
// Verifier that rejects every token.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Session checks the signature, algorithm and expiry of token and returns
// the session it identifies.
func (v *Verifier) Session(token string, now time.Time) (core.Session, error) {
	if v == nil || len(v.secret) == 0 {
		return core.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, errNoSecret)
	}
	token = trimBearer(token)
	if token == "" {
		return core.Session{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods(hmacMethods),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return core.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return sessionFromClaims(token, claims, now)
}

func trimBearer(token string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
}

func sessionFromClaims(token string, claims Claims, now time.Time) (core.Session, error) {
	s := core.Session{
		Subject: claims.Subject,
		Role:    claims.Role,
		Token:   token,
	}
	if s.Subject == "" {
		s.Subject = claims.UserID
	}
	if s.Subject == "" {
		return core.Session{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	if s.Role == "" {
		s.Role = core.RoleUser
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	if s.Expired(now) {
		return core.Session{}, fmt.Errorf("%w: token expired at %s", ErrUnauthorized, s.ExpiresAt.Format(time.RFC3339))
	}
	return s, nil
}
