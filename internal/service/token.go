package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrConfig is matched by every *ConfigError.
var ErrConfig = errors.New("invalid token configuration")

// ConfigError reports an unusable TokenService configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "token config: " + e.Reason }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// TokenErrorKind classifies why a token was rejected.
type TokenErrorKind int

const (
	TokenExpired TokenErrorKind = iota + 1
	TokenBadSignature
	TokenMalformed
	TokenOther
)

var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenInvalid      = errors.New("token invalid")
)

// TokenError is returned by Validate. errors.Is matches it against the
// sentinel for its kind.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return e.sentinel().Error() + ": " + e.Err.Error()
	}
	return e.sentinel().Error()
}

func (e *TokenError) Unwrap() error { return e.Err }

func (e *TokenError) Is(target error) bool { return target == e.sentinel() }

func (e *TokenError) sentinel() error {
	switch e.Kind {
	case TokenExpired:
		return ErrTokenExpired
	case TokenBadSignature:
		return ErrTokenBadSignature
	case TokenMalformed:
		return ErrTokenMalformed
	}
	return ErrTokenInvalid
}

// Claims is the payload carried by an issued token.
type Claims struct {
	AdminID  int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RoleNames splits the comma-joined role claim.
func (c *Claims) RoleNames() []string {
	var out []string
	for _, r := range strings.Split(c.Role, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

const tokenIssuer = "sleepplanet"

// TokenService issues and validates HS256 signed credentials.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService or a *ConfigError when secret is
// empty or ttl is shorter than one second.
func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TokenService) check() error {
	if len(s.secret) == 0 {
		return &ConfigError{Reason: "secret is empty"}
	}
	if s.ttl < time.Second {
		return &ConfigError{Reason: fmt.Sprintf("ttl must be at least 1s, got %s", s.ttl)}
	}
	return nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for the administrator that expires ttl from now, at
// whole-second precision.
func (s *TokenService) Issue(adminID int64, username string, roles []string) (string, time.Time, error) {
	if err := s.check(); err != nil {
		return "", time.Time{}, err
	}

	now := s.now().Truncate(time.Second)
	exp := now.Add(s.ttl)
	claims := Claims{
		AdminID:  adminID,
		Username: username,
		Role:     strings.Join(roles, ","),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Validate verifies the signature and expiry of token and returns its claims.
// A token is expired at its exp second, not after it.
func (s *TokenService) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(0),
		jwt.WithStrictDecoding(),
	)

	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if signatureUndecodable(token) {
			return nil, &TokenError{Kind: TokenBadSignature, Err: err}
		}
		return nil, classify(err)
	}
	if !claims.ExpiresAt.After(s.now()) {
		return nil, &TokenError{Kind: TokenExpired}
	}
	return claims, nil
}

func classify(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &TokenError{Kind: TokenBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &TokenError{Kind: TokenMalformed, Err: err}
	}
	return &TokenError{Kind: TokenOther, Err: err}
}

// signatureUndecodable reports whether token has a decodable header and
// payload but a signature segment that is not strict base64url.
func signatureUndecodable(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	enc := base64.RawURLEncoding.Strict()
	for _, p := range parts[:2] {
		seg, err := enc.DecodeString(p)
		if err != nil || !json.Valid(seg) {
			return false
		}
	}
	_, err := enc.DecodeString(parts[2])
	return err != nil
}
