package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sleepplanet/sleepplanet/internal/metrics"
	"github.com/sleepplanet/sleepplanet/internal/service"
)

type contextKeyAuth string

// AuthResultKey is the context key for the request's AuthResult.
const AuthResultKey contextKeyAuth = "auth_result"

// TokenCookie is the cookie that carries the credential for browser clients.
const TokenCookie = "jwt_token"

// AuthState is the outcome of the authorization guard.
type AuthState int

const (
	// Unauthorized means no credential was presented.
	Unauthorized AuthState = iota
	// Forbidden means a credential was presented and rejected.
	Forbidden
	// Authorized means the credential is valid and the account is active.
	Authorized
)

func (s AuthState) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Forbidden:
		return "forbidden"
	}
	return "unauthorized"
}

// Guard rejection messages.
const (
	ReasonMissing   = "credential missing, please login"
	ReasonExpired   = "credential expired, please re-login"
	ReasonSignature = "invalid credential, please re-login"
	ReasonMalformed = "malformed credential, check request format"
	ReasonRejected  = "credential rejected"
	ReasonDisabled  = "account disabled"
)

// AuthResult is attached to every request that passes through Guard.
type AuthResult struct {
	State  AuthState
	Claims *service.Claims // set when Authorized
	Reason string          // set otherwise
	Status int             // HTTP status to answer with when not Authorized
}

// TokenValidator verifies a bearer credential.
type TokenValidator interface {
	Validate(token string) (*service.Claims, error)
}

// AccountChecker reports whether an administrator may still use a credential.
type AccountChecker interface {
	IsActive(ctx context.Context, adminID int64) (bool, error)
}

// Guard returns an HTTP middleware that classifies the request's credential
// exactly once and attaches the AuthResult to the context. It never writes a
// response itself; handlers decide what to do with each state.
//
// The credential is looked up in this order:
//
//  1. Authorization: Bearer <token>
//  2. the token query parameter
//  3. the jwt_token cookie
func Guard(tokens TokenValidator, accounts AccountChecker, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := authorize(r, tokens, accounts, logger)
			m.Guard(res.State.String(), metricReason(res.Reason))

			ctx := context.WithValue(r.Context(), AuthResultKey, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authorize(r *http.Request, tokens TokenValidator, accounts AccountChecker, logger *slog.Logger) AuthResult {
	token := ExtractToken(r)
	if token == "" {
		return AuthResult{State: Unauthorized, Reason: ReasonMissing, Status: http.StatusUnauthorized}
	}

	claims, err := tokens.Validate(token)
	if err != nil {
		return rejection(err)
	}

	if accounts != nil {
		active, err := accounts.IsActive(r.Context(), claims.AdminID)
		if err != nil {
			logger.Error("account status lookup failed",
				"admin_id", claims.AdminID,
				"request_id", GetRequestID(r.Context()),
				"error", err,
			)
			return AuthResult{State: Forbidden, Reason: ReasonRejected, Status: http.StatusForbidden}
		}
		if !active {
			return AuthResult{State: Forbidden, Reason: ReasonDisabled, Status: http.StatusForbidden}
		}
	}

	return AuthResult{State: Authorized, Claims: claims}
}

func rejection(err error) AuthResult {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return AuthResult{State: Forbidden, Reason: ReasonExpired, Status: http.StatusForbidden}
	case errors.Is(err, service.ErrTokenBadSignature):
		return AuthResult{State: Forbidden, Reason: ReasonSignature, Status: http.StatusForbidden}
	case errors.Is(err, service.ErrTokenMalformed):
		return AuthResult{State: Forbidden, Reason: ReasonMalformed, Status: http.StatusForbidden}
	}
	return AuthResult{State: Forbidden, Reason: ReasonRejected, Status: http.StatusUnauthorized}
}

func metricReason(reason string) string {
	switch reason {
	case "":
		return "ok"
	case ReasonMissing:
		return "missing"
	case ReasonExpired:
		return "expired"
	case ReasonSignature:
		return "bad_signature"
	case ReasonMalformed:
		return "malformed"
	case ReasonDisabled:
		return "disabled"
	}
	return "other"
}

// ExtractToken returns the first non-empty credential found in the request.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// AuthFrom returns the AuthResult attached by Guard. A request that never
// passed through Guard is treated as carrying no credential.
func AuthFrom(ctx context.Context) AuthResult {
	if res, ok := ctx.Value(AuthResultKey).(AuthResult); ok {
		return res
	}
	return AuthResult{State: Unauthorized, Reason: ReasonMissing, Status: http.StatusUnauthorized}
}
