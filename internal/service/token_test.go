package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTokens(t *testing.T, ttl time.Duration) (*TokenService, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ts, err := NewTokenService("test-secret-key-for-jwt", ttl, WithClock(clock.Now))
	require.NoError(t, err)
	return ts, clock
}

func TestNewTokenServiceConfigErrors(t *testing.T) {
	_, err := NewTokenService("", time.Hour)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewTokenService("secret", 0)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewTokenService("secret", 500*time.Millisecond)
	assert.ErrorIs(t, err, ErrConfig)

	var cfgErr *ConfigError
	_, err = NewTokenService("secret", -time.Second)
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "ttl")
}

func TestIssueValidateRoundTrip(t *testing.T) {
	ts, clock := newTestTokens(t, time.Hour)

	token, exp, err := ts.Issue(42, "alice", []string{"super_admin", "editor"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), exp)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AdminID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "super_admin,editor", claims.Role)
	assert.Equal(t, []string{"super_admin", "editor"}, claims.RoleNames())
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestIssueUsesWholeSeconds(t *testing.T) {
	ts, clock := newTestTokens(t, 90*time.Second)
	clock.Advance(750 * time.Millisecond)

	_, exp, err := ts.Issue(1, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, exp.Nanosecond())
}

func TestValidateExpiry(t *testing.T) {
	ts, clock := newTestTokens(t, time.Minute)

	token, _, err := ts.Issue(1, "alice", []string{"viewer"})
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = ts.Validate(token)
	require.NoError(t, err, "still valid one second before exp")

	clock.Advance(time.Second)
	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired, "expired exactly at exp")

	clock.Advance(time.Hour)
	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	var tokErr *TokenError
	require.True(t, errors.As(err, &tokErr))
	assert.Equal(t, TokenExpired, tokErr.Kind)
}

func TestValidateTamperedSignature(t *testing.T) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	ts, _ := newTestTokens(t, time.Hour)
	token, _, err := ts.Issue(1, "alice", []string{"viewer"})
	require.NoError(t, err)
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	tests := []struct {
		name   string
		tamper func(sig []byte)
	}{
		{"middle byte", func(sig []byte) {
			mid := len(sig) / 2
			if sig[mid] == 'A' {
				sig[mid] = 'B'
			} else {
				sig[mid] = 'A'
			}
		}},
		{"trailing padding bit", func(sig []byte) {
			last := len(sig) - 1
			idx := strings.IndexByte(alphabet, sig[last])
			require.GreaterOrEqual(t, idx, 0)
			sig[last] = alphabet[idx^1]
		}},
		{"first byte outside alphabet", func(sig []byte) { sig[0] = '*' }},
		{"last byte outside alphabet", func(sig []byte) { sig[len(sig)-1] = '!' }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := []byte(parts[2])
			tt.tamper(sig)
			require.NotEqual(t, parts[2], string(sig))
			tampered := parts[0] + "." + parts[1] + "." + string(sig)

			claims, err := ts.Validate(tampered)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrTokenBadSignature)
			assert.NotErrorIs(t, err, ErrTokenMalformed)
			assert.NotErrorIs(t, err, ErrTokenExpired)
		})
	}
}

func TestValidateWrongSecret(t *testing.T) {
	ts, clock := newTestTokens(t, time.Hour)
	other, err := NewTokenService("another-secret", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	token, _, err := other.Issue(1, "alice", nil)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, ErrTokenBadSignature)
}

func TestValidateMalformed(t *testing.T) {
	ts, _ := newTestTokens(t, time.Hour)

	for _, token := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := ts.Validate(token)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", token)
	}
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	ts, clock := newTestTokens(t, time.Hour)

	claims := Claims{
		AdminID:  1,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret-key-for-jwt"))
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRequiresExpiry(t *testing.T) {
	ts, _ := newTestTokens(t, time.Hour)

	claims := Claims{AdminID: 1, Username: "alice"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-for-jwt"))
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRoleNamesDropsEmpty(t *testing.T) {
	c := &Claims{Role: "admin,,editor, "}
	assert.Equal(t, []string{"admin", "editor"}, c.RoleNames())
	assert.Nil(t, (&Claims{}).RoleNames())
}
