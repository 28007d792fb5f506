package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sleepplanet/sleepplanet/internal/metrics"
	"github.com/sleepplanet/sleepplanet/internal/service"
)

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetRequestID(r.Context())
		if id == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if respID == "" {
		t.Error("expected X-Request-ID in response header")
	}
	// UUID v7 format check: 36 chars with dashes
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetRequestID(r.Context())
		if id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if respID != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, respID)
	}
}

func TestRequestIDReplacesUnsafeClientID(t *testing.T) {
	for _, clientID := range []string{
		"line\nbreak",
		"has space",
		strings.Repeat("a", maxRequestIDLen+1),
	} {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", clientID)
		rr := httptest.NewRecorder()
		RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rr, req)

		got := rr.Header().Get("X-Request-ID")
		if got == clientID || len(got) != 36 {
			t.Errorf("client ID %q: expected a generated UUID, got %q", clientID, got)
		}
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	id := GetRequestID(context.Background())
	if id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Guard middleware tests
// ---------------------------------------------------------------------------

type fakeAccounts struct {
	active map[int64]bool
	err    error
}

func (f *fakeAccounts) IsActive(_ context.Context, id int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.active[id], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTokens(t *testing.T, now func() time.Time) *service.TokenService {
	t.Helper()
	ts, err := service.NewTokenService("guard-test-secret", time.Hour, service.WithClock(now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// runGuard sends req through Guard and returns the AuthResult the handler saw.
func runGuard(t *testing.T, tokens TokenValidator, accounts AccountChecker, req *http.Request) AuthResult {
	t.Helper()
	var got AuthResult
	var called bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got = AuthFrom(r.Context())
	})
	Guard(tokens, accounts, metrics.New(), discardLogger())(inner).ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatal("guard did not call the next handler")
	}
	return got
}

func TestGuardClassification(t *testing.T) {
	clock := time.Now()
	tokens := newTokens(t, func() time.Time { return clock })
	accounts := &fakeAccounts{active: map[int64]bool{1: true, 2: false}}

	valid, _, _ := tokens.Issue(1, "alice", []string{"super_admin"})
	frozen, _, _ := tokens.Issue(2, "bob_ed", []string{"editor"})

	pastTokens := newTokens(t, func() time.Time { return clock.Add(-2 * time.Hour) })
	expired, _, _ := pastTokens.Issue(1, "alice", nil)

	other, _ := service.NewTokenService("some-other-secret", time.Hour)
	forged, _, _ := other.Issue(1, "alice", []string{"super_admin"})

	tests := []struct {
		name       string
		token      string
		wantState  AuthState
		wantReason string
		wantStatus int
	}{
		{"missing", "", Unauthorized, ReasonMissing, http.StatusUnauthorized},
		{"valid", valid, Authorized, "", 0},
		{"expired", expired, Forbidden, ReasonExpired, http.StatusForbidden},
		{"bad signature", forged, Forbidden, ReasonSignature, http.StatusForbidden},
		{"malformed", "not.a.jwt", Forbidden, ReasonMalformed, http.StatusForbidden},
		{"frozen account", frozen, Forbidden, ReasonDisabled, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/sys/admins", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			got := runGuard(t, tokens, accounts, req)
			if got.State != tt.wantState {
				t.Errorf("state: got %s, want %s", got.State, tt.wantState)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("reason: got %q, want %q", got.Reason, tt.wantReason)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status: got %d, want %d", got.Status, tt.wantStatus)
			}
			if tt.wantState == Authorized && (got.Claims == nil || got.Claims.AdminID != 1) {
				t.Errorf("expected claims for admin 1, got %+v", got.Claims)
			}
		})
	}
}

type stubValidator struct{ err error }

func (s stubValidator) Validate(string) (*service.Claims, error) { return nil, s.err }

func TestGuardOtherTokenErrorIsUnauthorizedStatus(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer x")

	got := runGuard(t, stubValidator{err: &service.TokenError{Kind: service.TokenOther}}, nil, req)
	if got.State != Forbidden || got.Reason != ReasonRejected || got.Status != http.StatusUnauthorized {
		t.Errorf("got %+v", got)
	}
}

func TestGuardAccountLookupFailure(t *testing.T) {
	tokens := newTokens(t, time.Now)
	token, _, _ := tokens.Issue(1, "alice", nil)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	got := runGuard(t, tokens, &fakeAccounts{err: errors.New("db down")}, req)
	if got.State != Forbidden || got.Reason != ReasonRejected {
		t.Errorf("got %+v", got)
	}
}

func TestExtractTokenOrder(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		cookie string
		want   string
	}{
		{"header wins", "Bearer from-header", "from-query", "from-cookie", "from-header"},
		{"lowercase scheme", "bearer from-header", "", "", "from-header"},
		{"query before cookie", "", "from-query", "from-cookie", "from-query"},
		{"cookie last", "", "", "from-cookie", "from-cookie"},
		{"non-bearer header ignored", "Basic abc", "", "from-cookie", "from-cookie"},
		{"empty bearer ignored", "Bearer ", "from-query", "", "from-query"},
		{"nothing", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/x"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			if got := ExtractToken(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthFromWithoutGuard(t *testing.T) {
	got := AuthFrom(context.Background())
	if got.State != Unauthorized || got.Reason != ReasonMissing {
		t.Errorf("got %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Logger and RateLimit middleware tests
// ---------------------------------------------------------------------------

func TestLoggerOmitsQueryString(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	req := httptest.NewRequest("GET", "/api/v1/sys/admins?token=secret-token", nil)
	Logger(logger)(inner).ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "secret-token") {
		t.Errorf("log line leaked the token: %s", out)
	}
	if !strings.Contains(out, "status=403") || !strings.Contains(out, "level=WARN") {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestLoggerQuietProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	Logger(logger)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	if buf.Len() != 0 {
		t.Errorf("expected probe request below info level, got %s", buf.String())
	}
}

func TestRateLimit(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(2)(inner)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/v1/sys/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("got codes %v, want [200 200 429]", codes)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(0)(inner)
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, rr.Code)
		}
	}
}
