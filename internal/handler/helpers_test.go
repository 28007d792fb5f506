package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// ---------------------------------------------------------------------------
// writeError / writeJSON / writeOK tests
// ---------------------------------------------------------------------------

func TestWriteError(t *testing.T) {
	t.Run("writes JSON error response", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeError(w, http.StatusBadRequest, "Invalid input")

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body := w.Body.String()
		if !strings.Contains(body, `"code":400`) {
			t.Errorf("expected code 400 in body: %s", body)
		}
		if !strings.Contains(body, `"message":"Invalid input"`) {
			t.Errorf("expected message in body: %s", body)
		}
	})
}

func TestWriteJSON(t *testing.T) {
	t.Run("writes JSON with correct content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeJSON(w, http.StatusOK, map[string]string{"hello": "world"})

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body := w.Body.String()
		if !strings.Contains(body, `"hello":"world"`) {
			t.Errorf("expected JSON body, got: %s", body)
		}
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	writeOK(w, http.StatusCreated, "created", map[string]int{"id": 7})

	body := w.Body.String()
	for _, want := range []string{`"code":201`, `"message":"created"`, `"data":{"id":7}`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in body: %s", want, body)
		}
	}
}

// ---------------------------------------------------------------------------
// readJSON tests
// ---------------------------------------------------------------------------

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"name":"x","admin":true}`, true},
		{"trailing object", `{"name":"x"}{"name":"y"}`, true},
		{"not json", `name=x`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			var p payload
			err := readJSON(httptest.NewRecorder(), r, &p)
			if (err != nil) != tt.wantErr {
				t.Errorf("readJSON err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadJSONTooLarge(t *testing.T) {
	big := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest("POST", "/", strings.NewReader(big))
	var p struct {
		Name string `json:"name"`
	}
	if err := readJSON(httptest.NewRecorder(), r, &p); err == nil {
		t.Error("expected error for oversized body")
	}
}

// ---------------------------------------------------------------------------
// pathID tests
// ---------------------------------------------------------------------------

func TestPathID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.raw)
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			got, err := pathID(r, "id")
			if (err != nil) != tt.wantErr {
				t.Fatalf("pathID(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("pathID(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
