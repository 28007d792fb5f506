package openapi

import (
	"encoding/json"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/sleepplanet/sleepplanet/internal/model"
)

// ─── MapGoType Tests ────────────────────────────────────────────────────────

func TestMapGoType(t *testing.T) {
	var phone *string
	tests := []struct {
		name       string
		v          interface{}
		wantType   string
		wantFormat string
	}{
		{"int64", int64(1), "integer", "int64"},
		{"int", 1, "integer", "int64"},
		{"int32", int32(1), "integer", "int32"},
		{"uint8", uint8(1), "integer", "int32"},
		{"float32", float32(1), "number", "float"},
		{"float64", 1.0, "number", "double"},
		{"bool", true, "boolean", ""},
		{"string", "", "string", ""},
		{"pointer to string", phone, "string", ""},
		{"time", time.Time{}, "string", "date-time"},
		{"slice", []string{}, "array", ""},
		{"map", map[string]int{}, "object", ""},
		{"struct", model.Role{}, "object", ""},
		{"channel falls back", make(chan int), "string", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapGoType(reflect.TypeOf(tt.v))
			if got.Type != tt.wantType || got.Format != tt.wantFormat {
				t.Errorf("MapGoType(%T) = %+v, want {%s %s}", tt.v, got, tt.wantType, tt.wantFormat)
			}
		})
	}
}

// ─── structSchema Tests ─────────────────────────────────────────────────────

func TestStructSchema_AdminSummary(t *testing.T) {
	s := structSchema(model.AdminSummary{}).Value

	for _, name := range []string{"id", "username", "email", "phone_number", "is_active", "roles", "created_at", "updated_at"} {
		if _, ok := s.Properties[name]; !ok {
			t.Errorf("missing property %q", name)
		}
	}
	if _, ok := s.Properties["password_hash"]; ok {
		t.Error("password_hash must not be documented")
	}

	phone := s.Properties["phone_number"].Value
	if !phone.Nullable {
		t.Error("phone_number should be nullable")
	}
	if slices.Contains(s.Required, "phone_number") {
		t.Error("phone_number should be optional")
	}
	if !slices.Contains(s.Required, "username") {
		t.Error("username should be required")
	}

	roles := s.Properties["roles"].Value
	if roles.Items == nil || !roles.Items.Value.Type.Is("string") {
		t.Errorf("roles items = %+v, want string", roles.Items)
	}
	if s.Properties["created_at"].Value.Format != "date-time" {
		t.Error("created_at should be date-time")
	}
}

func TestStructSchema_SkipsHiddenAndEmbedded(t *testing.T) {
	type inner struct {
		Inner string `json:"inner"`
	}
	type sample struct {
		inner
		Visible string `json:"visible"`
		Hidden  string `json:"-"`
		Untag   int
		private string
	}
	s := structSchema(sample{}).Value

	if _, ok := s.Properties["inner"]; !ok {
		t.Error("embedded struct fields should be flattened")
	}
	if _, ok := s.Properties["Untag"]; !ok {
		t.Error("untagged exported field should use its Go name")
	}
	if _, ok := s.Properties["Hidden"]; ok {
		t.Error("json:\"-\" field should be skipped")
	}
	if len(s.Properties) != 3 {
		t.Errorf("expected 3 properties, got %d", len(s.Properties))
	}
}

// ─── GenerateAdminSpec Tests ────────────────────────────────────────────────

func TestGenerateAdminSpec(t *testing.T) {
	doc := GenerateAdminSpec("http://localhost:5800")

	if doc.OpenAPI != "3.0.3" {
		t.Errorf("OpenAPI = %q", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:5800" {
		t.Errorf("unexpected servers: %+v", doc.Servers)
	}

	wantOps := map[string][]string{
		"/api/v1/sys/login":              {"POST"},
		"/api/v1/sys/logout":             {"POST"},
		"/api/v1/sys/admins":             {"GET", "POST"},
		"/api/v1/sys/admins/{id}/freeze": {"GET", "POST"},
		"/api/v1/sys/admins/{id}/delete": {"POST"},
	}
	if doc.Paths.Len() != len(wantOps) {
		t.Errorf("expected %d paths, got %d", len(wantOps), doc.Paths.Len())
	}
	for path, methods := range wantOps {
		item := doc.Paths.Value(path)
		if item == nil {
			t.Errorf("missing path %s", path)
			continue
		}
		for _, m := range methods {
			if item.GetOperation(m) == nil {
				t.Errorf("%s %s: missing operation", m, path)
			}
		}
	}

	login := doc.Paths.Value("/api/v1/sys/login").Post
	if login.Security == nil || len(*login.Security) != 0 {
		t.Error("login should override global security with none")
	}
	if login.Responses.Value("429") == nil {
		t.Error("login should document 429")
	}

	create := doc.Paths.Value("/api/v1/sys/admins").Post
	if create.Responses.Value("201") == nil || create.Responses.Value("409") == nil {
		t.Error("create should document 201 and 409")
	}
	if create.Security == nil || len(*create.Security) != 2 {
		t.Error("create should accept bearer or cookie credentials")
	}

	for _, name := range []string{"ErrorResponse", "LoginRequest", "LoginResult", "CreateAdminRequest", "AdminSummary"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("missing component schema %s", name)
		}
	}
	if _, ok := doc.Components.SecuritySchemes["bearerAuth"]; !ok {
		t.Error("missing bearerAuth security scheme")
	}
}

func TestGenerateAdminSpec_JSON(t *testing.T) {
	doc := GenerateAdminSpec("https://api.example.com")

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	info, _ := raw["info"].(map[string]interface{})
	if info["version"] != Version {
		t.Errorf("info.version = %v, want %s", info["version"], Version)
	}
}
