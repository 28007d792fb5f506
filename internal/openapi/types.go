package openapi

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// TypeMapping maps Go types to OpenAPI type/format pairs.
type TypeMapping struct {
	Type   string // OpenAPI type: string, integer, number, boolean, object, array
	Format string // OpenAPI format: int32, int64, float, double, date-time, etc.
}

var timeType = reflect.TypeOf(time.Time{})

// MapGoType converts a Go type to an OpenAPI type mapping. Pointers are
// dereferenced. Unknown kinds fall back to {"string", ""}.
func MapGoType(t reflect.Type) TypeMapping {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return TypeMapping{"string", "date-time"}
	}

	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint8, reflect.Uint16:
		return TypeMapping{"integer", "int32"}
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return TypeMapping{"integer", "int64"}
	case reflect.Float32:
		return TypeMapping{"number", "float"}
	case reflect.Float64:
		return TypeMapping{"number", "double"}
	case reflect.Bool:
		return TypeMapping{"boolean", ""}
	case reflect.Slice, reflect.Array:
		return TypeMapping{"array", ""}
	case reflect.Struct, reflect.Map, reflect.Interface:
		return TypeMapping{"object", ""}
	}
	return TypeMapping{"string", ""}
}

// structSchema builds an object schema from v's exported, JSON-visible fields.
// Pointer fields and fields tagged omitempty are optional and nullable; all
// others are required.
func structSchema(v interface{}) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: typeSchema(reflect.TypeOf(v))}
}

func typeSchema(t reflect.Type) *openapi3.Schema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	m := MapGoType(t)
	s := columnTypeSchema(m)

	switch {
	case m.Type == "array":
		s.Items = &openapi3.SchemaRef{Value: typeSchema(t.Elem())}
	case t.Kind() == reflect.Struct && t != timeType:
		s.Properties = openapi3.Schemas{}
		addFields(s, t)
	}
	return s
}

func addFields(s *openapi3.Schema, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			addFields(s, f.Type)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}

		fs := typeSchema(f.Type)
		optional := f.Type.Kind() == reflect.Pointer || strings.Contains(opts, "omitempty")
		if f.Type.Kind() == reflect.Pointer {
			fs.Nullable = true
		}
		s.Properties[name] = &openapi3.SchemaRef{Value: fs}
		if !optional {
			s.Required = append(s.Required, name)
		}
	}
}

// columnTypeSchema creates a bare schema for a type mapping.
func columnTypeSchema(m TypeMapping) *openapi3.Schema {
	s := &openapi3.Schema{
		Type: &openapi3.Types{m.Type},
	}
	if m.Format != "" {
		s.Format = m.Format
	}
	if m.Type == "array" {
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
	return s
}
