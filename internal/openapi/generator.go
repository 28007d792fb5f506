package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/sleepplanet/sleepplanet/internal/model"
	"github.com/sleepplanet/sleepplanet/internal/service"
)

// Version of the admin API document.
const Version = "1.0.0"

const basePath = "/api/v1/sys"

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createdBody struct {
	ID int64 `json:"id"`
}

// GenerateAdminSpec builds the OpenAPI 3.0 document for the admin API.
func GenerateAdminSpec(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "SleepPlanet Admin API",
			Description: "Administrator login and lifecycle management.",
			Version:     Version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Components.SecuritySchemes["cookieAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "cookie",
			Name: "jwt_token",
		},
	}

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
	doc.Components.Schemas["LoginRequest"] = structSchema(loginBody{})
	doc.Components.Schemas["LoginResult"] = structSchema(service.LoginResult{})
	doc.Components.Schemas["CreateAdminRequest"] = structSchema(service.CreateAdminInput{})
	doc.Components.Schemas["AdminSummary"] = structSchema(model.AdminSummary{})

	doc.Paths = openapi3.NewPaths()
	addPaths(doc)
	return doc
}

func addPaths(doc *openapi3.T) {
	secured := &openapi3.SecurityRequirements{
		{"bearerAuth": {}},
		{"cookieAuth": {}},
	}
	noAuth := &openapi3.SecurityRequirements{}

	login := &openapi3.Operation{
		Tags:        []string{"session"},
		Summary:     "Log in",
		Description: "Checks username and password and issues a bearer token, also set as the jwt_token cookie.",
		OperationID: "login",
		Security:    noAuth,
		RequestBody: jsonBody("Credentials", "#/components/schemas/LoginRequest"),
		Responses: newResponses("200", "Login succeeded",
			envelope(openapi3.NewSchemaRef("#/components/schemas/LoginResult", nil)),
			"400", "401", "429"),
	}
	doc.Paths.Set(basePath+"/login", &openapi3.PathItem{Post: login})

	logout := &openapi3.Operation{
		Tags:        []string{"session"},
		Summary:     "Log out",
		Description: "Clears the jwt_token cookie.",
		OperationID: "logout",
		Security:    secured,
		Responses:   newResponses("200", "Logged out", envelope(nil), "401", "403"),
	}
	doc.Paths.Set(basePath+"/logout", &openapi3.PathItem{Post: logout})

	list := &openapi3.Operation{
		Tags:        []string{"admins"},
		Summary:     "List administrators",
		Description: "Returns every active administrator with its roles. Requires super_admin.",
		OperationID: "listAdmins",
		Security:    secured,
		Responses: newResponses("200", "Active administrators",
			envelope(listSchema("#/components/schemas/AdminSummary")),
			"401", "403"),
	}
	create := &openapi3.Operation{
		Tags:        []string{"admins"},
		Summary:     "Create an administrator",
		Description: "Creates an administrator and assigns its roles in one transaction. Requires super_admin.",
		OperationID: "createAdmin",
		Security:    secured,
		RequestBody: jsonBody("New administrator", "#/components/schemas/CreateAdminRequest"),
		Responses: newResponses("201", "Administrator created",
			envelope(structSchema(createdBody{})),
			"400", "401", "403", "404", "409"),
	}
	doc.Paths.Set(basePath+"/admins", &openapi3.PathItem{Get: list, Post: create})

	freeze := func(id string) *openapi3.Operation {
		return &openapi3.Operation{
			Tags:        []string{"admins"},
			Summary:     "Freeze an administrator",
			Description: "Deactivates an administrator. Existing tokens stop working. Requires super_admin.",
			OperationID: id,
			Security:    secured,
			Parameters:  openapi3.Parameters{idParameter()},
			Responses:   newResponses("200", "Administrator frozen", envelope(nil), "400", "401", "403", "404", "409"),
		}
	}
	doc.Paths.Set(basePath+"/admins/{id}/freeze", &openapi3.PathItem{
		Get:  freeze("freezeAdminGet"),
		Post: freeze("freezeAdmin"),
	})

	del := &openapi3.Operation{
		Tags:        []string{"admins"},
		Summary:     "Delete an administrator",
		Description: "Removes an active administrator and its role assignments. Requires super_admin.",
		OperationID: "deleteAdmin",
		Security:    secured,
		Parameters:  openapi3.Parameters{idParameter()},
		Responses:   newResponses("200", "Administrator deleted", envelope(nil), "400", "401", "403", "404", "409"),
	}
	doc.Paths.Set(basePath+"/admins/{id}/delete", &openapi3.PathItem{Post: del})
}

// ─── Schema Builders ────────────────────────────────────────────────────────

// envelope wraps data in the {"code","message","data"} success envelope.
func envelope(data *openapi3.SchemaRef) *openapi3.SchemaRef {
	if data == nil {
		data = &openapi3.SchemaRef{Value: &openapi3.Schema{Nullable: true}}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
				"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"data":    data,
			},
			Required: []string{"code", "message", "data"},
		},
	}
}

// listSchema describes {"resource": [...], "meta": {"count": n}}.
func listSchema(itemRef string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"resource": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: openapi3.NewSchemaRef(itemRef, nil),
					},
				},
				"meta": metaSchema(),
			},
		},
	}
}

// metaSchema returns the schema for the "meta" field in list responses.
func metaSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"count": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"integer"},
						Format:      "int64",
						Description: "Number of records returned.",
					},
				},
			},
		},
	}
}

func jsonBody(description, ref string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(ref, nil)),
		},
	}
}

func idParameter() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        "id",
			In:          "path",
			Required:    true,
			Description: "Administrator ID",
			Schema: &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"},
			},
		},
	}
}

// ─── Responses ──────────────────────────────────────────────────────────────

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"403": "Forbidden",
	"404": "Not found",
	"409": "Conflict",
	"429": "Too many requests",
	"500": "Internal server error",
}

// newResponses builds the success response plus the listed error responses.
// 500 is always included.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for _, code := range append(errorCodes, "500") {
		desc := errorDescriptions[code]
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}

	return responses
}
