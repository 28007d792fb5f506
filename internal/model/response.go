package model

// Response is the success envelope returned by every admin endpoint.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ListMeta describes a list payload.
type ListMeta struct {
	Count int `json:"count"`
}

// ListData wraps list results with their metadata.
type ListData struct {
	Resource interface{} `json:"resource"`
	Meta     ListMeta    `json:"meta"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}
