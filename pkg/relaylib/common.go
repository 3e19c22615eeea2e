package relaylib

import (
	"encoding/json"
	"net/http"
)

// CHECK panics on err. It is meant for start-up invariants only; request
// paths return errors.
func CHECK(err error) {
	if err != nil {
		panic(err)
	}
}

// Response is what a function returns for one invocation.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Header names shared by every response.
const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderContentType  = "Content-Type"
	ContentTypeJSON    = "application/json"
	AllowOriginAnyHost = "*"
)

// JSON encodes v as the body of a response with the given status and the
// permissive origin header.
func JSON(status int, v interface{}) Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "Erreur de soumission", "details": err.Error()})
	}
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			HeaderAllowOrigin: AllowOriginAnyHost,
			HeaderContentType: ContentTypeJSON,
		},
		Body: string(body),
	}
}

// Preflight answers a CORS preflight request.
func Preflight() Response {
	return Response{
		StatusCode: http.StatusNoContent,
		Headers: map[string]string{
			HeaderAllowOrigin:              AllowOriginAnyHost,
			"Access-Control-Allow-Methods": "POST, OPTIONS",
			"Access-Control-Allow-Headers": "Content-Type",
			"Access-Control-Max-Age":       "86400",
		},
	}
}
