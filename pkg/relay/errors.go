package relay

import (
	"context"
	"errors"
	"net/http"
)

// Error categories of the relay. A *Failure matches its category with
// errors.Is.
var (
	ErrClientInput     = errors.New("client input")
	ErrServerConfig    = errors.New("server configuration")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrUpstreamHTTP    = errors.New("upstream http error")
	ErrUpstreamParse   = errors.New("upstream parse error")
	// ErrFunctional is raised by callers when the webservice answers with
	// an error indicator despite an HTTP success.
	ErrFunctional = errors.New("functional error")
)

// Failure is a classified relay error together with the envelope sent back
// to the caller.
type Failure struct {
	kind error
	// Message is the `error` field of the envelope.
	Message string
	// Details are merged into the envelope next to `error`.
	Details map[string]interface{}
	Err     error
}

func newFailure(kind error, message string, details map[string]interface{}, err error) *Failure {
	return &Failure{kind: kind, Message: message, Details: details, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Message + ": " + f.Err.Error()
	}
	return f.Message
}

func (f *Failure) Is(target error) bool { return target == f.kind }

func (f *Failure) Unwrap() error { return f.Err }

// Envelope returns the JSON body of the failure.
func (f *Failure) Envelope() map[string]interface{} {
	out := make(map[string]interface{}, len(f.Details)+1)
	for k, v := range f.Details {
		out[k] = v
	}
	out["error"] = f.Message
	return out
}

var kindToStatus = map[string]int{
	"client_input":     http.StatusBadRequest,
	"server_config":    http.StatusInternalServerError,
	"upstream_timeout": http.StatusInternalServerError,
	"upstream_http":    http.StatusBadGateway,
	"upstream_parse":   http.StatusBadGateway,
	"functional":       http.StatusOK,
}

// Kind returns a short label for the category of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrClientInput):
		return "client_input"
	case errors.Is(err, ErrServerConfig):
		return "server_config"
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return "upstream_timeout"
	case errors.Is(err, ErrUpstreamHTTP):
		return "upstream_http"
	case errors.Is(err, ErrUpstreamParse):
		return "upstream_parse"
	case errors.Is(err, ErrFunctional):
		return "functional"
	default:
		return "internal"
	}
}

// HTTPStatus maps err to the status code of the relay response.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[Kind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}
