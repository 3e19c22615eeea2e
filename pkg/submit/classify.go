package submit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cdl-rdv/formrelay/pkg/relay"
)

const (
	genericFailure = "Erreur lors de la soumission du formulaire"
	unknownRef     = "Inconnue"
)

// Result is a successful submission as understood by the controller.
type Result struct {
	// Reference is the order or contact reference returned by the
	// webservice, empty when it sent none.
	Reference string
	// TestMode is set when the webservice answered in test mode.
	TestMode bool
}

// Text is the success notice shown to the visitor.
func (r Result) Text() string {
	if r.TestMode {
		return "Votre message a été envoyé avec succès (mode test)."
	}
	ref := r.Reference
	if ref == "" {
		ref = unknownRef
	}
	return "Votre message a été envoyé avec succès. Référence: " + ref
}

// RejectedError is returned when the webservice answered with its error
// indicator set. It matches relay.ErrFunctional.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

func (e *RejectedError) Unwrap() error { return relay.ErrFunctional }

// HTTPError is a non-2xx reply of the relay.
type HTTPError struct {
	StatusCode int
	StatusText string
	// Reason and Details come from the relay error envelope, when the body
	// was one.
	Reason  string
	Details string
}

func (e *HTTPError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Erreur HTTP %d: %s", e.StatusCode, e.StatusText)
	if e.Reason != "" {
		b.WriteString(" - " + e.Reason)
	}
	if e.Details != "" {
		b.WriteString(" (" + e.Details + ")")
	}
	return b.String()
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
	}
	var envelope struct {
		Error   string      `json:"error"`
		Details interface{} `json:"details"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		e.Reason = envelope.Error
		if envelope.Details != nil {
			e.Details = fmt.Sprint(envelope.Details)
		}
	}
	return e
}

// Classify interprets the decoded JSON reply of the relay. A string reply,
// or an object whose erreur is 0 or "0", is a success; anything else is a
// *RejectedError.
func Classify(reply interface{}) (Result, error) {
	switch r := reply.(type) {
	case string:
		return Result{Reference: r, TestMode: strings.Contains(r, "TEST")}, nil
	case map[string]interface{}:
		if isZero(r["erreur"]) {
			ref := text(r["id_commande"])
			if ref == "" {
				ref = text(r["id_contact"])
			}
			return Result{Reference: ref}, nil
		}
		msg := text(r["message_erreur"])
		if msg == "" {
			msg = text(r["erreur"])
		}
		if msg == "" {
			msg = genericFailure
		}
		return Result{}, &RejectedError{Message: msg}
	default:
		return Result{}, &RejectedError{Message: genericFailure}
	}
}

func isZero(v interface{}) bool {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	case float64:
		return x == 0
	case string:
		return x == "0"
	default:
		return false
	}
}

// text renders a JSON scalar, "" for null, false and empty values.
func text(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if !x {
			return ""
		}
		return "true"
	default:
		return fmt.Sprint(x)
	}
}

// Reword turns a submission error into the notice shown to the visitor.
func Reword(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "methode inconnue"):
		return "Erreur de configuration: La méthode API n'est pas reconnue."
	case strings.Contains(msg, "Timeout"):
		return "Délai d'attente dépassé. Veuillez réessayer."
	case strings.Contains(msg, "Configuration du serveur"):
		return "Erreur de configuration du serveur. Contactez l'administrateur."
	default:
		return "Erreur: " + msg
	}
}
