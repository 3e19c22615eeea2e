// Package relay forwards form payloads to the reservation webservice and
// normalizes its replies.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cdl-rdv/formrelay/pkg/formmap"
	"github.com/cdl-rdv/formrelay/pkg/relaylib"
	"github.com/cdl-rdv/formrelay/pkg/trace"
)

var errTrailingData = errors.New("unexpected data after JSON value")

const timeoutDetails = "Timeout - L'API n'a pas répondu dans le délai imparti"

// poster sends the encoded form to the webservice.
type poster interface {
	PostForm(ctx context.Context, endpoint string, form url.Values) (*relaylib.UpstreamResponse, error)
}

// Forwarder relays one form submission per invocation. It holds no state
// across requests besides its configuration.
type Forwarder struct {
	cfg      relaylib.Config
	upstream poster
}

// New returns a Forwarder for cfg. A nil upstream uses the default HTTP
// client. The timeout of cfg is clamped to the supported range.
func New(cfg relaylib.Config, upstream poster) *Forwarder {
	if upstream == nil {
		upstream = relaylib.NewUpstream(nil)
	}
	cfg.Timeout = relaylib.ClampTimeout(cfg.Timeout)
	return &Forwarder{cfg: cfg, upstream: upstream}
}

// Handle answers one invocation.
func (f *Forwarder) Handle(env *relaylib.Env) relaylib.Response {
	if env.Method == http.MethodOptions {
		return relaylib.Preflight()
	}

	resp, err := f.Forward(env.Ctx, env.Body)
	if err != nil {
		log.Printf("request_id=%s kind=%s err=%v", env.RequestID, Kind(err), err)
		return errorResponse(err)
	}
	return resp
}

// Forward validates body, sends it upstream with the server credentials and
// returns the normalized reply.
func (f *Forwarder) Forward(ctx context.Context, body string) (relaylib.Response, error) {
	ctx, span := trace.NewSpan(ctx, "relay.Forward")
	defer span.End()

	if body == "" {
		return relaylib.Response{}, newFailure(ErrClientInput, "Données du formulaire manquantes", nil, nil)
	}
	if err := f.cfg.Check(); err != nil {
		return relaylib.Response{}, newFailure(ErrServerConfig,
			"Configuration du serveur incorrecte: "+err.Error(), nil, nil)
	}

	payload, action, err := decodePayload(body)
	if err != nil {
		trace.Fail(span, err)
		return relaylib.Response{}, err
	}
	span.SetAttributes(attribute.String("relay.action", action.String()))

	payload["login"] = f.cfg.Login
	payload["pass"] = f.cfg.Password
	if f.cfg.ResellerCode != "" {
		payload["code_revendeur"] = f.cfg.ResellerCode
	}
	form := Encode(payload, action)

	upstream, err := relaylib.Bounded(ctx, f.cfg.Timeout, func(ctx context.Context) (*relaylib.UpstreamResponse, error) {
		return f.upstream.PostForm(ctx, f.cfg.APIURL, form)
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		trace.Fail(span, err)
		return relaylib.Response{}, newFailure(ErrUpstreamTimeout, "Erreur de soumission",
			map[string]interface{}{"details": timeoutDetails}, err)
	case err != nil:
		trace.Fail(span, err)
		return relaylib.Response{}, &Failure{
			Message: "Erreur de soumission",
			Details: map[string]interface{}{"details": err.Error()},
			Err:     err,
		}
	}

	resp, err := Normalize(upstream, action)
	trace.Fail(span, err)
	return resp, err
}

func decodePayload(body string) (formmap.Payload, formmap.Action, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var payload formmap.Payload
	if err := dec.Decode(&payload); err != nil || payload == nil {
		if err == nil {
			err = errors.New("null payload")
		}
		return nil, formmap.ActionUnknown, invalidInput(err.Error(), err)
	}

	// An unknown action is forwarded as is with the default encoding.
	action, _ := payload.Action()
	switch action {
	case formmap.BookingMultiple:
		items, err := payload.LineItems()
		if err != nil {
			return nil, action, invalidInput(err.Error(), err)
		}
		if len(items) == 0 {
			return nil, action, invalidInput("prestation manquante", nil)
		}
		for i, item := range items {
			if strings.TrimSpace(item.Code) == "" {
				return nil, action, invalidInput(fmt.Sprintf("prestation[%d]: code manquant", i), nil)
			}
		}
	case formmap.Contact, formmap.ActionUnknown:
	}
	return payload, action, nil
}

func invalidInput(details string, err error) *Failure {
	return newFailure(ErrClientInput, "Données du formulaire invalides",
		map[string]interface{}{"details": details}, err)
}

func errorResponse(err error) relaylib.Response {
	var f *Failure
	if !errors.As(err, &f) {
		f = &Failure{Message: "Erreur de soumission", Details: map[string]interface{}{"details": err.Error()}}
	}
	return relaylib.JSON(HTTPStatus(err), f.Envelope())
}
