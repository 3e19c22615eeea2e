package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/go-cmp/cmp"

	"github.com/cdl-rdv/formrelay/pkg/relay"
	"github.com/cdl-rdv/formrelay/pkg/relaylib"
)

func TestHandler_EndToEnd(t *testing.T) {
	var received url.Values
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		received = r.PostForm
		_, _ = io.WriteString(w, "CMD12345")
	}))
	defer upstream.Close()

	forwarder = relay.New(relaylib.Config{
		APIURL:   upstream.URL,
		Login:    "login",
		Password: "secret",
	}, relaylib.NewUpstream(upstream.Client()))

	body := `{"action":"booking_multiple","nom":"Martin","prestation":[{"code":"SAV_FORM","adulte":"1","forfait":1}]}`
	resp, err := relaylib.Wrapper(Handler)(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Body:       body,
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}

	var got map[string]interface{}
	if err := json.Unmarshal([]byte(resp.Body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]interface{}{"erreur": float64(0), "id_commande": "CMD12345", "message": "CMD12345"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("envelope mismatch (-want +got):\n%s", diff)
	}
	if received.Get("login") != "login" || received.Get("prestation[0][forfait]") != "1" {
		t.Fatalf("unexpected upstream form %v", received)
	}
}
