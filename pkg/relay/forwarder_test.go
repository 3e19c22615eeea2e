package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cdl-rdv/formrelay/pkg/relaylib"
)

// --- stubs ---

type stubPoster struct {
	calls atomic.Int32
	form  url.Values
	resp  *relaylib.UpstreamResponse
	err   error
	block bool
}

func (s *stubPoster) PostForm(ctx context.Context, _ string, form url.Values) (*relaylib.UpstreamResponse, error) {
	s.calls.Add(1)
	s.form = form
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.resp, s.err
}

func testConfig() relaylib.Config {
	return relaylib.Config{
		APIURL:   "https://api.example.org/webservice",
		Login:    "relay-login",
		Password: "relay-secret",
		Timeout:  relaylib.DefaultTimeout,
	}
}

func envFor(method, body string) *relaylib.Env {
	return &relaylib.Env{Ctx: context.Background(), RequestID: "test", Method: method, Body: body}
}

func decodeBody(t *testing.T, resp relaylib.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode body %q: %v", resp.Body, err)
	}
	return out
}

const bookingBody = `{"action":"booking_multiple","nom":"Martin","prestation":[{"code":"X","adulte":"1"}]}`

// --- tests ---

func TestHandle_Preflight(t *testing.T) {
	t.Parallel()

	stub := &stubPoster{}
	f := New(testConfig(), stub)

	resp := f.Handle(envFor(http.MethodOptions, ""))

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Body != "" {
		t.Fatalf("expected empty body, got %q", resp.Body)
	}
	want := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Max-Age":       "86400",
	}
	if diff := cmp.Diff(want, resp.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if stub.calls.Load() != 0 {
		t.Fatal("preflight must not reach upstream")
	}
}

func TestHandle_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        relaylib.Config
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing_body",
			cfg:        testConfig(),
			body:       "",
			wantStatus: http.StatusBadRequest,
			wantError:  "Données du formulaire manquantes",
		},
		{
			name:       "missing_api_url",
			cfg:        relaylib.Config{Login: "l", Password: "p"},
			body:       bookingBody,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Configuration du serveur incorrecte: API_URL manquante",
		},
		{
			name:       "missing_credentials",
			cfg:        relaylib.Config{APIURL: "https://api.example.org", Login: "l"},
			body:       bookingBody,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Configuration du serveur incorrecte: Identifiants manquants",
		},
		{
			name:       "not_an_object",
			cfg:        testConfig(),
			body:       `["a"]`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Données du formulaire invalides",
		},
		{
			name:       "booking_items_object",
			cfg:        testConfig(),
			body:       `{"action":"booking_multiple","nom":"M","prestation":{"code":"X","adulte":"1"}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Données du formulaire invalides",
		},
		{
			name:       "booking_items_string",
			cfg:        testConfig(),
			body:       `{"action":"booking_multiple","nom":"M","prestation":"X"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Données du formulaire invalides",
		},
		{
			name:       "booking_item_without_code",
			cfg:        testConfig(),
			body:       `{"action":"booking_multiple","nom":"M","prestation":[{}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Données du formulaire invalides",
		},
		{
			name:       "booking_item_not_object",
			cfg:        testConfig(),
			body:       `{"action":"booking_multiple","nom":"M","prestation":[{"code":"X"},"Y"]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Données du formulaire invalides",
		},
		{
			name:       "booking_without_items",
			cfg:        testConfig(),
			body:       `{"action":"booking_multiple","prestation":[]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Données du formulaire invalides",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubPoster{}
			f := New(tt.cfg, stub)

			resp := f.Handle(envFor(http.MethodPost, tt.body))

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if got := decodeBody(t, resp)["error"]; got != tt.wantError {
				t.Fatalf("expected error %q, got %v", tt.wantError, got)
			}
			if resp.Headers["Access-Control-Allow-Origin"] != "*" {
				t.Fatal("missing origin header")
			}
			if stub.calls.Load() != 0 {
				t.Fatal("upstream must not be called")
			}
			if strings.Contains(resp.Body, "relay-secret") {
				t.Fatal("response leaks the password")
			}
		})
	}
}

func TestHandle_InjectsCredentials(t *testing.T) {
	t.Parallel()

	stub := &stubPoster{resp: &relaylib.UpstreamResponse{StatusCode: 200, Body: []byte(`{"erreur":0}`)}}
	cfg := testConfig()
	cfg.ResellerCode = "R-42"
	f := New(cfg, stub)

	body := `{"action":"contact","nom":"Martin","login":"forged","pass":"forged","code_revendeur":"DEFAULT_RESELLER"}`
	resp := f.Handle(envFor(http.MethodPost, body))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	for key, want := range map[string]string{
		"login":          "relay-login",
		"pass":           "relay-secret",
		"code_revendeur": "R-42",
		"nom":            "Martin",
		"action":         "contact",
	} {
		if got := stub.form.Get(key); got != want {
			t.Errorf("form[%s] = %q, want %q", key, got, want)
		}
	}
}

func TestHandle_KeepsPayloadResellerWithoutOverride(t *testing.T) {
	t.Parallel()

	stub := &stubPoster{resp: &relaylib.UpstreamResponse{StatusCode: 200, Body: []byte(`{"erreur":0}`)}}
	f := New(testConfig(), stub)

	f.Handle(envFor(http.MethodPost, `{"action":"contact","code_revendeur":"SITE"}`))

	if got := stub.form.Get("code_revendeur"); got != "SITE" {
		t.Fatalf("expected SITE, got %q", got)
	}
}

func TestHandle_UpstreamReplies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		upstream   *relaylib.UpstreamResponse
		wantStatus int
		want       interface{}
	}{
		{
			name:       "json_passthrough",
			body:       `{"action":"contact","nom":"Martin"}`,
			upstream:   &relaylib.UpstreamResponse{StatusCode: 200, Body: []byte(`{"erreur":0,"id_contact":123}`)},
			wantStatus: http.StatusOK,
			want:       map[string]interface{}{"erreur": float64(0), "id_contact": float64(123)},
		},
		{
			name:       "functional_error_passthrough",
			body:       `{"action":"contact"}`,
			upstream:   &relaylib.UpstreamResponse{StatusCode: 200, Body: []byte(`{"erreur":1,"message_erreur":"Nom manquant"}`)},
			wantStatus: http.StatusOK,
			want:       map[string]interface{}{"erreur": float64(1), "message_erreur": "Nom manquant"},
		},
		{
			name:       "booking_plain_text",
			body:       bookingBody,
			upstream:   &relaylib.UpstreamResponse{StatusCode: 200, Body: []byte("CMD12345\n")},
			wantStatus: http.StatusOK,
			want:       map[string]interface{}{"erreur": float64(0), "id_commande": "CMD12345", "message": "CMD12345"},
		},
		{
			name:       "contact_plain_text",
			body:       `{"action":"contact"}`,
			upstream:   &relaylib.UpstreamResponse{StatusCode: 200, Body: []byte("OK merci")},
			wantStatus: http.StatusBadGateway,
			want: map[string]interface{}{
				"error":        "Impossible de parser la réponse de l'API",
				"responseText": "OK merci",
			},
		},
		{
			name:       "bad_gateway",
			body:       bookingBody,
			upstream:   &relaylib.UpstreamResponse{StatusCode: 502, StatusText: "Bad Gateway"},
			wantStatus: http.StatusBadGateway,
			want: map[string]interface{}{
				"error":      "L'API externe a retourné une erreur",
				"status":     float64(502),
				"statusText": "Bad Gateway",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := New(testConfig(), &stubPoster{resp: tt.upstream})
			resp := f.Handle(envFor(http.MethodPost, tt.body))

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.StatusCode, resp.Body)
			}
			if diff := cmp.Diff(tt.want, decodeBody(t, resp)); diff != "" {
				t.Fatalf("body mismatch (-want +got):\n%s", diff)
			}
			if resp.Headers["Access-Control-Allow-Origin"] != "*" {
				t.Fatal("missing origin header")
			}
		})
	}
}

func TestHandle_Timeout(t *testing.T) {
	t.Parallel()

	stub := &stubPoster{block: true}
	f := New(testConfig(), stub)
	f.cfg.Timeout = 20 * time.Millisecond

	start := time.Now()
	resp := f.Handle(envFor(http.MethodPost, bookingBody))

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	out := decodeBody(t, resp)
	if details, _ := out["details"].(string); !strings.Contains(details, "Timeout") {
		t.Fatalf("expected timeout details, got %v", out)
	}
}

func TestHandle_TransportError(t *testing.T) {
	t.Parallel()

	f := New(testConfig(), &stubPoster{err: io.ErrUnexpectedEOF})
	resp := f.Handle(envFor(http.MethodPost, bookingBody))

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if got := decodeBody(t, resp)["error"]; got != "Erreur de soumission" {
		t.Fatalf("unexpected error %v", got)
	}
}

func TestHandle_Idempotent(t *testing.T) {
	t.Parallel()

	stub := &stubPoster{resp: &relaylib.UpstreamResponse{StatusCode: 200, Body: []byte("CMD777")}}
	f := New(testConfig(), stub)

	first := f.Handle(envFor(http.MethodPost, bookingBody))
	second := f.Handle(envFor(http.MethodPost, bookingBody))

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("envelopes differ (-first +second):\n%s", diff)
	}
}

// --- integration with a real HTTP upstream ---

func TestForward_RealUpstream(t *testing.T) {
	t.Parallel()

	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got = r.PostForm
		_, _ = io.WriteString(w, "CMD12345")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.APIURL = srv.URL
	f := New(cfg, relaylib.NewUpstream(srv.Client()))

	resp, err := f.Forward(context.Background(), bookingBody)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got.Get("prestation[0][code]") != "X" || got.Get("prestation[0][adulte]") != "1" {
		t.Fatalf("line item not flattened: %v", got)
	}
	if _, ok := got["prestation"]; ok {
		t.Fatal("prestation must not be sent as a bare field")
	}
	if got.Get("pass") != "relay-secret" {
		t.Fatal("password not injected")
	}
}

func TestForward_RealUpstreamStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.APIURL = srv.URL
	f := New(cfg, relaylib.NewUpstream(srv.Client()))

	_, err := f.Forward(context.Background(), bookingBody)
	if Kind(err) != "upstream_http" || HTTPStatus(err) != http.StatusBadGateway {
		t.Fatalf("expected upstream_http/502, got %s/%d (%v)", Kind(err), HTTPStatus(err), err)
	}
	var fail *Failure
	if !errors.As(err, &fail) || fail.Details["statusText"] != "Bad Gateway" {
		t.Fatalf("expected status text Bad Gateway, got %+v", fail)
	}
}
