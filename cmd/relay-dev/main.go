// Command relay-dev serves the relay function over plain HTTP for local
// development, with the same request and response shapes as the Lambda
// deployment.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/cdl-rdv/formrelay/pkg/relay"
	"github.com/cdl-rdv/formrelay/pkg/relaylib"
	"github.com/cdl-rdv/formrelay/pkg/trace"
)

const defaultAddr = ":8080"

// Paths the relay answers on. The second matches the deployed function URL
// so front ends can point at a local instance unchanged.
const (
	submitPath    = "/submit"
	functionsPath = "/.netlify/functions/submitForm"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := relaylib.LoadConfig(context.Background())
	if err != nil {
		log.Printf("config: %v", err)
	}
	if err := cfg.Check(); err != nil {
		log.Printf("config incomplete, submissions will fail: %v", err)
	}

	provider, err := trace.NewProvider(cfg.Trace)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Close(ctx); err != nil {
			log.Printf("trace shutdown: %v", err)
		}
	}()

	addr := os.Getenv("RELAY_ADDR")
	if addr == "" {
		addr = defaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(relay.New(cfg, nil)),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      relaylib.MaxTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("listening on %s", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newRouter(fwd *relay.Forwarder) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	h := relaylib.HTTPHandler(relaylib.Wrapper(fwd.Handle))
	for _, path := range []string{submitPath, functionsPath} {
		r.Handle(path, h).Methods(http.MethodPost, http.MethodOptions)
	}

	return r
}
