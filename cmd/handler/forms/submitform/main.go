package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/cdl-rdv/formrelay/pkg/relay"
	"github.com/cdl-rdv/formrelay/pkg/relaylib"
	"github.com/cdl-rdv/formrelay/pkg/trace"
)

func main() {
	cfg, err := relaylib.LoadConfig(context.Background())
	if err != nil {
		// missing settings are reported on every request instead
		log.Printf("config: %v", err)
	}
	if err := cfg.Check(); err != nil {
		log.Printf("config incomplete: %v", err)
	}

	_, err = trace.NewProvider(cfg.Trace)
	relaylib.CHECK(err)

	forwarder = relay.New(cfg, nil)
	lambda.Start(relaylib.Wrapper(Handler))
}
