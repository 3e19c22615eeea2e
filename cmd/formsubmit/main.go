// Command formsubmit fills one of the site forms from the terminal and
// submits it through the relay.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/cdl-rdv/formrelay/pkg/formmap"
	"github.com/cdl-rdv/formrelay/pkg/submit"
)

const defaultRelayURL = "http://localhost:8080/submit"

// Environment read by the client.
const (
	envFormsFile = "FORMS_FILE"
	envRelayURL  = "RELAY_URL"
	envPageURL   = "PAGE_URL"
)

func main() {
	if err := run(context.Background(), surveyDriver{}); err != nil {
		if errors.Is(err, errAborted) {
			os.Exit(130)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, drv promptDriver) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}

	set, err := formmap.LoadSet(os.Getenv(envFormsFile))
	if err != nil {
		return err
	}
	relayURL := os.Getenv(envRelayURL)
	if relayURL == "" {
		relayURL = defaultRelayURL
	}
	pageURL := os.Getenv(envPageURL)

	d, err := chooseForm(ctx, drv, set)
	if err != nil {
		return err
	}
	src, err := collect(ctx, drv, d)
	if err != nil {
		return err
	}

	c := submit.New(relayURL, formmap.New(set), newTerminalView(os.Stdout))
	defer c.Close()

	// the outcome is already printed by the view
	_, err = c.Submit(ctx, d, src, pageURL)
	if err != nil {
		return errors.New("submission failed")
	}
	return nil
}
