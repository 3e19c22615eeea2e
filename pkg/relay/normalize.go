package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cdl-rdv/formrelay/pkg/formmap"
	"github.com/cdl-rdv/formrelay/pkg/relaylib"
)

// Acknowledgement is the body synthesized when booking_multiple is answered
// with a plain-text order reference.
type Acknowledgement struct {
	Erreur     int    `json:"erreur"`
	IDCommande string `json:"id_commande"`
	Message    string `json:"message"`
}

// Normalize turns the reply of the webservice into the relay response.
//
// A JSON reply is passed through. A plain-text reply is accepted only for
// booking_multiple, which answers with the bare order reference.
func Normalize(resp *relaylib.UpstreamResponse, action formmap.Action) (relaylib.Response, error) {
	if !resp.OK() {
		return relaylib.Response{}, newFailure(ErrUpstreamHTTP, "L'API externe a retourné une erreur",
			map[string]interface{}{
				"status":     resp.StatusCode,
				"statusText": resp.StatusText,
			}, nil)
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var parsed interface{}
	err := dec.Decode(&parsed)
	if err == nil && !atEOF(dec) {
		err = errTrailingData
	}
	if err == nil {
		return relaylib.JSON(http.StatusOK, parsed), nil
	}

	text := strings.TrimSpace(string(resp.Body))
	switch action {
	case formmap.BookingMultiple:
		if text != "" {
			return relaylib.JSON(http.StatusOK, Acknowledgement{
				Erreur:     0,
				IDCommande: text,
				Message:    text,
			}), nil
		}
	case formmap.Contact, formmap.ActionUnknown:
	}

	return relaylib.Response{}, newFailure(ErrUpstreamParse, "Impossible de parser la réponse de l'API",
		map[string]interface{}{"responseText": string(resp.Body)}, err)
}

// atEOF reports whether dec holds nothing but whitespace after the value it
// just decoded.
func atEOF(dec *json.Decoder) bool {
	var extra json.RawMessage
	return dec.Decode(&extra) == io.EOF
}
