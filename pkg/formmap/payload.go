package formmap

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// LineItemsKey is the payload key holding booking line items.
const LineItemsKey = "prestation"

// Payload is the request body sent to the relay.
type Payload map[string]interface{}

// LineItem is one bookable product entry of a booking_multiple request.
type LineItem struct {
	Code          string `mapstructure:"code"`
	Date          string `mapstructure:"date"`
	SessionNumber string `mapstructure:"numero_session"`
	Adults        string `mapstructure:"adulte"`
	Children      string `mapstructure:"enfant"`
	AdultPrice    string `mapstructure:"tarif_adulte"`
	ChildPrice    string `mapstructure:"tarif_enfant"`
	// FlatRate is 1 when the price does not depend on the head count.
	FlatRate int `mapstructure:"forfait"`
}

// Map returns the field map of the item as it appears on the wire.
func (li LineItem) Map() map[string]interface{} {
	out := make(map[string]interface{}, 8)
	if err := mapstructure.Decode(li, &out); err != nil {
		// decoding a flat struct of strings and ints into a map cannot fail
		panic(err)
	}
	return out
}

// Action returns the action carried by the payload.
func (p Payload) Action() (Action, error) {
	s, _ := p["action"].(string)
	return ParseAction(s)
}

// LineItems decodes the line items of p. Numbers and strings are accepted
// interchangeably, as browsers send either, but the items must be a list of
// objects.
func (p Payload) LineItems() ([]LineItem, error) {
	raw, ok := p[LineItemsKey]
	if !ok || raw == nil {
		return nil, nil
	}
	switch list := raw.(type) {
	case []map[string]interface{}:
	case []interface{}:
		for i, it := range list {
			if _, ok := it.(map[string]interface{}); !ok {
				return nil, errors.Errorf("%s[%d] is not an object", LineItemsKey, i)
			}
		}
	default:
		return nil, errors.Errorf("%s is not a list", LineItemsKey)
	}
	var items []LineItem
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &items,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "decoding line items")
	}
	return items, nil
}
