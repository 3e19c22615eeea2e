package relay

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cdl-rdv/formrelay/pkg/formmap"
)

// Encode flattens p into the url-encoded body expected by the webservice.
// Scalar fields are sent as is. For booking_multiple each line item field is
// sent as prestation[<index>][<field>]; any other nested value is dropped.
func Encode(p formmap.Payload, action formmap.Action) url.Values {
	form := url.Values{}
	for k, v := range p {
		if s, ok := scalar(v); ok {
			form.Set(k, s)
		}
	}

	switch action {
	case formmap.BookingMultiple:
		for i, item := range lineItemMaps(p[formmap.LineItemsKey]) {
			for field, v := range item {
				if s, ok := scalar(v); ok {
					form.Set(fmt.Sprintf("%s[%d][%s]", formmap.LineItemsKey, i, field), s)
				}
			}
		}
	case formmap.Contact, formmap.ActionUnknown:
	}
	return form
}

func lineItemMaps(v interface{}) []map[string]interface{} {
	switch items := v.(type) {
	case []map[string]interface{}:
		return items
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(items))
		for _, it := range items {
			if m, ok := it.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func scalar(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return "", false
	}
}
