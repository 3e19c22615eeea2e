// Package formmap turns the values of a site form into the request payloads
// understood by the reservation webservice.
package formmap

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingName is returned by Validate when the name field is empty.
var ErrMissingName = errors.New("formmap: missing name")

const (
	defaultCivility = "Monsieur"
	defaultCountry  = "France"
	// objectField is read without the form prefix.
	objectField = "type_evenement"
)

// Mapper builds payloads for the forms of one DescriptorSet.
type Mapper struct {
	language     string
	resellerCode string
	now          func() time.Time
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithClock replaces the clock used for order references and line item
// dates.
func WithClock(now func() time.Time) Option {
	return func(m *Mapper) { m.now = now }
}

// New returns a Mapper using the language and reseller code of set.
func New(set *DescriptorSet, opts ...Option) *Mapper {
	if set == nil {
		panic("formmap.New: nil descriptor set")
	}
	m := &Mapper{
		language:     set.Language,
		resellerCode: set.ResellerCode,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validate performs the presence checks done before a submission.
func (m *Mapper) Validate(d Descriptor, src FieldSource) error {
	if clean(src.Value(d.Field("nom"))) == "" {
		return ErrMissingName
	}
	return nil
}

// Build dispatches on the descriptor action.
func (m *Mapper) Build(d Descriptor, src FieldSource, pageURL string) (Payload, error) {
	switch d.Action {
	case Contact:
		return m.Contact(d, src, pageURL), nil
	case BookingMultiple:
		return m.Booking(d, src, pageURL), nil
	default:
		return nil, fmt.Errorf("formmap: form %q has no action", d.Name)
	}
}

// Contact builds the flat payload of the contact action.
func (m *Mapper) Contact(d Descriptor, src FieldSource, pageURL string) Payload {
	memo := d.Memo(src)
	get := func(name string) string { return clean(src.Value(d.Field(name))) }

	p := Payload{
		"action":         Contact.String(),
		"lg":             m.language,
		"civilite":       get("civilite"),
		"nom":            get("nom"),
		"prenom":         get("prenom"),
		"email":          get("email"),
		"telephone":      get("telephone"),
		"memo":           memo,
		"remarque":       memo,
		"objet_commande": SiteTag(pageURL) + m.object(d, src),
	}
	if d.IncludeCompany {
		p["societe"] = get("societe")
	}
	if d.MobileFromPhone {
		p["mobile"] = get("telephone")
	}
	return p
}

// Booking builds a booking_multiple payload with a single placeholder line
// item for the descriptor product.
func (m *Mapper) Booking(d Descriptor, src FieldSource, pageURL string) Payload {
	memo := d.Memo(src)
	get := func(name string) string { return clean(src.Value(d.Field(name))) }
	orDefault := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	now := m.now()

	return Payload{
		"action":         BookingMultiple.String(),
		"lg":             m.language,
		"civilite":       orDefault(get("civilite"), defaultCivility),
		"nom":            get("nom"),
		"prenom":         get("prenom"),
		"email":          get("email"),
		"telephone":      get("telephone"),
		"mobile":         orDefault(get("mobile"), get("telephone")),
		"societe":        get("societe"),
		"adresse":        get("adresse"),
		"ville":          get("ville"),
		"code_postal":    get("code_postal"),
		"pays":           orDefault(get("pays"), defaultCountry),
		"ref_commande":   OrderReference(d, now),
		"remarque":       memo,
		"memo":           SiteTag(pageURL) + m.object(d, src) + "\n\n" + memo,
		"code_revendeur": m.resellerCode,
		LineItemsKey: []map[string]interface{}{
			PlaceholderItem(d.ProductCode, now).Map(),
		},
	}
}

func (m *Mapper) object(d Descriptor, src FieldSource) string {
	if d.ObjectLabel != "" {
		return d.ObjectLabel
	}
	return clean(src.Value(objectField))
}

// PlaceholderItem is the zero-priced, flat-rate line item for one adult on
// the day of the submission.
func PlaceholderItem(code string, now time.Time) LineItem {
	return LineItem{
		Code:          code,
		Date:          now.UTC().Format("2006-01-02"),
		SessionNumber: "1",
		Adults:        "1",
		Children:      "0",
		AdultPrice:    "0.00",
		ChildPrice:    "0.00",
		FlatRate:      1,
	}
}

// OrderReference derives a unique order reference from the form id and the
// submission time, e.g. CONTACT_1718000000000.
func OrderReference(d Descriptor, now time.Time) string {
	formType := strings.ToUpper(strings.Replace(d.FormID, "Form", "", 1))
	return fmt.Sprintf("%s_%d", formType, now.UnixMilli())
}

// SiteTag returns the sub-brand marker prefixed to the order object for
// pages of the cheese shop or the cellar.
func SiteTag(pageURL string) string {
	switch {
	case strings.Contains(pageURL, "fromage"):
		return "Fromagerie - "
	case strings.Contains(pageURL, "cave"):
		return "Caves - "
	default:
		return ""
	}
}
