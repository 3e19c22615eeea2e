package main

import (
	"context"
	"errors"
	"strings"

	"github.com/cdl-rdv/formrelay/pkg/formmap"
)

// field is one prompt of the terminal form. ID is the unprefixed field
// name.
type field struct {
	ID        string
	Multiline bool
	Required  bool
}

var identityFields = []field{
	{ID: "civilite"},
	{ID: "nom", Required: true},
	{ID: "prenom"},
	{ID: "email"},
	{ID: "telephone"},
}

// fieldsFor lists the prompts of d: identity fields first, then the memo
// fields in their configured order.
func fieldsFor(d formmap.Descriptor) []field {
	out := append([]field(nil), identityFields...)
	seen := map[string]bool{}
	for _, f := range out {
		seen[f.ID] = true
	}
	if d.IncludeCompany && !seen["societe"] {
		out = append(out, field{ID: "societe"})
		seen["societe"] = true
	}
	for _, name := range d.MemoFields {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, field{ID: name, Multiline: name == "message"})
	}
	return out
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("valeur obligatoire")
	}
	return nil
}

// chooseForm asks which form of set to fill.
func chooseForm(ctx context.Context, drv promptDriver, set *formmap.DescriptorSet) (formmap.Descriptor, error) {
	names := set.Names()
	idx, err := drv.Select(ctx, selectConfig{Message: "Formulaire", Options: names})
	if err != nil {
		return formmap.Descriptor{}, err
	}
	if idx < 0 || idx >= len(names) {
		return formmap.Descriptor{}, errors.New("formsubmit: no form selected")
	}
	d, _ := set.Lookup(names[idx])
	return d, nil
}

// collect prompts for every field of d and returns the answers keyed by
// element id, the way the page would expose them.
func collect(ctx context.Context, drv promptDriver, d formmap.Descriptor) (formmap.MapSource, error) {
	src := formmap.MapSource{}
	for _, f := range fieldsFor(d) {
		cfg := inputConfig{Message: d.Label(f.ID)}
		if f.Required {
			cfg.Validator = required
		}

		var (
			v   string
			err error
		)
		if f.Multiline {
			v, err = drv.TextArea(ctx, cfg)
		} else {
			v, err = drv.Input(ctx, cfg)
		}
		if err != nil {
			return nil, err
		}
		src[d.Field(f.ID)] = v
	}
	return src, nil
}
