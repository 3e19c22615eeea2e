package formmap

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Action selects which request shape the external API receives.
type Action int

const (
	ActionUnknown Action = iota
	Contact
	BookingMultiple
)

func (a Action) String() string {
	switch a {
	case Contact:
		return "contact"
	case BookingMultiple:
		return "booking_multiple"
	default:
		return "unknown"
	}
}

// ParseAction maps the wire value of the `action` field to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "contact":
		return Contact, nil
	case "booking_multiple":
		return BookingMultiple, nil
	}
	return ActionUnknown, fmt.Errorf("formmap: unknown action %q", s)
}

func (a *Action) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
