package formmap

import "strings"

// FieldSource gives read access to the current value of named inputs.
// Implementations return "" for fields that do not exist.
type FieldSource interface {
	Value(id string) string
}

// MapSource is a FieldSource backed by a map of element id to value.
type MapSource map[string]string

func (m MapSource) Value(id string) string {
	return m[id]
}

// clean trims a submitted value. The value is otherwise sent as typed: the
// webservice receives a url-encoded body, not markup.
func clean(raw string) string {
	return strings.TrimSpace(raw)
}
