package formmap

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Memo concatenates the memo fields of d as "Label: value" lines, skipping
// fields with no value.
func (d Descriptor) Memo(src FieldSource) string {
	lines := make([]string, 0, len(d.MemoFields))
	for _, field := range d.MemoFields {
		value := clean(src.Value(d.Field(field)))
		if value == "" {
			continue
		}
		lines = append(lines, d.Label(field)+": "+value)
	}
	return strings.Join(lines, "\n")
}

// Label returns the display label of a memo field: the configured one, or
// the field name capitalized with underscores turned into spaces.
func (d Descriptor) Label(field string) string {
	if label, ok := d.Labels[field]; ok && label != "" {
		return label
	}
	name := strings.ReplaceAll(field, "_", " ")
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
