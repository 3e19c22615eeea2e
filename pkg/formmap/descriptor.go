package formmap

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed forms.yaml
var defaultForms []byte

// Descriptor is the static configuration of one form type.
type Descriptor struct {
	Name        string `yaml:"name"`
	FormID      string `yaml:"formId"`
	SubmitID    string `yaml:"submitId"`
	Prefix      string `yaml:"prefix"`
	ProductCode string `yaml:"productCode"`
	// ObjectLabel is the order object sent upstream. When empty the value of
	// the unprefixed type_evenement field is used instead.
	ObjectLabel     string            `yaml:"objectLabel"`
	MemoFields      []string          `yaml:"memoFields"`
	Labels          map[string]string `yaml:"labels"`
	IncludeCompany  bool              `yaml:"includeCompany"`
	MobileFromPhone bool              `yaml:"mobileFromPhone"`
	Action          Action            `yaml:"action"`
}

// Field returns the element id of a field of this form.
func (d Descriptor) Field(name string) string {
	return d.Prefix + name
}

// DescriptorSet holds every form of a site plus the values shared by all of
// them.
type DescriptorSet struct {
	Language     string       `yaml:"language"`
	ResellerCode string       `yaml:"resellerCode"`
	Forms        []Descriptor `yaml:"forms"`
}

// Lookup returns the descriptor registered under name.
func (s *DescriptorSet) Lookup(name string) (Descriptor, bool) {
	for _, d := range s.Forms {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Names lists the descriptor names in declaration order.
func (s *DescriptorSet) Names() []string {
	out := make([]string, 0, len(s.Forms))
	for _, d := range s.Forms {
		out = append(out, d.Name)
	}
	return out
}

// DefaultSet returns the descriptors embedded in the binary.
func DefaultSet() (*DescriptorSet, error) {
	return ParseSet(defaultForms)
}

// LoadSet reads a descriptor table from path. An empty path yields the
// embedded defaults.
func LoadSet(path string) (*DescriptorSet, error) {
	if path == "" {
		return DefaultSet()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading form descriptors %s", path)
	}
	set, err := ParseSet(data)
	if err != nil {
		return nil, errors.Wrapf(err, "form descriptors %s", path)
	}
	return set, nil
}

// ParseSet decodes and validates a YAML descriptor table.
func ParseSet(data []byte) (*DescriptorSet, error) {
	var set DescriptorSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrap(err, "decoding form descriptors")
	}
	if set.Language == "" {
		set.Language = "FR"
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *DescriptorSet) validate() error {
	if len(s.Forms) == 0 {
		return errors.New("no form descriptors")
	}
	seen := make(map[string]struct{}, len(s.Forms))
	for i, d := range s.Forms {
		if d.Name == "" {
			return fmt.Errorf("form %d: missing name", i)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("form %q declared twice", d.Name)
		}
		seen[d.Name] = struct{}{}
		if d.FormID == "" {
			return fmt.Errorf("form %q: missing formId", d.Name)
		}
		switch d.Action {
		case Contact:
		case BookingMultiple:
			if d.ProductCode == "" {
				return fmt.Errorf("form %q: booking_multiple needs a productCode", d.Name)
			}
		default:
			return fmt.Errorf("form %q: missing action", d.Name)
		}
	}
	return nil
}
