package transcript

import (
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/listenupapp/listenup-companion/internal/errors"
)

// Aliases maps a canonical character key to the textual forms that count as a mention.
// The canonical form is expected to be among its own aliases.
type Aliases map[string][]string

// DefaultAliases returns the built-in table for Snow White.
func DefaultAliases() Aliases {
	return Aliases{
		"snow white":   {"snow white", "snow-white"},
		"queen":        {"queen", "stepmother", "wicked woman"},
		"dwarfs":       {"dwarf", "dwarves", "seven little men"},
		"huntsman":     {"huntsman", "hunter"},
		"prince":       {"prince", "king's son"},
		"magic mirror": {"mirror", "looking glass"},
	}
}

type aliasFile struct {
	Characters map[string][]string `yaml:"characters"`
}

// LoadAliases reads an alias table from YAML:
//
//	characters:
//	  queen: [queen, stepmother]
//
// Keys are normalized to lower case and each key is added to its own alias list.
func LoadAliases(path string) (Aliases, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- Alias path comes from configuration
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "read alias table %s", path)
	}

	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "parse alias table %s", path)
	}
	if len(f.Characters) == 0 {
		return nil, errors.Configurationf("alias table %s defines no characters", path)
	}

	out := make(Aliases, len(f.Characters))
	for key, list := range f.Characters {
		canonical := strings.ToLower(strings.TrimSpace(key))
		if canonical == "" {
			continue
		}
		forms := make([]string, 0, len(list)+1)
		for _, a := range list {
			if a = strings.TrimSpace(a); a != "" {
				forms = append(forms, a)
			}
		}
		if !slices.ContainsFunc(forms, func(a string) bool { return fold(a) == fold(canonical) }) {
			forms = append([]string{canonical}, forms...)
		}
		out[canonical] = forms
	}
	return out, nil
}

// Lookup returns the aliases for name when it is a canonical key, ignoring case.
func (a Aliases) Lookup(name string) ([]string, bool) {
	target := fold(strings.TrimSpace(name))
	for key, forms := range a {
		if fold(key) == target {
			return forms, true
		}
	}
	return nil, false
}

// Keys returns the canonical keys in sorted order.
func (a Aliases) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// mentioned reports whether any alias occurs in folded text.
func mentioned(foldedText string, forms []string) bool {
	for _, form := range forms {
		if f := fold(form); f != "" && strings.Contains(foldedText, f) {
			return true
		}
	}
	return false
}

// fold applies Unicode case folding. Casers are stateful, so one is created per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
