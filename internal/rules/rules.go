// Package rules holds the static lookup tables used by the street
// address parser: street-type abbreviations, directionals, and unit
// designators. Tables are embedded as YAML and loaded into plain
// structs so each parser instance carries its own copy.
package rules

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// Tables provides exact-match lookups for address tokens. All lookups
// expect lowercased input.
type Tables struct {
	streetTypes     map[string]string // abbreviation or canonical -> canonical
	directionals    map[string]string
	unitDesignators map[string]bool
}

type tablesFile struct {
	StreetTypes     map[string][]string `yaml:"street_types"`
	Directionals    map[string][]string `yaml:"directionals"`
	UnitDesignators []string            `yaml:"unit_designators"`
}

// Load parses the embedded rule tables.
func Load() (Tables, error) {
	return parse(tablesYAML)
}

// MustLoad is Load for callers that treat a bad embedded table as a
// programming error (the CLI, tests).
func MustLoad() Tables {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

func parse(data []byte) (Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Tables{}, eris.Wrap(err, "rules: parse tables")
	}

	t := Tables{
		streetTypes:     make(map[string]string),
		directionals:    make(map[string]string),
		unitDesignators: make(map[string]bool, len(f.UnitDesignators)),
	}
	for canonical, aliases := range f.StreetTypes {
		t.streetTypes[canonical] = canonical
		for _, a := range aliases {
			t.streetTypes[a] = canonical
		}
	}
	for canonical, aliases := range f.Directionals {
		t.directionals[canonical] = canonical
		for _, a := range aliases {
			t.directionals[a] = canonical
		}
	}
	for _, d := range f.UnitDesignators {
		t.unitDesignators[d] = true
	}
	return t, nil
}

// StreetType resolves a token to its canonical street type.
func (t Tables) StreetType(token string) (string, bool) {
	c, ok := t.streetTypes[token]
	return c, ok
}

// Directional resolves a token to its canonical directional.
func (t Tables) Directional(token string) (string, bool) {
	c, ok := t.directionals[token]
	return c, ok
}

// IsUnitDesignator reports whether a token is a known unit designator.
func (t Tables) IsUnitDesignator(token string) bool {
	return t.unitDesignators[token]
}

// UnitDesignators returns the designator set in unspecified order.
func (t Tables) UnitDesignators() []string {
	out := make([]string, 0, len(t.unitDesignators))
	for d := range t.unitDesignators {
		out = append(out, d)
	}
	return out
}
