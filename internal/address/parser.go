// Package address parses free-form street addresses into typed
// components with a confidence score. Parsing is pure: the same input
// always yields the same output, and unparsable input degrades to
// empty components rather than an error.
package address

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/locator-cli/internal/rules"
)

// Confidence weights per recognized component.
const (
	scoreHouseNumber = 30
	scoreStreetName  = 40
	scoreStreetType  = 20
	scoreDirectional = 5
	scoreUnit        = 5
	scoreMax         = 100
)

// ParsedAddress is the decomposition of a raw address string. Component
// fields are empty when absent; Confidence is 0-100 and depends only on
// which fields were recognized.
type ParsedAddress struct {
	Original        string `json:"original"`
	Normalized      string `json:"normalized"`
	HouseNumber     string `json:"house_number,omitempty"`
	PreDirectional  string `json:"pre_directional,omitempty"`
	StreetName      string `json:"street_name,omitempty"`
	StreetType      string `json:"street_type,omitempty"`
	PostDirectional string `json:"post_directional,omitempty"`
	UnitDesignator  string `json:"unit_designator,omitempty"`
	UnitNumber      string `json:"unit_number,omitempty"`
	Confidence      int    `json:"confidence"`
}

var (
	houseNumberRe = regexp.MustCompile(`^(\d+-\d+|\d+[a-z]?)$`)
	unitNumberRe  = regexp.MustCompile(`^[0-9a-z]+$`)
	// Combined tokens such as "apt4b" must carry a digit-led number so
	// that ordinary words sharing a designator prefix do not split.
	combinedNumberRe = regexp.MustCompile(`^[0-9][0-9a-z]*$`)
	dashRe           = regexp.MustCompile("[‐‑‒–—―−]")
	spaceRe          = regexp.MustCompile(`\s+`)
)

// Parser decomposes raw address strings using injected rule tables.
type Parser struct {
	tables rules.Tables
	titler cases.Caser
}

// NewParser creates a Parser over the given rule tables.
func NewParser(tables rules.Tables) *Parser {
	return &Parser{
		tables: tables,
		titler: cases.Title(language.AmericanEnglish),
	}
}

// Normalize lowercases an address, replaces commas and semicolons with
// spaces, folds dash variants to a plain hyphen, and collapses
// whitespace. The geocoding cache key builds on the same rules.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(",", " ", ";", " ").Replace(s)
	s = dashRe.ReplaceAllString(s, "-")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Parse breaks a raw address into components. It never fails: empty or
// unrecognizable input returns a ParsedAddress with empty components
// and confidence 0.
//
// Known limitation: a street legitimately named after a directional
// ("123 North St") is classified as a directional by the positional
// rules, leaving the street name empty.
func (p *Parser) Parse(raw string) ParsedAddress {
	out := ParsedAddress{Original: raw, Normalized: Normalize(raw)}
	tokens := strings.Fields(out.Normalized)
	if len(tokens) == 0 {
		return out
	}

	// House number: leading integer with optional letter suffix, or a
	// hyphenated range.
	if houseNumberRe.MatchString(tokens[0]) {
		out.HouseNumber = tokens[0]
		tokens = tokens[1:]
	}

	// Street type: exact match on the last token, checked before unit
	// and directional interpretations.
	if len(tokens) > 0 {
		if canonical, ok := p.tables.StreetType(tokens[len(tokens)-1]); ok {
			out.StreetType = canonical
			tokens = tokens[:len(tokens)-1]
		}
	}

	tokens = p.extractUnit(tokens, &out)
	tokens = p.extractDirectionals(tokens, &out)

	out.StreetName = strings.Join(tokens, " ")
	out.Confidence = scoreComponents(out)
	return out
}

// extractUnit removes unit tokens from the pool. A standalone
// designator token claims the following alphanumeric token as the unit
// number; otherwise a combined token such as "apt4b" or "#12" is split
// in place. First match wins.
func (p *Parser) extractUnit(tokens []string, out *ParsedAddress) []string {
	for i, tok := range tokens {
		if p.tables.IsUnitDesignator(tok) {
			out.UnitDesignator = tok
			remove := map[int]bool{i: true}
			if i+1 < len(tokens) && unitNumberRe.MatchString(tokens[i+1]) {
				out.UnitNumber = tokens[i+1]
				remove[i+1] = true
			}
			return removeIndices(tokens, remove)
		}
		if designator, number, ok := p.splitCombinedUnit(tok); ok {
			out.UnitDesignator = designator
			out.UnitNumber = number
			return removeIndices(tokens, map[int]bool{i: true})
		}
	}
	return tokens
}

// splitCombinedUnit matches designator + optional punctuation + number
// within a single token.
func (p *Parser) splitCombinedUnit(tok string) (designator, number string, ok bool) {
	for _, d := range p.tables.UnitDesignators() {
		rest, found := strings.CutPrefix(tok, d)
		if !found || rest == "" {
			continue
		}
		if len(rest) > 1 && (rest[0] == '.' || rest[0] == '#' || rest[0] == '-') {
			rest = rest[1:]
		}
		if combinedNumberRe.MatchString(rest) {
			return d, rest, true
		}
	}
	return "", "", false
}

// extractDirectionals applies the positional rules: pre-directional
// only immediately after the house number, post-directional within the
// last three remaining tokens provided the token is not also a street
// type.
func (p *Parser) extractDirectionals(tokens []string, out *ParsedAddress) []string {
	if out.HouseNumber != "" && len(tokens) > 0 {
		if canonical, ok := p.tables.Directional(tokens[0]); ok {
			out.PreDirectional = canonical
			tokens = tokens[1:]
		}
	}

	start := len(tokens) - 3
	if start < 0 {
		start = 0
	}
	for i := start; i < len(tokens); i++ {
		canonical, ok := p.tables.Directional(tokens[i])
		if !ok {
			continue
		}
		if _, alsoType := p.tables.StreetType(tokens[i]); alsoType {
			continue
		}
		out.PostDirectional = canonical
		return removeIndices(tokens, map[int]bool{i: true})
	}
	return tokens
}

// scoreComponents is the deterministic confidence function over field
// presence.
func scoreComponents(a ParsedAddress) int {
	score := 0
	if a.HouseNumber != "" {
		score += scoreHouseNumber
	}
	if a.StreetName != "" {
		score += scoreStreetName
	}
	if a.StreetType != "" {
		score += scoreStreetType
	}
	if a.PreDirectional != "" || a.PostDirectional != "" {
		score += scoreDirectional
	}
	if a.UnitDesignator != "" && a.UnitNumber != "" {
		score += scoreUnit
	}
	if score > scoreMax {
		score = scoreMax
	}
	return score
}

// Display renders the canonical display form, omitting empty fields:
// house number, directionals and street name title-cased, then
// ", Designator Number" when a unit is present.
func (p *Parser) Display(a ParsedAddress) string {
	var parts []string
	if a.HouseNumber != "" {
		parts = append(parts, a.HouseNumber)
	}
	if a.PreDirectional != "" {
		parts = append(parts, p.titler.String(a.PreDirectional))
	}
	if a.StreetName != "" {
		parts = append(parts, p.titler.String(a.StreetName))
	}
	if a.StreetType != "" {
		parts = append(parts, p.titler.String(a.StreetType))
	}
	if a.PostDirectional != "" {
		parts = append(parts, p.titler.String(a.PostDirectional))
	}
	s := strings.Join(parts, " ")
	if a.UnitDesignator != "" && a.UnitNumber != "" {
		unit := p.titler.String(a.UnitDesignator) + " " + strings.ToUpper(a.UnitNumber)
		if s == "" {
			return unit
		}
		s += ", " + unit
	}
	return s
}

func removeIndices(tokens []string, drop map[int]bool) []string {
	out := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if !drop[i] {
			out = append(out, tok)
		}
	}
	return out
}
