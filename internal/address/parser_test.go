package address

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/locator-cli/internal/rules"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	return NewParser(rules.MustLoad())
}

func TestParse_SimpleStreet(t *testing.T) {
	p := newTestParser(t)

	got := p.Parse("123 Main St")
	assert.Equal(t, "123", got.HouseNumber)
	assert.Equal(t, "main", got.StreetName)
	assert.Equal(t, "street", got.StreetType)
	assert.Equal(t, 90, got.Confidence)
}

func TestParse_Empty(t *testing.T) {
	p := newTestParser(t)

	for _, raw := range []string{"", "   ", ",;,"} {
		got := p.Parse(raw)
		assert.Empty(t, got.HouseNumber, raw)
		assert.Empty(t, got.StreetName, raw)
		assert.Empty(t, got.StreetType, raw)
		assert.Zero(t, got.Confidence, raw)
	}
}

func TestParse_UnitWithSeparateTokens(t *testing.T) {
	p := newTestParser(t)

	got := p.Parse("456 Oak Ave Apt 2B")
	assert.Equal(t, "456", got.HouseNumber)
	assert.Equal(t, "apt", got.UnitDesignator)
	assert.Equal(t, "2b", got.UnitNumber)
	// "ave" is not the last token here, so street-type detection does
	// not fire and it stays in the street name.
	assert.Equal(t, "oak ave", got.StreetName)
	assert.Equal(t, 75, got.Confidence)
}

func TestParse_CombinedUnitToken(t *testing.T) {
	p := newTestParser(t)

	for _, tc := range []struct {
		raw        string
		designator string
		number     string
	}{
		{"12 Elm St apt4b", "apt", "4b"},
		{"12 Elm St apt.4b", "apt", "4b"},
		{"12 Elm St unit-7", "unit", "7"},
	} {
		got := p.Parse(tc.raw)
		assert.Equal(t, tc.designator, got.UnitDesignator, tc.raw)
		assert.Equal(t, tc.number, got.UnitNumber, tc.raw)
		// "st" is not the final token, so it stays in the name pool.
		assert.Equal(t, "elm st", got.StreetName, tc.raw)
	}
}

func TestParse_Directionals(t *testing.T) {
	p := newTestParser(t)

	got := p.Parse("1600 N Capitol Ave")
	assert.Equal(t, "north", got.PreDirectional)
	assert.Equal(t, "capitol", got.StreetName)
	assert.Equal(t, "avenue", got.StreetType)
	assert.Equal(t, 95, got.Confidence)

	got = p.Parse("200 Fifth Ave NW")
	// "nw" is last, but street-type detection runs first and misses,
	// then the post-directional scan picks it up.
	assert.Equal(t, "northwest", got.PostDirectional)
	assert.Equal(t, "fifth ave", got.StreetName)
}

func TestParse_DirectionalStreetNameLimitation(t *testing.T) {
	p := newTestParser(t)

	// A street genuinely named "North" loses to the directional
	// interpretation under the positional rules.
	got := p.Parse("123 North St")
	assert.Equal(t, "north", got.PreDirectional)
	assert.Empty(t, got.StreetName)
	assert.Equal(t, "street", got.StreetType)
	assert.Equal(t, 55, got.Confidence)
}

func TestParse_HouseNumberForms(t *testing.T) {
	p := newTestParser(t)

	for raw, want := range map[string]string{
		"123 Main St":     "123",
		"123a Main St":    "123a",
		"123-125 Main St": "123-125",
		"Main St":         "",
	} {
		assert.Equal(t, want, p.Parse(raw).HouseNumber, raw)
	}
}

func TestParse_Deterministic(t *testing.T) {
	p := newTestParser(t)

	first := p.Parse("456 Oak Ave Apt 2B")
	for range 10 {
		assert.Equal(t, first, p.Parse("456 Oak Ave Apt 2B"))
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, raw := range []string{
		"  123   Main St ",
		"456 Oak Ave, Apt 2B",
		"7 Rue—Morgue",
	} {
		once := Normalize(raw)
		assert.Equal(t, once, Normalize(once), raw)
	}
}

func TestDisplay(t *testing.T) {
	p := newTestParser(t)

	got := p.Parse("456 oak ave, apt 2b")
	assert.Equal(t, "456 Oak Ave, Apt 2B", p.Display(got))

	got = p.Parse("1600 n capitol ave")
	assert.Equal(t, "1600 North Capitol Avenue", p.Display(got))

	assert.Empty(t, p.Display(p.Parse("")))
}
