package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tables, err := Load()
	require.NoError(t, err)

	canonical, ok := tables.StreetType("st")
	assert.True(t, ok)
	assert.Equal(t, "street", canonical)

	canonical, ok = tables.StreetType("street")
	assert.True(t, ok)
	assert.Equal(t, "street", canonical)

	_, ok = tables.StreetType("main")
	assert.False(t, ok)
}

func TestDirectionals(t *testing.T) {
	tables := MustLoad()

	for token, want := range map[string]string{
		"n": "north", "north": "north",
		"sw": "southwest", "southwest": "southwest",
	} {
		got, ok := tables.Directional(token)
		assert.True(t, ok, token)
		assert.Equal(t, want, got)
	}

	_, ok := tables.Directional("upward")
	assert.False(t, ok)
}

func TestUnitDesignators(t *testing.T) {
	tables := MustLoad()

	assert.True(t, tables.IsUnitDesignator("apt"))
	assert.True(t, tables.IsUnitDesignator("ste"))
	assert.True(t, tables.IsUnitDesignator("#"))
	assert.False(t, tables.IsUnitDesignator("house"))
	assert.NotEmpty(t, tables.UnitDesignators())
}

func TestParseRejectsBadYAML(t *testing.T) {
	_, err := parse([]byte("street_types: [not, a, map]"))
	require.Error(t, err)
}
