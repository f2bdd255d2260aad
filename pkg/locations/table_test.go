package locations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMultipliers = map[Category]float64{
	CafeOnly:   0.25,
	DiningHall: 0.05,
	Specialty:  0.15,
}

func TestTable_Resolve(t *testing.T) {
	table, err := NewTable([]Location{
		{Key: "RPME", DisplayName: "Robert Purcell Marketplace Eatery", Category: DiningHall},
		{Key: "Marthas", DisplayName: "Martha's Express", Category: CafeOnly},
	}, testMultipliers)
	require.NoError(t, err)

	loc, ok := table.Resolve("RPME")
	require.True(t, ok)
	assert.Equal(t, "Robert Purcell Marketplace Eatery", loc.DisplayName)

	_, ok = table.Resolve("Admin Workstation (B)")
	assert.False(t, ok)

	m, ok := table.Multiplier("RPME")
	require.True(t, ok)
	assert.Equal(t, 0.05, m)

	m, ok = table.Multiplier("Marthas")
	require.True(t, ok)
	assert.Equal(t, 0.25, m)

	_, ok = table.Multiplier("nope")
	assert.False(t, ok)

	assert.Equal(t, "Martha's Express", table.DisplayName("Marthas"))
	assert.Equal(t, "nope", table.DisplayName("nope"))
	assert.Equal(t, []string{"Marthas", "RPME"}, table.Units())
	assert.Equal(t, 2, table.Len())
}

func TestTable_DefaultsDisplayName(t *testing.T) {
	table, err := NewTable([]Location{{Key: "Risley", Category: DiningHall}}, testMultipliers)
	require.NoError(t, err)
	assert.Equal(t, "Risley", table.DisplayName("Risley"))
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable([]Location{{Key: "X", Category: "food_truck"}}, testMultipliers)
	assert.Error(t, err, "unknown category")

	_, err = NewTable([]Location{
		{Key: "X", Category: DiningHall},
		{Key: "X", Category: CafeOnly},
	}, testMultipliers)
	assert.Error(t, err, "duplicate unit")

	_, err = NewTable([]Location{{DisplayName: "No key", Category: DiningHall}}, testMultipliers)
	assert.Error(t, err, "missing unit")

	_, err = NewTable(nil, map[Category]float64{DiningHall: -1})
	assert.Error(t, err, "negative multiplier")
}
