package locations

import (
	"fmt"
	"sort"
)

// Category groups venues whose occupancy converts to wait time the same way.
type Category string

const (
	CafeOnly   Category = "brb_only"    // card-only cafés and markets
	DiningHall Category = "dining_hall" // all-you-care-to-eat halls
	Specialty  Category = "trillium"    // food-court style specialty venue
)

// Location is a raw unit name resolved to its eatery.
type Location struct {
	Key         string   `yaml:"unit" json:"unit"`
	DisplayName string   `yaml:"name" json:"name"`
	Category    Category `yaml:"category" json:"category"`
}

// Table resolves raw unit names and category multipliers. It is read-only
// after construction.
type Table struct {
	byKey       map[string]Location
	multipliers map[Category]float64
}

// NewTable builds a table. Every location's category must have a multiplier.
func NewTable(locs []Location, multipliers map[Category]float64) (*Table, error) {
	t := &Table{
		byKey:       make(map[string]Location, len(locs)),
		multipliers: make(map[Category]float64, len(multipliers)),
	}
	for c, m := range multipliers {
		if m < 0 {
			return nil, fmt.Errorf("multiplier for %q is negative: %v", c, m)
		}
		t.multipliers[c] = m
	}
	for _, l := range locs {
		if l.Key == "" {
			return nil, fmt.Errorf("location %q has no unit name", l.DisplayName)
		}
		if _, dup := t.byKey[l.Key]; dup {
			return nil, fmt.Errorf("duplicate unit name %q", l.Key)
		}
		if _, ok := t.multipliers[l.Category]; !ok {
			return nil, fmt.Errorf("unit %q: no multiplier for category %q", l.Key, l.Category)
		}
		if l.DisplayName == "" {
			l.DisplayName = l.Key
		}
		t.byKey[l.Key] = l
	}
	return t, nil
}

// Resolve looks up a raw unit name.
func (t *Table) Resolve(unit string) (Location, bool) {
	l, ok := t.byKey[unit]
	return l, ok
}

// DisplayName maps a unit to its eatery name, falling back to the unit itself.
func (t *Table) DisplayName(unit string) string {
	if l, ok := t.byKey[unit]; ok {
		return l.DisplayName
	}
	return unit
}

// Multiplier returns the wait-time multiplier for a unit.
func (t *Table) Multiplier(unit string) (float64, bool) {
	l, ok := t.byKey[unit]
	if !ok {
		return 0, false
	}
	m, ok := t.multipliers[l.Category]
	return m, ok
}

// Units lists known unit names in sorted order.
func (t *Table) Units() []string {
	units := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		units = append(units, k)
	}
	sort.Strings(units)
	return units
}

// Len returns the number of known units.
func (t *Table) Len() int { return len(t.byKey) }
