package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Money’s not a concern", "money's not a concern"},
		{"$10–$20", "$10-$20"},
		{"  Small   group (3–4) ", "small group (3-4)"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestDefaultLookup(t *testing.T) {
	table := Default()

	tests := []struct {
		name      string
		dim       Dimension
		answer    string
		found     bool
		keyword   string
		health    bool
		groupMode bool
	}{
		{"cozy mood", DimensionMood, "Cozy / comfort food", true, "comfort food", false, false},
		{"healthy mood", DimensionMood, "Energized / healthy", true, "salad", true, false},
		{"hearty craving", DimensionCraving, "Hot and hearty", true, "ramen", false, false},
		{"no craving", DimensionCraving, "No specific craving", false, "", false, false},
		{"keto diet", DimensionDiet, "Low-Carb / Keto", true, "keto", true, false},
		{"no diet", DimensionDiet, "No restrictions", false, "", false, false},
		{"drive thru", DimensionMethod, "Drive-thru", true, "drive-thru", false, false},
		{"dine in", DimensionMethod, "Dine-in", false, "", false, false},
		{"big group", DimensionGroup, "Big group or family", true, "family style", false, true},
		{"typographic dash", DimensionGroup, "Small group (3–4)", true, "", false, true},
		{"wrong dimension", DimensionMood, "Spicy", false, "", false, false},
		{"empty answer", DimensionMood, "", false, "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, ok := table.Lookup(tt.dim, tt.answer)
			assert.Equal(t, tt.found, ok)
			if tt.keyword != "" {
				assert.Contains(t, exp.Keywords, tt.keyword)
			}
			assert.Equal(t, tt.health, exp.HealthOriented)
			assert.Equal(t, tt.groupMode, exp.GroupMode)
		})
	}
}

func TestCustomTable(t *testing.T) {
	table := NewTable().
		Add(DimensionCraving, "umami", Expansion{Keywords: []string{"ramen"}}).
		Add(DimensionCraving, "u", Expansion{Keywords: []string{"udon"}})

	exp, ok := table.Lookup(DimensionCraving, "UMAMI bomb")
	assert.True(t, ok)
	assert.Equal(t, []string{"ramen"}, exp.Keywords)
}
