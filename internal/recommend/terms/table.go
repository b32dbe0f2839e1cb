// Package terms holds the static expansion of coarse quiz answers into search keywords and provider categories.
package terms

import (
	"strings"
)

type Dimension string

const (
	DimensionMood     Dimension = "mood"
	DimensionCraving  Dimension = "craving"
	DimensionDiet     Dimension = "diet"
	DimensionMethod   Dimension = "method"
	DimensionOccasion Dimension = "occasion"
	DimensionGroup    Dimension = "group"
)

// Expansion is what one answer contributes to a SearchIntent.
type Expansion struct {
	Keywords       []string
	Categories     []string
	HealthOriented bool
	GroupMode      bool
}

type entry struct {
	match     string
	expansion Expansion
}

// Table maps a dimension and an answer to its expansion. Answers are matched by
// normalized substring, first entry wins.
type Table struct {
	entries map[Dimension][]entry
}

// NegativeHints are de-prioritized when the intent is health oriented.
var NegativeHints = []string{"fast food", "fried", "dessert"}

func NewTable() *Table {
	return &Table{entries: make(map[Dimension][]entry)}
}

// Add registers an expansion for answers containing match.
func (t *Table) Add(d Dimension, match string, e Expansion) *Table {
	t.entries[d] = append(t.entries[d], entry{match: Normalize(match), expansion: e})
	return t
}

// Lookup returns the expansion for answer, or false when nothing matches.
func (t *Table) Lookup(d Dimension, answer string) (Expansion, bool) {
	norm := Normalize(answer)
	if norm == "" {
		return Expansion{}, false
	}
	for _, e := range t.entries[d] {
		if strings.Contains(norm, e.match) {
			return e.expansion, true
		}
	}
	return Expansion{}, false
}

// Dimensions lists the dimensions in contribution order.
func Dimensions() []Dimension {
	return []Dimension{
		DimensionMood,
		DimensionCraving,
		DimensionDiet,
		DimensionMethod,
		DimensionOccasion,
		DimensionGroup,
	}
}

var replacer = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"–", "-", "—", "-",
)

// Normalize folds typographic quotes and dashes, lowercases and collapses whitespace.
func Normalize(s string) string {
	s = replacer.Replace(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Default is the expansion table for the shipped quiz.
func Default() *Table {
	t := NewTable()

	t.Add(DimensionMood, "cozy", Expansion{
		Keywords:   []string{"comfort food", "soup", "ramen", "diner"},
		Categories: []string{"comfortfood", "diners", "soup"},
	})
	t.Add(DimensionMood, "energized", Expansion{
		Keywords:       []string{"healthy", "salad", "poke", "smoothie"},
		Categories:     []string{"salad", "poke", "juicebars"},
		HealthOriented: true,
	})
	t.Add(DimensionMood, "indulgent", Expansion{
		Keywords:   []string{"steakhouse", "burgers", "dessert"},
		Categories: []string{"steak", "burgers", "desserts"},
	})
	t.Add(DimensionMood, "adventurous", Expansion{
		Keywords:   []string{"ethiopian", "korean", "peruvian", "vietnamese"},
		Categories: []string{"ethiopian", "korean", "peruvian", "vietnamese"},
	})
	t.Add(DimensionMood, "chill", Expansion{
		Keywords:   []string{"cafe", "sandwiches"},
		Categories: []string{"cafes", "sandwiches"},
	})

	t.Add(DimensionCraving, "spicy", Expansion{
		Keywords:   []string{"spicy", "thai", "sichuan", "hot chicken", "tacos"},
		Categories: []string{"thai", "szechuan", "mexican"},
	})
	t.Add(DimensionCraving, "sweet", Expansion{
		Keywords:   []string{"dessert", "ice cream", "frozen yogurt", "gelato", "bakery"},
		Categories: []string{"desserts", "icecream", "bakeries"},
	})
	t.Add(DimensionCraving, "hot and hearty", Expansion{
		Keywords:   []string{"ramen", "bbq", "burgers", "pasta"},
		Categories: []string{"ramen", "bbq", "burgers", "italian"},
	})
	t.Add(DimensionCraving, "fresh and light", Expansion{
		Keywords:   []string{"salad", "poke", "mediterranean", "sushi"},
		Categories: []string{"salad", "poke", "mediterranean", "sushi"},
	})

	t.Add(DimensionDiet, "weight loss", Expansion{
		Keywords:       []string{"healthy", "salad"},
		Categories:     []string{"salad"},
		HealthOriented: true,
	})
	t.Add(DimensionDiet, "vegetarian", Expansion{
		Keywords:   []string{"vegetarian", "vegan"},
		Categories: []string{"vegetarian", "vegan"},
	})
	t.Add(DimensionDiet, "gluten-free", Expansion{
		Keywords:   []string{"gluten-free"},
		Categories: []string{"gluten_free"},
	})
	t.Add(DimensionDiet, "low-carb", Expansion{
		Keywords:       []string{"keto", "grill"},
		HealthOriented: true,
	})
	t.Add(DimensionDiet, "high-protein", Expansion{
		Keywords:   []string{"steakhouse", "grill"},
		Categories: []string{"steak"},
	})

	t.Add(DimensionMethod, "drive-thru", Expansion{
		Keywords: []string{"drive-thru"},
	})

	t.Add(DimensionOccasion, "quick lunch", Expansion{
		Keywords:   []string{"sandwiches", "fast casual"},
		Categories: []string{"sandwiches"},
	})
	t.Add(DimensionOccasion, "date night", Expansion{
		Keywords:   []string{"wine bar", "italian", "tapas"},
		Categories: []string{"wine_bars", "italian", "tapas"},
	})
	t.Add(DimensionOccasion, "post-workout", Expansion{
		Keywords:       []string{"protein bowl", "healthy"},
		HealthOriented: true,
	})
	t.Add(DimensionOccasion, "comfort after a long day", Expansion{
		Keywords:   []string{"comfort food", "pizza"},
		Categories: []string{"comfortfood", "pizza"},
	})
	t.Add(DimensionOccasion, "celebration", Expansion{
		Keywords:   []string{"steakhouse", "sushi", "cocktail bar"},
		Categories: []string{"steak", "sushi", "cocktailbars"},
	})

	t.Add(DimensionGroup, "small group", Expansion{GroupMode: true})
	t.Add(DimensionGroup, "big group", Expansion{
		Keywords:  []string{"family style"},
		GroupMode: true,
	})

	return t
}
