// Package mapper turns an ordered quiz answer sequence into a SearchIntent.
package mapper

import (
	"strings"

	"quiz-recommender/internal/models"
	"quiz-recommender/internal/recommend/terms"
)

// Question identifies which quiz question an answer belongs to.
type Question int

const (
	QuestionUnknown Question = iota
	QuestionHunger
	QuestionTime
	QuestionGroup
	QuestionMood
	QuestionCraving
	QuestionDiet
	QuestionBudget
	QuestionDistance
	QuestionMethod
	QuestionOccasion
)

// classifiers run in order; "how much time do you have to eat" must be seen before the method check.
var classifiers = []struct {
	question Question
	markers  []string
}{
	{QuestionHunger, []string{"how hungry"}},
	{QuestionTime, []string{"how much time"}},
	{QuestionGroup, []string{"who are you eating with", "group size"}},
	{QuestionMood, []string{"mood", "vibe right now"}},
	{QuestionCraving, []string{"craving"}},
	{QuestionDiet, []string{"dietary", "diet"}},
	{QuestionBudget, []string{"spend", "budget"}},
	{QuestionDistance, []string{"how far", "distance"}},
	{QuestionMethod, []string{"like to eat", "eating method"}},
	{QuestionOccasion, []string{"occasion", "vibe"}},
}

// Classify maps a question text onto a Question by normalized substring.
func Classify(questionText string) Question {
	q := terms.Normalize(questionText)
	for _, c := range classifiers {
		for _, m := range c.markers {
			if strings.Contains(q, m) {
				return c.question
			}
		}
	}
	return QuestionUnknown
}

var dimensionFor = map[terms.Dimension]Question{
	terms.DimensionMood:     QuestionMood,
	terms.DimensionCraving:  QuestionCraving,
	terms.DimensionDiet:     QuestionDiet,
	terms.DimensionMethod:   QuestionMethod,
	terms.DimensionOccasion: QuestionOccasion,
	terms.DimensionGroup:    QuestionGroup,
}

type Config struct {
	KeywordCap    int
	CategoryCap   int
	RadiusLadder  []int
	DefaultRadius int
}

func DefaultConfig() Config {
	return Config{
		KeywordCap:    8,
		CategoryCap:   8,
		RadiusLadder:  []int{800, 3000, 8000, 16000},
		DefaultRadius: 8000,
	}
}

type Mapper struct {
	table *terms.Table
	cfg   Config
}

func New(table *terms.Table, cfg Config) *Mapper {
	if table == nil {
		table = terms.Default()
	}
	def := DefaultConfig()
	if cfg.KeywordCap <= 0 {
		cfg.KeywordCap = def.KeywordCap
	}
	if cfg.CategoryCap <= 0 {
		cfg.CategoryCap = def.CategoryCap
	}
	if len(cfg.RadiusLadder) == 0 {
		cfg.RadiusLadder = def.RadiusLadder
	}
	if cfg.DefaultRadius <= 0 {
		cfg.DefaultRadius = cfg.RadiusLadder[len(cfg.RadiusLadder)/2]
	}
	return &Mapper{table: table, cfg: cfg}
}

// Map is a pure function of answers. Unrecognized questions and answers contribute nothing.
func (m *Mapper) Map(answers []models.QuizAnswer) models.SearchIntent {
	byQuestion := index(answers)

	intent := models.SearchIntent{
		Keywords:       []string{},
		Categories:     []string{},
		PriceTiers:     priceTiers(byQuestion[QuestionBudget]),
		RadiusMeters:   m.radius(byQuestion[QuestionDistance]),
		Transactions:   transactions(byQuestion[QuestionMethod]),
		SortPreference: models.SortBestMatch,
		NegativeHints:  []string{},
	}

	var keywords, categories []string
	healthOriented := false
	for _, dim := range terms.Dimensions() {
		answer, ok := byQuestion[dimensionFor[dim]]
		if !ok {
			continue
		}
		exp, ok := m.table.Lookup(dim, answer)
		if !ok {
			continue
		}
		keywords = append(keywords, exp.Keywords...)
		categories = append(categories, exp.Categories...)
		if exp.HealthOriented && (dim == terms.DimensionMood || dim == terms.DimensionDiet) {
			healthOriented = true
		}
		if exp.GroupMode {
			intent.GroupMode = true
		}
	}
	intent.Keywords = capped(dedupe(keywords), m.cfg.KeywordCap)
	intent.Categories = capped(dedupe(categories), m.cfg.CategoryCap)

	if healthOriented {
		intent.NegativeHints = append(intent.NegativeHints, terms.NegativeHints...)
	}

	if method, ok := byQuestion[QuestionMethod]; ok && strings.Contains(terms.Normalize(method), "delivery") {
		intent.SortPreference = models.SortRating
	}

	// A short time budget wins over the distance answer and the delivery sort.
	if t, ok := byQuestion[QuestionTime]; ok && strings.Contains(terms.Normalize(t), "less than 15") {
		intent.RadiusMeters = m.clampRadius(intent.RadiusMeters, m.rung(1))
		intent.SortPreference = models.SortDistance
	}

	return intent
}

// index keeps the first answer seen for each question.
func index(answers []models.QuizAnswer) map[Question]string {
	out := make(map[Question]string, len(answers))
	for _, a := range answers {
		q := Classify(a.QuestionText)
		if q == QuestionUnknown {
			continue
		}
		if _, seen := out[q]; seen {
			continue
		}
		out[q] = a.AnswerText
	}
	return out
}

func priceTiers(answer string) []string {
	a := terms.Normalize(answer)
	switch {
	case a == "":
		return allTiers()
	case strings.Contains(a, "under $10"):
		return []string{"1"}
	case strings.Contains(a, "$10-$20"):
		return []string{"1", "2"}
	case strings.Contains(a, "$20-$40"):
		return []string{"2", "3"}
	case strings.Contains(a, "not a concern"):
		return []string{"2", "3", "4"}
	default:
		return allTiers()
	}
}

func allTiers() []string {
	out := make([]string, len(models.AllPriceTiers))
	copy(out, models.AllPriceTiers)
	return out
}

func (m *Mapper) radius(answer string) int {
	a := terms.Normalize(answer)
	switch {
	case a == "":
		return m.cfg.DefaultRadius
	case strings.Contains(a, "walking"):
		return m.rung(0)
	case strings.Contains(a, "short drive"):
		return m.rung(1)
	case strings.Contains(a, "15-30"):
		return m.rung(2)
	case strings.Contains(a, "anywhere"):
		return m.rung(3)
	default:
		return m.cfg.DefaultRadius
	}
}

// rung returns ladder[i], clamped to the ladder length.
func (m *Mapper) rung(i int) int {
	ladder := m.cfg.RadiusLadder
	if i >= len(ladder) {
		i = len(ladder) - 1
	}
	return ladder[i]
}

func (m *Mapper) clampRadius(current, limit int) int {
	if current > limit {
		return limit
	}
	return current
}

func transactions(answer string) []string {
	a := terms.Normalize(answer)
	switch {
	case strings.Contains(a, "delivery"):
		return []string{models.TransactionDelivery}
	case strings.Contains(a, "takeout"):
		return []string{models.TransactionPickup}
	default:
		return []string{}
	}
}

// dedupe removes case-insensitive duplicates, keeping first-seen order.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func capped(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
