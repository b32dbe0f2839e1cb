// internal/models/quiz.go
package models

// QuizAnswer is one recorded (question, answer) pair from the quiz front-end.
type QuizAnswer struct {
	QuestionText string `json:"questionText"`
	AnswerText   string `json:"answerText"`
}

type SortMode string

const (
	SortBestMatch SortMode = "best_match"
	SortRating    SortMode = "rating"
	SortDistance  SortMode = "distance"
)

// Valid reports whether s is one of the provider sort modes.
func (s SortMode) Valid() bool {
	switch s {
	case SortBestMatch, SortRating, SortDistance:
		return true
	}
	return false
}

const (
	TransactionDelivery = "delivery"
	TransactionPickup   = "pickup"
)

// AllPriceTiers is the default price tier set; it never filters anything out.
var AllPriceTiers = []string{"1", "2", "3", "4"}

// SearchIntent is derived from the full answer sequence on every rerun.
type SearchIntent struct {
	Keywords       []string `json:"keywords"`
	Categories     []string `json:"categories"`
	PriceTiers     []string `json:"priceTiers"`
	RadiusMeters   int      `json:"radiusMeters"`
	Transactions   []string `json:"transactions"`
	SortPreference SortMode `json:"sortPreference"`
	NegativeHints  []string `json:"negativeHints"`
	GroupMode      bool     `json:"groupMode"`
}

// PriceConstrained is false when every tier is allowed.
func (i SearchIntent) PriceConstrained() bool {
	if len(i.PriceTiers) == 0 {
		return false
	}
	seen := make(map[string]bool, len(i.PriceTiers))
	for _, t := range i.PriceTiers {
		seen[t] = true
	}
	for _, t := range AllPriceTiers {
		if !seen[t] {
			return true
		}
	}
	return false
}

// AllowsPrice reports whether a price tier ("1".."4") is in the allowed set.
func (i SearchIntent) AllowsPrice(tier string) bool {
	for _, t := range i.PriceTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// Preferences is the persisted "last search preferences" slot.
type Preferences struct {
	Answers  []QuizAnswer `json:"answers"`
	Controls LiveControls `json:"controls"`
}
