// Package filter drops listings the recommender should never show and applies the
// optional hard filters from the filter bar.
package filter

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/common/metrics"
	"quiz-recommender/internal/models"
	"quiz-recommender/internal/recommend/terms"
)

// Drop reasons, also used as metric labels.
const (
	ReasonLodging       = "lodging"
	ReasonNotFood       = "not_food"
	ReasonClosed        = "closed"
	ReasonLowRating     = "low_rating"
	ReasonOverBudget    = "over_budget"
	ReasonChain         = "chain"
	ReasonNearDuplicate = "near_duplicate"
)

// coordinate buckets per degree for the near-duplicate key
const bucketsPerDegree = 300

var lodgingPattern = regexp.MustCompile(`(?i)\b(hotels?|motels?|hostels?|lodging|resorts?|bed\s*&\s*breakfast|bedbreakfast|hotelstravel|b&b|guest\s*houses?|inns?)\b`)

// foodPattern matches whole words, optionally pluralized. Aliases are matched
// with underscores and hyphens read as spaces.
var foodPattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join([]string{
	"restaurant", "food", "cafe", "coffee", "coffee ?shop", "tea", "tea ?room", "bubble ?tea", "bakery", "bakeries",
	"dessert", "ice ?cream", "gelato", "yogurt", "donut", "bagel", "bar", "pub", "gastropub", "brewery", "breweries",
	"brewpub", "wine", "cocktail", "diner", "grill", "bistro", "eatery", "pizza", "burger", "sandwich", "deli",
	"taco", "tex[- ]?mex", "mexican", "italian", "chinese", "japanese", "sushi", "ramen", "noodle", "thai",
	"vietnamese", "korean", "indian", "mediterranean", "greek", "middle ?eastern", "french", "spanish", "tapas",
	"american", "tradamerican", "newamerican", "southern", "soul ?food", "cajun", "bbq", "barbe(?:que|cue)",
	"steak", "steakhouse", "seafood", "chicken", "wing", "salad", "poke", "vegan", "vegetarian", "gluten[- ]?free",
	"breakfast", "brunch", "buffet", "hot ?dog", "juice", "juice ?bar", "smoothie", "halal", "kosher", "soup",
	"comfort ?food", "dim ?sum", "asian", "asian ?fusion", "latin", "caribbean", "cuban", "peruvian",
	"ethiopian", "african", "fusion", "creperie", "waffle", "caterer", "catering", "food ?truck", "cuisine",
	"drive[- ]?thru", "fast ?food",
}, "|") + `)(?:e?s)?\b`)

var aliasSeparators = strings.NewReplacer("_", " ", "-", " ")

// IsLodging reports a word-boundary lodging match on the name or any category.
func IsLodging(b models.Business) bool {
	return lodgingPattern.MatchString(b.Name) || lodgingPattern.MatchString(b.CategoryText())
}

// IsFood reports whether any category looks food related. Businesses without
// categories pass.
func IsFood(b models.Business) bool {
	if len(b.Categories) == 0 {
		return true
	}
	for _, c := range b.Categories {
		if foodPattern.MatchString(aliasSeparators.Replace(c.Alias)) || foodPattern.MatchString(c.Title) {
			return true
		}
	}
	return false
}

// MatchesChain reports whether name contains one of the lowercase chain substrings.
func MatchesChain(name string, chains []string) bool {
	lower := strings.ToLower(name)
	for _, c := range chains {
		if c != "" && strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// NearDuplicateKey is the normalized name plus a coarse coordinate bucket. It is
// empty when the business has no coordinates.
func NearDuplicateKey(b models.Business) string {
	if b.Coordinates == nil {
		return ""
	}
	return fmt.Sprintf("%s|%d|%d",
		terms.Normalize(b.Name),
		int64(math.Round(b.Coordinates.Latitude*bucketsPerDegree)),
		int64(math.Round(b.Coordinates.Longitude*bucketsPerDegree)),
	)
}

type Config struct {
	MinRating     float64
	BudgetMaxTier int
	ChainNames    []string
}

func DefaultConfig() Config {
	return Config{MinRating: 4.5, BudgetMaxTier: 2, ChainNames: terms.ChainNames()}
}

// Stage applies the filter steps in a fixed order and preserves input order
// among survivors.
type Stage struct {
	cfg    Config
	chains []string
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *Stage {
	def := DefaultConfig()
	if cfg.MinRating <= 0 {
		cfg.MinRating = def.MinRating
	}
	if cfg.BudgetMaxTier <= 0 {
		cfg.BudgetMaxTier = def.BudgetMaxTier
	}
	if cfg.ChainNames == nil {
		cfg.ChainNames = def.ChainNames
	}
	chains := make([]string, 0, len(cfg.ChainNames))
	for _, c := range cfg.ChainNames {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			chains = append(chains, c)
		}
	}
	return &Stage{cfg: cfg, chains: chains, logger: logger.ForComponent(log, "filter")}
}

// Apply runs lodging, food, open-now, hard filters and near-duplicate removal.
func (s *Stage) Apply(businesses []models.Business, controls models.LiveControls) []models.Business {
	out := make([]models.Business, 0, len(businesses))
	dropped := make(map[string]int)
	seenID := make(map[string]bool, len(businesses))
	seenKey := make(map[string]bool, len(businesses))

	for _, b := range businesses {
		reason := s.reject(b, controls)
		if reason == "" {
			if seenID[b.ID] {
				reason = ReasonNearDuplicate
			} else if key := NearDuplicateKey(b); key != "" && seenKey[key] {
				reason = ReasonNearDuplicate
			} else {
				seenID[b.ID] = true
				if key != "" {
					seenKey[key] = true
				}
			}
		}
		if reason != "" {
			dropped[reason]++
			metrics.FilterDropped.WithLabelValues(reason).Inc()
			continue
		}
		out = append(out, b)
	}

	if len(dropped) > 0 {
		s.logger.Debug("Filtered search results", map[string]interface{}{
			"input":   len(businesses),
			"kept":    len(out),
			"dropped": dropped,
		})
	}
	return out
}

func (s *Stage) reject(b models.Business, controls models.LiveControls) string {
	switch {
	case IsLodging(b):
		return ReasonLodging
	case !IsFood(b):
		return ReasonNotFood
	case controls.OpenNow && !b.IsOpen():
		return ReasonClosed
	case controls.HighRatedOnly && b.Rating < s.cfg.MinRating:
		return ReasonLowRating
	case controls.BudgetOnly && b.PriceTier != "" && tierOf(b.PriceTier) > s.cfg.BudgetMaxTier:
		return ReasonOverBudget
	case controls.ExcludeChains && MatchesChain(b.Name, s.chains):
		return ReasonChain
	}
	return ""
}

// tierOf accepts "2" or "$$".
func tierOf(price string) int {
	if strings.Trim(price, "$") == "" {
		return len(price)
	}
	if len(price) == 1 && price[0] >= '1' && price[0] <= '4' {
		return int(price[0] - '0')
	}
	return len(price)
}
