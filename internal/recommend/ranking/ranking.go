// Package ranking scores filtered businesses against a SearchIntent and orders
// them for display.
package ranking

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/models"
	"quiz-recommender/internal/recommend/filter"
	"quiz-recommender/internal/recommend/terms"
)

// Score weights. Rating dominates; distance is a penalty.
const (
	WeightRating      = 0.38
	WeightReviews     = 0.17
	WeightCuisine     = 0.12
	WeightPrice       = 0.10
	WeightIndependent = 0.08
	WeightOpen        = 0.07
	WeightDistance    = 0.15
	// subtracted once when the business matches any negative hint
	NegativeHintPenalty = 0.05
)

const (
	maxWhyTags       = 4
	highRatingCutoff = 4.5
)

// MinScore and MaxScore bound Score for any input.
const (
	MinScore = -WeightDistance - NegativeHintPenalty
	MaxScore = WeightRating + WeightReviews + WeightCuisine + WeightPrice + WeightIndependent + WeightOpen
)

type Config struct {
	ChainNames []string
	Jitter     float64
}

func DefaultConfig() Config {
	return Config{Jitter: 0.025, ChainNames: terms.ChainNames()}
}

type Ranker struct {
	chains []string
	jitter float64
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *Ranker {
	if cfg.Jitter <= 0 {
		cfg.Jitter = DefaultConfig().Jitter
	}
	if cfg.ChainNames == nil {
		cfg.ChainNames = terms.ChainNames()
	}
	chains := make([]string, 0, len(cfg.ChainNames))
	for _, c := range cfg.ChainNames {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			chains = append(chains, c)
		}
	}
	return &Ranker{chains: chains, jitter: cfg.Jitter, logger: logger.ForComponent(log, "ranking")}
}

// Score is the best-match weighted score. It is deterministic and lies in [MinScore, MaxScore].
func (r *Ranker) Score(b models.Business, intent models.SearchIntent) float64 {
	s := WeightRating*norm(b.Rating, 3.5, 5) +
		WeightReviews*logNorm(b.ReviewCount) +
		WeightCuisine*cuisineMatch(b, intent) +
		WeightPrice*priceFit(b, intent) +
		WeightIndependent*r.independence(b) +
		WeightOpen*boolScore(b.IsOpen()) -
		WeightDistance*distancePenalty(b)
	if matchesNegativeHint(b, intent.NegativeHints) {
		s -= NegativeHintPenalty
	}
	return s
}

// Rerank scores every business and orders them for mode. Best match puts open
// businesses first unless the open-now filter already removed the closed ones.
// Rating and distance modes sort by their field only, missing values last.
func (r *Ranker) Rerank(businesses []models.Business, mode models.SortMode, intent models.SearchIntent, controls models.LiveControls) []models.RankedResult {
	results := r.decorate(businesses, intent, nil)
	switch mode {
	case models.SortRating:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Rating > results[j].Rating
		})
	case models.SortDistance:
		sort.SliceStable(results, func(i, j int) bool {
			di, okI := results[i].DistanceMiles()
			dj, okJ := results[j].DistanceMiles()
			if okI != okJ {
				return okI
			}
			return di < dj
		})
	default:
		sortBestMatch(results, !controls.OpenNow)
	}
	r.logger.Debug("Reranked results", map[string]interface{}{
		"sortMode": string(mode),
		"count":    len(results),
	})
	return results
}

// RollAgain reshuffles with a bounded random jitter on every score, keeping the
// best-match ordering rules.
func (r *Ranker) RollAgain(businesses []models.Business, intent models.SearchIntent, controls models.LiveControls, rng *rand.Rand) []models.RankedResult {
	results := r.decorate(businesses, intent, func() float64 {
		return (rng.Float64()*2 - 1) * r.jitter
	})
	sortBestMatch(results, !controls.OpenNow)
	return results
}

func (r *Ranker) decorate(businesses []models.Business, intent models.SearchIntent, jitter func() float64) []models.RankedResult {
	results := make([]models.RankedResult, len(businesses))
	for i, b := range businesses {
		score := r.Score(b, intent)
		if jitter != nil {
			score += jitter()
		}
		results[i] = models.RankedResult{Business: b, Score: score, WhyTags: WhyTags(b, intent)}
	}
	return results
}

func sortBestMatch(results []models.RankedResult, openFirst bool) {
	sort.SliceStable(results, func(i, j int) bool {
		if openFirst {
			oi, oj := results[i].IsOpen(), results[j].IsOpen()
			if oi != oj {
				return oi
			}
		}
		return results[i].Score > results[j].Score
	})
}

func (r *Ranker) independence(b models.Business) float64 {
	return boolScore(!filter.MatchesChain(b.Name, r.chains))
}

// WhyTags explains a result from the scoring signals, at most four tags.
func WhyTags(b models.Business, intent models.SearchIntent) []string {
	tags := make([]string, 0, maxWhyTags)
	switch b.EffectiveOpenStatus() {
	case models.OpenStatusOpen:
		tags = append(tags, "Open now")
	case models.OpenStatusClosed:
		tags = append(tags, "Closed now")
	}
	if miles, ok := b.DistanceMiles(); ok {
		tags = append(tags, distanceBucket(miles))
	}
	if b.Rating >= highRatingCutoff {
		tags = append(tags, "Highly rated")
	}
	if intent.PriceConstrained() {
		if b.PriceTier != "" && intent.AllowsPrice(b.PriceTier) {
			tags = append(tags, "Fits your budget")
		}
	} else if b.PriceTier == "1" || b.PriceTier == "2" {
		tags = append(tags, "Budget friendly")
	}
	if kw, ok := matchedKeyword(b, intent); ok {
		tags = append(tags, "Matches "+kw)
	}
	if len(tags) > maxWhyTags {
		tags = tags[:maxWhyTags]
	}
	return tags
}

func distanceBucket(miles float64) string {
	switch {
	case miles < 1:
		return "Under 1 mi"
	case miles < 3:
		return "1-3 mi"
	case miles < 8:
		return "3-8 mi"
	default:
		return fmt.Sprintf("%.0f mi away", miles)
	}
}

// norm clamps the linear fraction of v between lo and hi to [0,1].
func norm(v, lo, hi float64) float64 {
	if hi <= lo || math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
}

// logNorm compresses review counts; 999 reviews and above score 1.
func logNorm(reviews int) float64 {
	if reviews <= 0 {
		return 0
	}
	return math.Min(1, math.Log1p(float64(reviews))/math.Log(1000))
}

// cuisineMatch is the fraction of intent keywords and categories found in the
// category text, 0.3 when the intent has none.
func cuisineMatch(b models.Business, intent models.SearchIntent) float64 {
	signals := intentSignals(intent)
	if len(signals) == 0 {
		return 0.3
	}
	text := strings.ToLower(b.CategoryText())
	hits := 0
	for _, s := range signals {
		if strings.Contains(text, s) {
			hits++
		}
	}
	return float64(hits) / float64(len(signals))
}

func matchedKeyword(b models.Business, intent models.SearchIntent) (string, bool) {
	text := strings.ToLower(b.CategoryText())
	for _, kw := range intent.Keywords {
		if k := strings.ToLower(strings.TrimSpace(kw)); k != "" && strings.Contains(text, k) {
			return kw, true
		}
	}
	return "", false
}

func intentSignals(intent models.SearchIntent) []string {
	seen := make(map[string]bool, len(intent.Keywords)+len(intent.Categories))
	out := make([]string, 0, len(intent.Keywords)+len(intent.Categories))
	for _, list := range [][]string{intent.Keywords, intent.Categories} {
		for _, s := range list {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func priceFit(b models.Business, intent models.SearchIntent) float64 {
	if !intent.PriceConstrained() {
		return 0.5
	}
	return boolScore(b.PriceTier != "" && intent.AllowsPrice(b.PriceTier))
}

// distancePenalty is the normalized miles, 0.5 when distance is unknown.
func distancePenalty(b models.Business) float64 {
	miles, ok := b.DistanceMiles()
	if !ok {
		return 0.5
	}
	return norm(miles, 0, 8)
}

func matchesNegativeHint(b models.Business, hints []string) bool {
	if len(hints) == 0 {
		return false
	}
	text := strings.ToLower(b.Name + " " + b.CategoryText())
	for _, h := range hints {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" && strings.Contains(text, h) {
			return true
		}
	}
	return false
}

func boolScore(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
