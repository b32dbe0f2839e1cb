// Package querybuilder expands a SearchIntent and the live controls into a QueryPlan.
package querybuilder

import (
	"sort"
	"strings"

	"quiz-recommender/internal/models"
)

const (
	GenericTerm     = "restaurants"
	GenericCategory = "restaurants"
)

type Config struct {
	DefaultLimit      int
	MaxLimit          int
	MaxRadius         int
	FallbackLocation  string
	CombinedKeywords  int
	MaxSingleKeywords int
}

func DefaultConfig() Config {
	return Config{
		DefaultLimit:      20,
		MaxLimit:          50,
		MaxRadius:         40000,
		FallbackLocation:  "San Angelo, TX",
		CombinedKeywords:  3,
		MaxSingleKeywords: 4,
	}
}

type Builder struct {
	cfg Config
}

func New(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.MaxRadius <= 0 {
		cfg.MaxRadius = def.MaxRadius
	}
	if cfg.CombinedKeywords <= 0 {
		cfg.CombinedKeywords = def.CombinedKeywords
	}
	if cfg.MaxSingleKeywords <= 0 {
		cfg.MaxSingleKeywords = def.MaxSingleKeywords
	}
	return &Builder{cfg: cfg}
}

// Build is deterministic in its inputs. Variant order is: categories, combined
// keywords, single keywords, generic term; duplicates by signature are dropped.
func (b *Builder) Build(intent models.SearchIntent, controls models.LiveControls) models.QueryPlan {
	return models.QueryPlan{
		Shared:   b.shared(intent, controls),
		Variants: b.variants(intent),
	}
}

func (b *Builder) shared(intent models.SearchIntent, controls models.LiveControls) models.SharedParams {
	radius := intent.RadiusMeters
	if controls.RadiusMeters > 0 {
		radius = controls.RadiusMeters
	}
	if radius > b.cfg.MaxRadius {
		radius = b.cfg.MaxRadius
	}

	tiers := intent.PriceTiers
	if len(controls.PriceTiers) > 0 {
		tiers = controls.PriceTiers
	}

	sortBy := intent.SortPreference
	if controls.SortBy.Valid() {
		sortBy = controls.SortBy
	}
	if !sortBy.Valid() {
		sortBy = models.SortBestMatch
	}

	limit := controls.Limit
	if limit <= 0 {
		limit = b.cfg.DefaultLimit
	}
	if limit > b.cfg.MaxLimit {
		limit = b.cfg.MaxLimit
	}

	offset := controls.Offset
	if offset < 0 {
		offset = 0
	}

	shared := models.SharedParams{
		RadiusMeters: radius,
		Price:        PriceParam(tiers),
		OpenNow:      controls.OpenNow,
		SortBy:       sortBy,
		Limit:        limit,
		Offset:       offset,
		Transactions: append([]string(nil), intent.Transactions...),
	}
	if controls.Coordinates != nil {
		c := *controls.Coordinates
		shared.Coordinates = &c
	} else if loc := strings.TrimSpace(controls.Location); loc != "" {
		shared.Location = loc
	} else {
		shared.Location = b.cfg.FallbackLocation
	}
	return shared
}

func (b *Builder) variants(intent models.SearchIntent) []models.QueryVariant {
	var out []models.QueryVariant
	seen := make(map[string]bool)
	add := func(v models.QueryVariant) {
		sig := v.Signature()
		if seen[sig] {
			return
		}
		seen[sig] = true
		out = append(out, v)
	}

	cats := append(append([]string(nil), intent.Categories...), GenericCategory)
	add(models.CategoriesVariant(cats...))

	keywords := nonEmpty(intent.Keywords)
	n := b.cfg.CombinedKeywords
	if len(keywords) < n {
		n = len(keywords)
	}
	if n > 0 {
		add(models.TermVariant(strings.Join(keywords[:n], " ")))
	}

	rest := keywords[n:]
	if len(rest) > b.cfg.MaxSingleKeywords {
		rest = rest[:b.cfg.MaxSingleKeywords]
	}
	for _, k := range rest {
		add(models.TermVariant(k))
	}

	add(models.TermVariant(GenericTerm))
	return out
}

// Relax loosens a plan for the fallback pass: open-now cleared, radius doubled up
// to maxRadius, and relaxTerms not already present appended.
func Relax(plan models.QueryPlan, relaxTerms []string, maxRadius int) models.QueryPlan {
	shared := plan.Shared
	shared.OpenNow = false
	shared.RadiusMeters *= 2
	if maxRadius > 0 && shared.RadiusMeters > maxRadius {
		shared.RadiusMeters = maxRadius
	}

	variants := append([]models.QueryVariant(nil), plan.Variants...)
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		seen[v.Signature()] = true
	}
	for _, term := range relaxTerms {
		v := models.TermVariant(term)
		if v.Signature() == "term:" || seen[v.Signature()] {
			continue
		}
		seen[v.Signature()] = true
		variants = append(variants, v)
	}
	return models.QueryPlan{Shared: shared, Variants: variants}
}

// PriceParam renders the provider price filter. All tiers, or none, yields "" so no tier is excluded.
func PriceParam(tiers []string) string {
	set := make(map[string]bool, len(tiers))
	for _, t := range tiers {
		switch t {
		case "1", "2", "3", "4":
			set[t] = true
		}
	}
	if len(set) == 0 || len(set) == len(models.AllPriceTiers) {
		return ""
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
