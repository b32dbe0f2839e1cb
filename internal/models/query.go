// internal/models/query.go
package models

import (
	"sort"
	"strings"
)

type VariantKind int

const (
	VariantTerm VariantKind = iota + 1
	VariantCategories
)

func (k VariantKind) String() string {
	switch k {
	case VariantTerm:
		return "term"
	case VariantCategories:
		return "categories"
	default:
		return "unknown"
	}
}

// QueryVariant carries exactly one of a free-text term or a category list.
// Construct it with TermVariant or CategoriesVariant.
type QueryVariant struct {
	kind       VariantKind
	term       string
	categories []string
}

func TermVariant(term string) QueryVariant {
	return QueryVariant{kind: VariantTerm, term: strings.TrimSpace(term)}
}

func CategoriesVariant(categories ...string) QueryVariant {
	out := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		out = append(out, c)
	}
	return QueryVariant{kind: VariantCategories, categories: out}
}

func (v QueryVariant) Kind() VariantKind { return v.kind }

func (v QueryVariant) Term() (string, bool) {
	return v.term, v.kind == VariantTerm
}

func (v QueryVariant) Categories() ([]string, bool) {
	if v.kind != VariantCategories {
		return nil, false
	}
	out := make([]string, len(v.categories))
	copy(out, v.categories)
	return out, true
}

// Signature identifies a variant for deduplication. Category order does not matter.
func (v QueryVariant) Signature() string {
	switch v.kind {
	case VariantTerm:
		return "term:" + strings.ToLower(v.term)
	case VariantCategories:
		cats := make([]string, len(v.categories))
		for i, c := range v.categories {
			cats[i] = strings.ToLower(c)
		}
		sort.Strings(cats)
		return "categories:" + strings.Join(cats, ",")
	default:
		return ""
	}
}

func (v QueryVariant) IsZero() bool { return v.kind == 0 }

// Coordinates in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LiveControls are the filter-bar values that re-enter the pipeline at the Query Builder.
// Zero values mean "use the intent".
type LiveControls struct {
	OpenNow       bool         `json:"openNow"`
	SortBy        SortMode     `json:"sortBy,omitempty"`
	RadiusMeters  int          `json:"radiusMeters,omitempty"`
	PriceTiers    []string     `json:"priceTiers,omitempty"`
	Limit         int          `json:"limit,omitempty"`
	Offset        int          `json:"offset,omitempty"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
	Location      string       `json:"location,omitempty"`
	HighRatedOnly bool         `json:"highRatedOnly,omitempty"`
	BudgetOnly    bool         `json:"budgetOnly,omitempty"`
	ExcludeChains bool         `json:"excludeChains,omitempty"`
}

// SharedParams are inherited by every variant of a plan.
type SharedParams struct {
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	Location     string       `json:"location,omitempty"`
	RadiusMeters int          `json:"radiusMeters"`
	Price        string       `json:"price,omitempty"`
	OpenNow      bool         `json:"openNow"`
	SortBy       SortMode     `json:"sortBy"`
	Limit        int          `json:"limit"`
	Offset       int          `json:"offset,omitempty"`
	Transactions []string     `json:"transactions,omitempty"`
}

// QueryPlan is an ordered list of variants over one set of shared params.
type QueryPlan struct {
	Shared   SharedParams   `json:"shared"`
	Variants []QueryVariant `json:"-"`
}

// Signatures lists the variant signatures in plan order.
func (p QueryPlan) Signatures() []string {
	out := make([]string, len(p.Variants))
	for i, v := range p.Variants {
		out[i] = v.Signature()
	}
	return out
}

// Requests expands the plan into one wire request per variant.
func (p QueryPlan) Requests() []SearchRequest {
	out := make([]SearchRequest, 0, len(p.Variants))
	for _, v := range p.Variants {
		out = append(out, NewSearchRequest(v, p.Shared))
	}
	return out
}

// SearchRequest is the Search Gateway request body.
type SearchRequest struct {
	Term         string   `json:"term,omitempty"`
	Categories   string   `json:"categories,omitempty"`
	Location     string   `json:"location,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Radius       int      `json:"radius,omitempty"`
	Price        string   `json:"price,omitempty"`
	SortBy       string   `json:"sort_by,omitempty"`
	OpenNow      bool     `json:"open_now,omitempty"`
	Transactions []string `json:"transactions,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	Offset       int      `json:"offset,omitempty"`
}

// NewSearchRequest builds the wire body for one variant. Coordinates win over a location string.
func NewSearchRequest(v QueryVariant, shared SharedParams) SearchRequest {
	req := SearchRequest{
		Radius:       shared.RadiusMeters,
		Price:        shared.Price,
		SortBy:       string(shared.SortBy),
		OpenNow:      shared.OpenNow,
		Transactions: shared.Transactions,
		Limit:        shared.Limit,
		Offset:       shared.Offset,
	}
	if term, ok := v.Term(); ok {
		req.Term = term
	}
	if cats, ok := v.Categories(); ok {
		req.Categories = strings.Join(cats, ",")
	}
	if shared.Coordinates != nil {
		lat, lon := shared.Coordinates.Latitude, shared.Coordinates.Longitude
		req.Latitude = &lat
		req.Longitude = &lon
	} else {
		req.Location = shared.Location
	}
	return req
}
