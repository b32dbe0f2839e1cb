package proxy

import (
	"strings"

	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/provider/yelp"
)

// SearchBody is the POST /search request.
type SearchBody struct {
	Term         string   `json:"term"`
	Categories   string   `json:"categories"`
	Location     string   `json:"location"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Radius       int      `json:"radius"`
	Price        string   `json:"price"`
	SortBy       string   `json:"sort_by"`
	OpenNow      bool     `json:"open_now"`
	Transactions []string `json:"transactions"`
	Limit        int      `json:"limit"`
	Offset       int      `json:"offset"`
}

type DetailsBody struct {
	ID string `json:"id"`
}

// toParams applies the forwarding rules: coordinates only as a pair, otherwise
// location with a configured default; radius and limit clamped; open_now only
// when true; transactions forwarded as attributes.
func toParams(b SearchBody, cfg config.ProxyConfig) yelp.SearchParams {
	p := yelp.SearchParams{
		Term:       strings.TrimSpace(b.Term),
		Categories: strings.TrimSpace(b.Categories),
		Price:      b.Price,
		SortBy:     b.SortBy,
		OpenNow:    b.OpenNow,
		Offset:     b.Offset,
	}
	if b.Latitude != nil && b.Longitude != nil {
		p.Latitude, p.Longitude = b.Latitude, b.Longitude
	} else {
		p.Location = strings.TrimSpace(b.Location)
		if p.Location == "" {
			p.Location = cfg.DefaultLocation
		}
	}
	if p.SortBy == "" {
		p.SortBy = "best_match"
	}

	p.Radius = b.Radius
	if cfg.MaxRadius > 0 && p.Radius > cfg.MaxRadius {
		p.Radius = cfg.MaxRadius
	}

	p.Limit = b.Limit
	if p.Limit <= 0 {
		p.Limit = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 && p.Limit > cfg.MaxLimit {
		p.Limit = cfg.MaxLimit
	}

	for _, t := range b.Transactions {
		if t = strings.TrimSpace(t); t != "" {
			p.Attributes = append(p.Attributes, t)
		}
	}
	return p
}
