// internal/models/business.go
package models

import "strings"

type OpenStatus string

const (
	OpenStatusOpen    OpenStatus = "open"
	OpenStatusClosed  OpenStatus = "closed"
	OpenStatusUnknown OpenStatus = "unknown"
)

type Category struct {
	Alias string `json:"alias"`
	Title string `json:"title"`
}

// Business is the normalized, provider-agnostic listing. ID is the dedup key.
type Business struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	URL            string       `json:"url,omitempty"`
	ImageURL       string       `json:"imageUrl,omitempty"`
	Rating         float64      `json:"rating"`
	ReviewCount    int          `json:"reviewCount"`
	PriceTier      string       `json:"priceTier,omitempty"`
	Categories     []Category   `json:"categories"`
	Coordinates    *Coordinates `json:"coordinates,omitempty"`
	DistanceMeters *float64     `json:"distanceMeters,omitempty"`
	Phone          string       `json:"phone,omitempty"`
	Address        string       `json:"address,omitempty"`
	OpenStatus     OpenStatus   `json:"openStatus"`
	HasHours       bool         `json:"hasHours"`

	// VerifiedOpen is set from a Details Lookup and outranks OpenStatus.
	VerifiedOpen *bool `json:"verifiedOpen,omitempty"`
}

// IsOpen resolves the open classification: verified lookup, then search-time status.
// Unknown is reported as not open.
func (b Business) IsOpen() bool {
	if b.VerifiedOpen != nil {
		return *b.VerifiedOpen
	}
	return b.OpenStatus == OpenStatusOpen
}

// EffectiveOpenStatus is IsOpen with the unknown case kept distinct.
func (b Business) EffectiveOpenStatus() OpenStatus {
	if b.VerifiedOpen != nil {
		if *b.VerifiedOpen {
			return OpenStatusOpen
		}
		return OpenStatusClosed
	}
	if b.OpenStatus == "" {
		return OpenStatusUnknown
	}
	return b.OpenStatus
}

// CategoryText joins aliases and titles, lowercased by callers as needed.
func (b Business) CategoryText() string {
	var sb strings.Builder
	for _, c := range b.Categories {
		sb.WriteString(c.Alias)
		sb.WriteByte(' ')
		sb.WriteString(c.Title)
		sb.WriteByte(' ')
	}
	return sb.String()
}

func (b Business) DistanceMiles() (float64, bool) {
	if b.DistanceMeters == nil {
		return 0, false
	}
	return *b.DistanceMeters / 1609.344, true
}

// RankedResult is a Business decorated for one render pass.
type RankedResult struct {
	Business
	Score   float64  `json:"score"`
	WhyTags []string `json:"whyTags"`
}

// BusinessDetails is the Details Lookup payload.
type BusinessDetails struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsClosed  *bool  `json:"is_closed,omitempty"`
	IsOpenNow *bool  `json:"is_open_now,omitempty"`
}

// VerifiedOpen reads the live open flag, or reports a permanent closure as not
// open. Nil means the lookup could not tell.
func (d BusinessDetails) VerifiedOpen() *bool {
	if d.IsOpenNow != nil {
		v := *d.IsOpenNow
		return &v
	}
	if d.IsClosed != nil && *d.IsClosed {
		v := false
		return &v
	}
	return nil
}
