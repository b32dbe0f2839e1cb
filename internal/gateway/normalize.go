package gateway

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"quiz-recommender/internal/models"
)

// RawBusiness is the provider-native record as relayed by the proxy. Nothing
// outside this package reads it.
type RawBusiness struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	URL          string            `json:"url"`
	ImageURL     string            `json:"image_url"`
	Rating       float64           `json:"rating"`
	ReviewCount  int               `json:"review_count"`
	Price        string            `json:"price"`
	Categories   []models.Category `json:"categories"`
	Coordinates  *rawCoordinates   `json:"coordinates"`
	Distance     *float64          `json:"distance"`
	DisplayPhone string            `json:"display_phone"`
	Phone        string            `json:"phone"`
	Location     *rawLocation      `json:"location"`
	Hours        []rawHours        `json:"hours"`
	IsClosed     *bool             `json:"is_closed"`
}

type rawCoordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type rawLocation struct {
	Address1       string   `json:"address1"`
	DisplayAddress []string `json:"display_address"`
}

type rawHours struct {
	IsOpenNow *bool `json:"is_open_now"`
}

type searchEnvelope struct {
	Businesses []json.RawMessage `json:"businesses"`
}

// DecodeBusinesses parses a search response body. A body that is not an object
// with a businesses array is malformed; individual records that fail to parse
// or lack an id are skipped and counted.
func DecodeBusinesses(body []byte) ([]models.Business, int, error) {
	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]models.Business, 0, len(env.Businesses))
	skipped := 0
	for _, raw := range env.Businesses {
		var rb RawBusiness
		if err := json.Unmarshal(raw, &rb); err != nil {
			skipped++
			continue
		}
		b, ok := Normalize(rb)
		if !ok {
			skipped++
			continue
		}
		out = append(out, b)
	}
	return out, skipped, nil
}

// Normalize converts one raw record. It reports false when the record has no id.
func Normalize(raw RawBusiness) (models.Business, bool) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return models.Business{}, false
	}
	b := models.Business{
		ID:          id,
		Name:        strings.TrimSpace(raw.Name),
		URL:         raw.URL,
		ImageURL:    raw.ImageURL,
		Rating:      clampRating(raw.Rating),
		ReviewCount: max(raw.ReviewCount, 0),
		PriceTier:   priceTier(raw.Price),
		Categories:  cleanCategories(raw.Categories),
		Phone:       firstNonEmpty(raw.DisplayPhone, raw.Phone),
		Address:     address(raw.Location),
		OpenStatus:  openStatus(raw),
		HasHours:    raw.Hours != nil || raw.IsClosed != nil,
	}
	if c := raw.Coordinates; c != nil && c.Latitude != nil && c.Longitude != nil {
		b.Coordinates = &models.Coordinates{Latitude: *c.Latitude, Longitude: *c.Longitude}
	}
	if raw.Distance != nil && *raw.Distance >= 0 && !math.IsNaN(*raw.Distance) {
		d := *raw.Distance
		b.DistanceMeters = &d
	}
	return b, true
}

// openStatus: explicit is_closed, then hours[0].is_open_now, then unknown.
func openStatus(raw RawBusiness) models.OpenStatus {
	if raw.IsClosed != nil {
		if *raw.IsClosed {
			return models.OpenStatusClosed
		}
		return models.OpenStatusOpen
	}
	if len(raw.Hours) > 0 && raw.Hours[0].IsOpenNow != nil {
		if *raw.Hours[0].IsOpenNow {
			return models.OpenStatusOpen
		}
		return models.OpenStatusClosed
	}
	return models.OpenStatusUnknown
}

func address(loc *rawLocation) string {
	if loc == nil {
		return ""
	}
	if a := strings.TrimSpace(loc.Address1); a != "" {
		return a
	}
	return strings.Join(loc.DisplayAddress, ", ")
}

// priceTier maps "$$" to "2". Digits pass through; anything else is dropped.
func priceTier(price string) string {
	price = strings.TrimSpace(price)
	switch {
	case price == "":
		return ""
	case strings.Trim(price, "$") == "" && len(price) <= 4:
		return fmt.Sprintf("%d", len(price))
	case len(price) == 1 && price[0] >= '1' && price[0] <= '4':
		return price
	default:
		return ""
	}
}

func clampRating(r float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	return math.Max(0, math.Min(5, r))
}

func cleanCategories(cats []models.Category) []models.Category {
	out := make([]models.Category, 0, len(cats))
	for _, c := range cats {
		if c.Alias == "" && c.Title == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
