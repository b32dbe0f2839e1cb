// internal/models/saved.go
package models

import "time"

// ResultCacheEntry is the last successful live result set.
type ResultCacheEntry struct {
	Timestamp  time.Time  `json:"timestamp"`
	Businesses []Business `json:"businesses"`
}

type SavedPlace struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	URL     string    `json:"url,omitempty"`
	Address string    `json:"address,omitempty"`
	SavedAt time.Time `json:"savedAt"`
}

func SavedPlaceFrom(b Business, at time.Time) SavedPlace {
	return SavedPlace{
		ID:      b.ID,
		Name:    b.Name,
		URL:     b.URL,
		Address: b.Address,
		SavedAt: at,
	}
}
