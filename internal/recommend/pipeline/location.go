package pipeline

import (
	"context"
	"strings"
	"time"

	"quiz-recommender/internal/models"
)

// Locator acquires the device position. It may block until ctx is done.
type Locator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

type LocatorFunc func(ctx context.Context) (models.Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (models.Coordinates, error) { return f(ctx) }

type LocationSource string

const (
	SourceGeolocation LocationSource = "geolocation"
	SourceManual      LocationSource = "manual"
	SourceFallback    LocationSource = "fallback"
)

type ResolvedLocation struct {
	Coordinates *models.Coordinates
	Location    string
	Source      LocationSource
}

// Apply writes the location into the controls; coordinates replace a location string.
func (r ResolvedLocation) Apply(controls *models.LiveControls) {
	controls.Coordinates = r.Coordinates
	controls.Location = r.Location
}

// ResolveLocation asks the locator once, bounded by timeout. On error, timeout or a
// nil locator it falls back to the manual location, then to the fallback city.
func ResolveLocation(ctx context.Context, locator Locator, timeout time.Duration, manual, fallback string) ResolvedLocation {
	if locator != nil {
		if coords, ok := locate(ctx, locator, timeout); ok {
			return ResolvedLocation{Coordinates: &coords, Source: SourceGeolocation}
		}
	}
	if m := strings.TrimSpace(manual); m != "" {
		return ResolvedLocation{Location: m, Source: SourceManual}
	}
	return ResolvedLocation{Location: fallback, Source: SourceFallback}
}

type located struct {
	coords models.Coordinates
	err    error
}

// locate runs the locator in its own goroutine so a locator that ignores ctx
// cannot hold the caller past the timeout.
func locate(ctx context.Context, locator Locator, timeout time.Duration) (models.Coordinates, bool) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan located, 1)
	go func() {
		c, err := locator.Locate(ctx)
		done <- located{coords: c, err: err}
	}()

	select {
	case <-ctx.Done():
		return models.Coordinates{}, false
	case res := <-done:
		if res.err != nil || !validCoordinates(res.coords) {
			return models.Coordinates{}, false
		}
		return res.coords, true
	}
}

func validCoordinates(c models.Coordinates) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}
