package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-recommender/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocation(t *testing.T) {
	here := models.Coordinates{Latitude: 31.4638, Longitude: -100.437}
	found := LocatorFunc(func(context.Context) (models.Coordinates, error) { return here, nil })
	denied := LocatorFunc(func(context.Context) (models.Coordinates, error) {
		return models.Coordinates{}, errors.New("permission denied")
	})
	hangs := LocatorFunc(func(ctx context.Context) (models.Coordinates, error) {
		<-ctx.Done()
		return models.Coordinates{}, ctx.Err()
	})
	bogus := LocatorFunc(func(context.Context) (models.Coordinates, error) {
		return models.Coordinates{Latitude: 123, Longitude: 0}, nil
	})

	tests := []struct {
		name    string
		locator Locator
		manual  string
		wantSrc LocationSource
		wantLoc string
		wantGeo bool
	}{
		{name: "geolocation", locator: found, manual: "Dallas, TX", wantSrc: SourceGeolocation, wantGeo: true},
		{name: "denied uses manual", locator: denied, manual: "Dallas, TX", wantSrc: SourceManual, wantLoc: "Dallas, TX"},
		{name: "timeout uses manual", locator: hangs, manual: " Dallas, TX ", wantSrc: SourceManual, wantLoc: "Dallas, TX"},
		{name: "invalid coordinates", locator: bogus, wantSrc: SourceFallback, wantLoc: "San Angelo, TX"},
		{name: "no locator, no manual", wantSrc: SourceFallback, wantLoc: "San Angelo, TX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveLocation(context.Background(), tt.locator, 20*time.Millisecond, tt.manual, "San Angelo, TX")
			assert.Equal(t, tt.wantSrc, got.Source)
			assert.Equal(t, tt.wantLoc, got.Location)
			if tt.wantGeo {
				require.NotNil(t, got.Coordinates)
				assert.Equal(t, here, *got.Coordinates)
			} else {
				assert.Nil(t, got.Coordinates)
			}
		})
	}
}

func TestResolveLocation_DoesNotWaitForStuckLocator(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	stuck := LocatorFunc(func(context.Context) (models.Coordinates, error) {
		<-block
		return models.Coordinates{}, nil
	})

	start := time.Now()
	got := ResolveLocation(context.Background(), stuck, 20*time.Millisecond, "", "San Angelo, TX")
	assert.Equal(t, SourceFallback, got.Source)
	assert.Less(t, time.Since(start), time.Second)
}
