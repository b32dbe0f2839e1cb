package querybuilder

import (
	"testing"

	"quiz-recommender/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIntent() models.SearchIntent {
	return models.SearchIntent{
		Keywords:       []string{"comfort food", "soup", "ramen", "diner", "bbq", "burgers", "pasta", "pizza"},
		Categories:     []string{"comfortfood", "diners"},
		PriceTiers:     []string{"1"},
		RadiusMeters:   800,
		Transactions:   []string{models.TransactionDelivery},
		SortPreference: models.SortRating,
	}
}

func TestBuild_VariantOrder(t *testing.T) {
	plan := New(DefaultConfig()).Build(testIntent(), models.LiveControls{})

	assert.Equal(t, []string{
		"categories:comfortfood,diners,restaurants",
		"term:comfort food soup ramen",
		"term:diner",
		"term:bbq",
		"term:burgers",
		"term:pasta",
		"term:restaurants",
	}, plan.Signatures())

	for _, v := range plan.Variants {
		_, isTerm := v.Term()
		_, isCats := v.Categories()
		assert.True(t, isTerm != isCats, "variant carries exactly one of term or categories")
	}
}

func TestBuild_EmptyIntent(t *testing.T) {
	plan := New(DefaultConfig()).Build(models.SearchIntent{PriceTiers: models.AllPriceTiers, RadiusMeters: 8000}, models.LiveControls{})

	assert.Equal(t, []string{"categories:restaurants", "term:restaurants"}, plan.Signatures())
	assert.Equal(t, "", plan.Shared.Price)
	assert.Equal(t, models.SortBestMatch, plan.Shared.SortBy)
	assert.Equal(t, 20, plan.Shared.Limit)
	assert.Equal(t, "San Angelo, TX", plan.Shared.Location)
}

func TestBuild_SharedParams(t *testing.T) {
	coords := &models.Coordinates{Latitude: 31.46, Longitude: -100.43}

	tests := []struct {
		name     string
		controls models.LiveControls
		check    func(t *testing.T, s models.SharedParams)
	}{
		{
			name:     "intent values",
			controls: models.LiveControls{},
			check: func(t *testing.T, s models.SharedParams) {
				assert.Equal(t, 800, s.RadiusMeters)
				assert.Equal(t, "1", s.Price)
				assert.Equal(t, models.SortRating, s.SortBy)
				assert.False(t, s.OpenNow)
				assert.Equal(t, []string{models.TransactionDelivery}, s.Transactions)
			},
		},
		{
			name: "controls override",
			controls: models.LiveControls{
				OpenNow:      true,
				SortBy:       models.SortDistance,
				RadiusMeters: 16000,
				PriceTiers:   []string{"3", "2"},
				Limit:        10,
				Offset:       20,
			},
			check: func(t *testing.T, s models.SharedParams) {
				assert.Equal(t, 16000, s.RadiusMeters)
				assert.Equal(t, "2,3", s.Price)
				assert.Equal(t, models.SortDistance, s.SortBy)
				assert.True(t, s.OpenNow)
				assert.Equal(t, 10, s.Limit)
				assert.Equal(t, 20, s.Offset)
			},
		},
		{
			name:     "limits clamped",
			controls: models.LiveControls{RadiusMeters: 100000, Limit: 500},
			check: func(t *testing.T, s models.SharedParams) {
				assert.Equal(t, 40000, s.RadiusMeters)
				assert.Equal(t, 50, s.Limit)
			},
		},
		{
			name:     "coordinates win over location",
			controls: models.LiveControls{Coordinates: coords, Location: "Austin, TX"},
			check: func(t *testing.T, s models.SharedParams) {
				require.NotNil(t, s.Coordinates)
				assert.Equal(t, *coords, *s.Coordinates)
				assert.Empty(t, s.Location)
			},
		},
		{
			name:     "manual location",
			controls: models.LiveControls{Location: " Austin, TX "},
			check: func(t *testing.T, s models.SharedParams) {
				assert.Nil(t, s.Coordinates)
				assert.Equal(t, "Austin, TX", s.Location)
			},
		},
		{
			name:     "invalid sort ignored",
			controls: models.LiveControls{SortBy: "popularity"},
			check: func(t *testing.T, s models.SharedParams) {
				assert.Equal(t, models.SortRating, s.SortBy)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := New(DefaultConfig()).Build(testIntent(), tt.controls)
			tt.check(t, plan.Shared)
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := New(DefaultConfig())
	controls := models.LiveControls{OpenNow: true, Location: "Austin"}
	assert.Equal(t, b.Build(testIntent(), controls), b.Build(testIntent(), controls))
}

func TestBuild_DedupesVariants(t *testing.T) {
	intent := models.SearchIntent{
		Keywords:   []string{"restaurants"},
		Categories: []string{"restaurants"},
	}
	plan := New(DefaultConfig()).Build(intent, models.LiveControls{})
	assert.Equal(t, []string{"categories:restaurants", "term:restaurants"}, plan.Signatures())
}

func TestRequests_WireShape(t *testing.T) {
	coords := &models.Coordinates{Latitude: 1.5, Longitude: 2.5}
	plan := New(DefaultConfig()).Build(testIntent(), models.LiveControls{Coordinates: coords})
	reqs := plan.Requests()
	require.Len(t, reqs, len(plan.Variants))

	assert.Equal(t, "comfortfood,diners,restaurants", reqs[0].Categories)
	assert.Empty(t, reqs[0].Term)
	assert.Equal(t, "comfort food soup ramen", reqs[1].Term)
	assert.Empty(t, reqs[1].Categories)
	require.NotNil(t, reqs[1].Latitude)
	assert.Equal(t, 1.5, *reqs[1].Latitude)
	assert.Empty(t, reqs[1].Location)
}

func TestRelax(t *testing.T) {
	plan := New(DefaultConfig()).Build(testIntent(), models.LiveControls{OpenNow: true, RadiusMeters: 30000})
	relaxed := Relax(plan, []string{"food", "dinner", "restaurants", "lunch", "dessert", ""}, 40000)

	assert.False(t, relaxed.Shared.OpenNow)
	assert.Equal(t, 40000, relaxed.Shared.RadiusMeters)
	assert.True(t, plan.Shared.OpenNow, "original plan untouched")

	sigs := relaxed.Signatures()
	assert.Equal(t, plan.Signatures(), sigs[:len(plan.Variants)])
	assert.Equal(t, []string{"term:food", "term:dinner", "term:lunch", "term:dessert"}, sigs[len(plan.Variants):])
}

func TestPriceParam(t *testing.T) {
	assert.Equal(t, "", PriceParam(nil))
	assert.Equal(t, "", PriceParam([]string{"4", "3", "2", "1"}))
	assert.Equal(t, "1,2", PriceParam([]string{"2", "1", "2"}))
	assert.Equal(t, "3", PriceParam([]string{"3", "9"}))
}
