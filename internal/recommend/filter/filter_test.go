package filter

import (
	"testing"

	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restaurant(id, name string) models.Business {
	return models.Business{
		ID:         id,
		Name:       name,
		Rating:     4.6,
		PriceTier:  "2",
		Categories: []models.Category{{Alias: "tradamerican", Title: "American (Traditional)"}},
		OpenStatus: models.OpenStatusOpen,
	}
}

func names(bs []models.Business) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Name
	}
	return out
}

func boolPtr(v bool) *bool { return &v }

// ==========================================
// Classifiers
// ==========================================

func TestIsLodging(t *testing.T) {
	tests := []struct {
		name string
		biz  models.Business
		want bool
	}{
		{"word boundary keeps innovation", restaurant("1", "Innovation Grill"), false},
		{"motel name", restaurant("2", "Sunset Motel"), true},
		{"inn name", restaurant("3", "Cozy Inn & Suites"), true},
		{"bed and breakfast", restaurant("4", "Rose Bed & Breakfast"), true},
		{"guest house", restaurant("5", "Maple Guest House Kitchen"), true},
		{"substring inside word", restaurant("6", "Dinner Bell Hostelry Cafe"), false},
		{
			"lodging category",
			models.Business{ID: "7", Name: "The Grand", Categories: []models.Category{{Alias: "hotels", Title: "Hotels"}}},
			true,
		},
		{"plain restaurant", restaurant("8", "Joe's Diner"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLodging(tt.biz))
		})
	}
}

func TestIsFood(t *testing.T) {
	assert.True(t, IsFood(models.Business{Name: "No Categories"}))
	assert.True(t, IsFood(models.Business{Categories: []models.Category{{Alias: "ramen", Title: "Ramen"}}}))
	assert.True(t, IsFood(models.Business{Categories: []models.Category{{Alias: "wine_bars", Title: "Wine Bars"}}}))
	assert.True(t, IsFood(models.Business{Categories: []models.Category{
		{Alias: "servicestations", Title: "Gas Stations"},
		{Alias: "convenience", Title: "Convenience Stores"},
		{Alias: "hotdogs", Title: "Fast Food"},
	}}))
	assert.False(t, IsFood(models.Business{Categories: []models.Category{{Alias: "servicestations", Title: "Gas Stations"}}}))
	assert.False(t, IsFood(models.Business{Categories: []models.Category{{Alias: "autorepair", Title: "Auto Repair"}}}))
}

func TestIsFood_WholeWords(t *testing.T) {
	tests := []struct {
		name     string
		category models.Category
		want     bool
	}{
		{"public services", models.Category{Alias: "publicservicesgovt", Title: "Public Services & Government"}, false},
		{"kitchen and bath", models.Category{Alias: "kitchenandbath", Title: "Kitchen & Bath"}, false},
		{"truck rental", models.Category{Alias: "truck_rental", Title: "Truck Rental"}, false},
		{"team building", models.Category{Alias: "teambuilding", Title: "Team Building Activities"}, false},
		{"pubs", models.Category{Alias: "pubs", Title: "Pubs"}, true},
		{"food trucks", models.Category{Alias: "foodtrucks", Title: "Food Trucks"}, true},
		{"tea rooms", models.Category{Alias: "tea", Title: "Tea Rooms"}, true},
		{"tex-mex alias only", models.Category{Alias: "tex-mex"}, true},
		{"ice cream alias only", models.Category{Alias: "icecream"}, true},
		{"traditional american alias only", models.Category{Alias: "tradamerican"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := models.Business{Name: "Somewhere", Categories: []models.Category{tt.category}}
			assert.Equal(t, tt.want, IsFood(b))
		})
	}
}

func TestMatchesChain(t *testing.T) {
	chains := []string{"mcdonald", "taco bell"}
	assert.True(t, MatchesChain("McDonald's", chains))
	assert.True(t, MatchesChain("Taco Bell Cantina", chains))
	assert.False(t, MatchesChain("Taco Casa", chains))
	assert.False(t, MatchesChain("Anything", nil))
}

func TestNew_DefaultChainList(t *testing.T) {
	stage := New(DefaultConfig(), logger.NewNoOpLogger())
	kept := stage.Apply([]models.Business{restaurant("1", "McDonald's"), restaurant("2", "Local Spot")},
		models.LiveControls{ExcludeChains: true})
	require.Len(t, kept, 1)
	assert.Equal(t, "Local Spot", kept[0].Name)

	unset := New(Config{}, logger.NewNoOpLogger())
	assert.Len(t, unset.Apply([]models.Business{restaurant("1", "Taco Bell")}, models.LiveControls{ExcludeChains: true}), 0)
}

func TestNearDuplicateKey(t *testing.T) {
	a := restaurant("a", "Joe's Diner")
	a.Coordinates = &models.Coordinates{Latitude: 31.4638, Longitude: -100.4370}
	b := restaurant("b", "  JOE'S   diner ")
	b.Coordinates = &models.Coordinates{Latitude: 31.4639, Longitude: -100.4371}
	c := restaurant("c", "Joe's Diner")
	c.Coordinates = &models.Coordinates{Latitude: 31.50, Longitude: -100.4370}

	assert.Equal(t, NearDuplicateKey(a), NearDuplicateKey(b))
	assert.NotEqual(t, NearDuplicateKey(a), NearDuplicateKey(c))
	assert.Empty(t, NearDuplicateKey(restaurant("d", "No Coords")))
}

// ==========================================
// Stage
// ==========================================

func newStage() *Stage {
	return New(Config{MinRating: 4.5, BudgetMaxTier: 2, ChainNames: []string{"McDonald"}}, logger.NewNoOpLogger())
}

func TestApply_DropsLodgingAndKeepsOrder(t *testing.T) {
	in := []models.Business{
		restaurant("1", "Cozy Inn & Suites"),
		restaurant("2", "Joe's Diner"),
		restaurant("3", "Innovation Grill"),
		restaurant("4", "Sunset Motel"),
		restaurant("5", "Blue Plate"),
	}
	out := newStage().Apply(in, models.LiveControls{})
	assert.Equal(t, []string{"Joe's Diner", "Innovation Grill", "Blue Plate"}, names(out))
}

func TestApply_OpenNowPriority(t *testing.T) {
	verifiedClosed := restaurant("1", "Says Open But Closed")
	verifiedClosed.VerifiedOpen = boolPtr(false)

	verifiedOpen := restaurant("2", "Says Closed But Open")
	verifiedOpen.OpenStatus = models.OpenStatusClosed
	verifiedOpen.VerifiedOpen = boolPtr(true)

	unknown := restaurant("3", "No Hours")
	unknown.OpenStatus = models.OpenStatusUnknown

	open := restaurant("4", "Plainly Open")

	in := []models.Business{verifiedClosed, verifiedOpen, unknown, open}

	out := newStage().Apply(in, models.LiveControls{OpenNow: true})
	assert.Equal(t, []string{"Says Closed But Open", "Plainly Open"}, names(out))

	all := newStage().Apply(in, models.LiveControls{OpenNow: false})
	assert.Len(t, all, 4)
}

func TestApply_HardFilters(t *testing.T) {
	low := restaurant("1", "Low Rated")
	low.Rating = 4.0
	pricey := restaurant("2", "Fancy")
	pricey.PriceTier = "4"
	noPrice := restaurant("3", "Unknown Price")
	noPrice.PriceTier = ""
	chain := restaurant("4", "McDonald's")
	keeper := restaurant("5", "Local Spot")

	in := []models.Business{low, pricey, noPrice, chain, keeper}

	tests := []struct {
		name     string
		controls models.LiveControls
		want     []string
	}{
		{"none", models.LiveControls{}, []string{"Low Rated", "Fancy", "Unknown Price", "McDonald's", "Local Spot"}},
		{"high rated", models.LiveControls{HighRatedOnly: true}, []string{"Fancy", "Unknown Price", "McDonald's", "Local Spot"}},
		{"budget", models.LiveControls{BudgetOnly: true}, []string{"Low Rated", "Unknown Price", "McDonald's", "Local Spot"}},
		{"no chains", models.LiveControls{ExcludeChains: true}, []string{"Low Rated", "Fancy", "Unknown Price", "Local Spot"}},
		{
			"all",
			models.LiveControls{HighRatedOnly: true, BudgetOnly: true, ExcludeChains: true},
			[]string{"Unknown Price", "Local Spot"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(newStage().Apply(in, tt.controls)))
		})
	}
}

func TestApply_NearDuplicates(t *testing.T) {
	first := restaurant("a", "Joe's Diner")
	first.Coordinates = &models.Coordinates{Latitude: 31.4638, Longitude: -100.4370}
	second := restaurant("b", "Joe's Diner")
	second.Coordinates = &models.Coordinates{Latitude: 31.4640, Longitude: -100.4369}
	sameID := restaurant("a", "Joe's Diner Again")
	noCoords1 := restaurant("c", "Twin")
	noCoords2 := restaurant("d", "Twin")

	out := newStage().Apply([]models.Business{first, second, sameID, noCoords1, noCoords2}, models.LiveControls{})
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, []string{"c", "d"}, []string{out[1].ID, out[2].ID})
}

func TestApply_Empty(t *testing.T) {
	assert.Empty(t, newStage().Apply(nil, models.LiveControls{OpenNow: true}))
}

func TestTierOf(t *testing.T) {
	assert.Equal(t, 2, tierOf("2"))
	assert.Equal(t, 3, tierOf("$$$"))
	assert.Equal(t, 1, tierOf("$"))
}
