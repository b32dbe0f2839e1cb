package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "quiz-recommender/internal/common/errors"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/models"
	"quiz-recommender/internal/recommend/fanout"
	"quiz-recommender/internal/recommend/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qMood     = "What’s your current mood?"
	qCraving  = "Are you craving anything specific?"
	qDiet     = "Any dietary goals or restrictions?"
	qBudget   = "How much are you looking to spend?"
	qDistance = "How far are you willing to go?"
	qMethod   = "How would you like to eat today?"
)

func comfortDeliveryAnswers() []models.QuizAnswer {
	return []models.QuizAnswer{
		{QuestionText: qMood, AnswerText: "Cozy / comfort food"},
		{QuestionText: qCraving, AnswerText: "Hot and hearty"},
		{QuestionText: qDiet, AnswerText: "No restrictions"},
		{QuestionText: qBudget, AnswerText: "Under $10"},
		{QuestionText: qDistance, AnswerText: "Walking distance"},
		{QuestionText: qMethod, AnswerText: "Delivery"},
	}
}

func restaurant(id, name string, rating float64, status models.OpenStatus) models.Business {
	return models.Business{
		ID:         id,
		Name:       name,
		Rating:     rating,
		Categories: []models.Category{{Alias: "diners", Title: "Diners"}},
		OpenStatus: status,
	}
}

func lodging(id, name string) models.Business {
	return models.Business{
		ID:         id,
		Name:       name,
		Rating:     4.9,
		Categories: []models.Category{{Alias: "hotels", Title: "Hotels"}},
		OpenStatus: models.OpenStatusOpen,
	}
}

// searchFunc adapts a function to the gateway searcher and counts calls.
type searchFunc struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req models.SearchRequest) ([]models.Business, error)
}

func (s *searchFunc) Search(ctx context.Context, req models.SearchRequest) ([]models.Business, error) {
	s.calls.Add(1)
	return s.fn(ctx, req)
}

func returning(bs ...models.Business) *searchFunc {
	return &searchFunc{fn: func(context.Context, models.SearchRequest) ([]models.Business, error) {
		return bs, nil
	}}
}

func failing(err error) *searchFunc {
	return &searchFunc{fn: func(context.Context, models.SearchRequest) ([]models.Business, error) {
		return nil, err
	}}
}

type stubDetails struct {
	mu      sync.Mutex
	details map[string]*models.BusinessDetails
	looked  []string
}

func (d *stubDetails) Details(_ context.Context, id string) (*models.BusinessDetails, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.looked = append(d.looked, id)
	if det, ok := d.details[id]; ok {
		return det, nil
	}
	return nil, apperrors.NewTransientNetworkError("details", errors.New("timeout"))
}

func boolPtr(v bool) *bool { return &v }

type fixture struct {
	pipeline *Pipeline
	cache    *store.Store
}

func newFixture(t *testing.T, searcher fanout.Searcher, details DetailsLookup, cfg Config) fixture {
	t.Helper()
	log := logger.NewTestLogger(t)
	cache := store.New(store.Options{Logger: log})
	p := New(Options{
		Config:  cfg,
		Engine:  fanout.New(searcher, fanout.Config{MaxAttempts: 1}, log),
		Cache:   cache,
		Details: details,
		Logger:  log,
	})
	return fixture{pipeline: p, cache: cache}
}

func names(results []models.RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Name
	}
	return out
}

// ==========================================
// Phase machine
// ==========================================

func TestRun_ComfortDeliveryDropsLodging(t *testing.T) {
	searcher := returning(lodging("inn", "Cozy Inn & Suites"), restaurant("joes", "Joe's Diner", 4.2, models.OpenStatusOpen))
	fx := newFixture(t, searcher, nil, DefaultConfig())
	sess := NewSession(comfortDeliveryAnswers(), models.LiveControls{})

	out, err := fx.pipeline.Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, PhaseExactFanout, out.Phase)
	assert.Equal(t, []string{"Joe's Diner"}, names(out.Results))
	assert.Equal(t, []string{"1"}, out.Intent.PriceTiers)
	assert.Equal(t, 800, out.Intent.RadiusMeters)
	assert.Equal(t, []string{models.TransactionDelivery}, out.Intent.Transactions)
	assert.False(t, out.Stale)
	assert.Empty(t, out.Message)
	assert.Same(t, out, sess.Last())

	cached, err := fx.cache.LoadLast(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Len(t, cached.Businesses, 2, "cache keeps the unfiltered merged set")

	prefs, err := fx.cache.LoadPreferences(context.Background())
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.Equal(t, sess.Answers, prefs.Answers)
}

func TestRun_RelaxedPassWhenExactEmpty(t *testing.T) {
	closedDinner := restaurant("late", "Late Night Dinner Spot", 4.0, models.OpenStatusClosed)
	searcher := &searchFunc{fn: func(_ context.Context, req models.SearchRequest) ([]models.Business, error) {
		if req.Term == "dinner" {
			return []models.Business{closedDinner}, nil
		}
		return []models.Business{}, nil
	}}
	fx := newFixture(t, searcher, nil, DefaultConfig())
	sess := NewSession(comfortDeliveryAnswers(), models.LiveControls{OpenNow: true})

	out, err := fx.pipeline.Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, PhaseRelax, out.Phase)
	assert.Equal(t, []string{"Late Night Dinner Spot"}, names(out.Results), "relaxation cleared open-now")
	assert.True(t, out.Controls.OpenNow, "the session's own controls are untouched")
}

func TestRun_NoRelaxWhenExactHasAnything(t *testing.T) {
	searcher := &searchFunc{fn: func(_ context.Context, req models.SearchRequest) ([]models.Business, error) {
		if req.Categories != "" {
			return []models.Business{lodging("motel", "Sunset Motel")}, nil
		}
		return []models.Business{}, nil
	}}
	fx := newFixture(t, searcher, nil, DefaultConfig())
	sess := NewSession(comfortDeliveryAnswers(), models.LiveControls{})
	_, plan := fx.pipeline.Plan(sess.Answers, sess.Controls)

	out, err := fx.pipeline.Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, PhaseExactFanout, out.Phase)
	assert.Empty(t, out.Results)
	assert.Equal(t, int32(len(plan.Variants)), searcher.calls.Load())
}

func TestRun_CacheFallbackRefilters(t *testing.T) {
	fx := newFixture(t, failing(apperrors.NewTransientNetworkError("search", errors.New("down"))), nil, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, fx.cache.SaveLast(ctx, []models.Business{
		restaurant("open", "Open Diner", 4.6, models.OpenStatusOpen),
		restaurant("closed", "Closed Diner", 4.8, models.OpenStatusClosed),
	}))

	sess := NewSession(nil, models.LiveControls{OpenNow: true})
	out, err := fx.pipeline.Run(ctx, sess)
	require.NoError(t, err)

	assert.Equal(t, PhaseCacheFallback, out.Phase)
	assert.True(t, out.Stale)
	require.NotNil(t, out.CachedAt)
	assert.Equal(t, []string{"Open Diner"}, names(out.Results))
	assert.NotEmpty(t, out.Message)
	assert.False(t, out.RetryAvailable)
}

func TestRun_GiveUpWithoutCache(t *testing.T) {
	tests := []struct {
		name        string
		searcher    *searchFunc
		wantMessage string
	}{
		{
			name:        "all empty",
			searcher:    returning(),
			wantMessage: "No results right now. Try again.",
		},
		{
			name:        "transient failures",
			searcher:    failing(apperrors.NewTransientNetworkError("search", errors.New("reset"))),
			wantMessage: "No results right now. Try again.",
		},
		{
			name:        "configuration error",
			searcher:    failing(apperrors.NewConfigurationError("missing credential")),
			wantMessage: "Search service is not configured",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.searcher, nil, DefaultConfig())
			out, err := fx.pipeline.Run(context.Background(), NewSession(nil, models.LiveControls{}))
			require.NoError(t, err)

			assert.Equal(t, PhaseGiveUp, out.Phase)
			assert.True(t, out.RetryAvailable)
			assert.Empty(t, out.Results)
			assert.NotNil(t, out.Results)
			assert.Equal(t, tt.wantMessage, out.Message)
			assert.Error(t, out.Cause)
		})
	}
}

func TestRun_ConfigurationErrorStopsFanout(t *testing.T) {
	searcher := failing(apperrors.NewConfigurationError("missing credential"))
	fx := newFixture(t, searcher, nil, DefaultConfig())

	out, err := fx.pipeline.Run(context.Background(), NewSession(comfortDeliveryAnswers(), models.LiveControls{}))
	require.NoError(t, err)
	assert.Equal(t, int32(1), searcher.calls.Load())
	assert.Equal(t, apperrors.ErrCodeConfiguration, apperrors.CodeOf(out.Cause))
}

func TestRun_CancelledContext(t *testing.T) {
	fx := newFixture(t, returning(restaurant("a", "A", 4, models.OpenStatusOpen)), nil, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess := NewSession(nil, models.LiveControls{})
	out, err := fx.pipeline.Run(ctx, sess)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Nil(t, sess.Last())
}

// ==========================================
// Last-write-wins
// ==========================================

func TestRun_SupersededRunIsDiscarded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	searcher := &searchFunc{fn: func(ctx context.Context, req models.SearchRequest) ([]models.Business, error) {
		if req.Location == "slow" {
			once.Do(func() { close(entered) })
			<-release
			return []models.Business{restaurant("old", "Old Result", 4, models.OpenStatusOpen)}, nil
		}
		return []models.Business{restaurant("new", "New Result", 4, models.OpenStatusOpen)}, nil
	}}
	fx := newFixture(t, searcher, nil, DefaultConfig())
	sess := NewSession(nil, models.LiveControls{Location: "slow"})

	type result struct {
		out *Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := fx.pipeline.Run(context.Background(), sess)
		first <- result{out, err}
	}()

	<-entered
	sess.Controls.Location = "fast"
	second, err := fx.pipeline.Run(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Generation)

	close(release)
	stale := <-first
	require.Error(t, stale.err)
	assert.True(t, errors.Is(stale.err, apperrors.ErrSuperseded))
	assert.Nil(t, stale.out)

	last := sess.Last()
	require.NotNil(t, last)
	assert.Equal(t, uint64(2), last.Generation)
	assert.Equal(t, []string{"New Result"}, names(last.Results))
}

// ==========================================
// Details verification
// ==========================================

func TestRun_VerifiesOpenStatus(t *testing.T) {
	searcher := returning(
		restaurant("a", "Alpha", 4.5, models.OpenStatusUnknown),
		restaurant("b", "Bravo", 4.5, models.OpenStatusOpen),
		restaurant("c", "Charlie", 4.5, models.OpenStatusOpen),
	)
	details := &stubDetails{details: map[string]*models.BusinessDetails{
		"a": {ID: "a", IsOpenNow: boolPtr(true)},
		"b": {ID: "b", IsClosed: boolPtr(true)},
	}}
	cfg := DefaultConfig()
	cfg.VerifyLimit = 2
	fx := newFixture(t, searcher, details, cfg)

	out, err := fx.pipeline.Run(context.Background(), NewSession(nil, models.LiveControls{OpenNow: true}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, details.looked)
	assert.ElementsMatch(t, []string{"Alpha", "Charlie"}, names(out.Results))
}

func TestRun_SkipsVerificationWithoutOpenNow(t *testing.T) {
	details := &stubDetails{}
	fx := newFixture(t, returning(restaurant("a", "Alpha", 4.5, models.OpenStatusUnknown)), details, DefaultConfig())

	out, err := fx.pipeline.Run(context.Background(), NewSession(nil, models.LiveControls{}))
	require.NoError(t, err)
	assert.Empty(t, details.looked)
	assert.Len(t, out.Results, 1)
}

func TestRun_LookupFailuresIgnored(t *testing.T) {
	details := &stubDetails{}
	fx := newFixture(t, returning(restaurant("a", "Alpha", 4.5, models.OpenStatusOpen)), details, DefaultConfig())

	out, err := fx.pipeline.Run(context.Background(), NewSession(nil, models.LiveControls{OpenNow: true}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, details.looked)
	assert.Equal(t, []string{"Alpha"}, names(out.Results))
}

// ==========================================
// Resort and roll again
// ==========================================

func TestResortAndRollAgain(t *testing.T) {
	near, far := 300.0, 9000.0
	a := restaurant("a", "Near", 3.9, models.OpenStatusOpen)
	a.DistanceMeters = &near
	b := restaurant("b", "Far", 4.9, models.OpenStatusOpen)
	b.DistanceMeters = &far

	fx := newFixture(t, returning(a, b), nil, DefaultConfig())
	sess := NewSession(nil, models.LiveControls{})

	assert.Empty(t, fx.pipeline.Resort(sess, models.SortRating))
	assert.Empty(t, fx.pipeline.RollAgain(sess, rand.New(rand.NewPCG(1, 2))))

	_, err := fx.pipeline.Run(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, []string{"Near", "Far"}, names(fx.pipeline.Resort(sess, models.SortDistance)))
	assert.Equal(t, []string{"Far", "Near"}, names(fx.pipeline.Resort(sess, models.SortRating)))
	assert.Equal(t, []string{"Far", "Near"}, names(sess.Last().Results))

	first := fx.pipeline.RollAgain(sess, rand.New(rand.NewPCG(7, 7)))
	second := fx.pipeline.RollAgain(sess, rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, names(first), names(second))
	assert.Len(t, first, 2)
}

// ==========================================
// Helpers
// ==========================================

func TestSortModeFor(t *testing.T) {
	tests := []struct {
		name     string
		intent   models.SortMode
		controls models.SortMode
		want     models.SortMode
	}{
		{"control wins", models.SortRating, models.SortDistance, models.SortDistance},
		{"intent preference", models.SortRating, "", models.SortRating},
		{"default", "", "", models.SortBestMatch},
		{"invalid control ignored", models.SortDistance, "price", models.SortDistance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SortModeFor(models.SearchIntent{SortPreference: tt.intent}, models.LiveControls{SortBy: tt.controls})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveControls(t *testing.T) {
	c := models.LiveControls{OpenNow: true, HighRatedOnly: true}
	assert.True(t, EffectiveControls(PhaseExactFanout, c).OpenNow)
	assert.True(t, EffectiveControls(PhaseCacheFallback, c).OpenNow)
	relaxed := EffectiveControls(PhaseRelax, c)
	assert.False(t, relaxed.OpenNow)
	assert.True(t, relaxed.HighRatedOnly)
}

func TestRank_DefaultStagesKnowChains(t *testing.T) {
	p := New(Options{})
	fetch := &FetchResult{Phase: PhaseExactFanout, Businesses: []models.Business{
		restaurant("mcd", "McDonald's", 4.0, models.OpenStatusOpen),
		restaurant("joe", "Joe's Diner", 4.0, models.OpenStatusOpen),
	}}

	kept := p.Rank(fetch, models.SearchIntent{}, models.LiveControls{ExcludeChains: true})
	assert.Equal(t, []string{"Joe's Diner"}, names(kept))

	all := p.Rank(fetch, models.SearchIntent{}, models.LiveControls{})
	require.Len(t, all, 2)
	assert.Equal(t, "Joe's Diner", all[0].Name, "independent spots outscore chains")
}

func TestPlanIsDeterministic(t *testing.T) {
	fx := newFixture(t, returning(), nil, DefaultConfig())
	controls := models.LiveControls{OpenNow: true, RadiusMeters: 3000}

	intentA, planA := fx.pipeline.Plan(comfortDeliveryAnswers(), controls)
	intentB, planB := fx.pipeline.Plan(comfortDeliveryAnswers(), controls)
	assert.Equal(t, intentA, intentB)
	assert.Equal(t, planA.Shared, planB.Shared)
	assert.Equal(t, planA.Signatures(), planB.Signatures())
}

func TestSessionFromPreferences(t *testing.T) {
	prefs := models.Preferences{
		Answers:  comfortDeliveryAnswers(),
		Controls: models.LiveControls{OpenNow: true, SortBy: models.SortDistance},
	}
	sess := SessionFromPreferences(prefs)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, prefs, sess.Preferences())
	assert.Zero(t, sess.Generation())
}

func TestPipelineResolveLocation(t *testing.T) {
	fx := newFixture(t, returning(), nil, Config{GeolocationTimeout: 50 * time.Millisecond, FallbackLocation: "Austin, TX"})
	sess := NewSession(nil, models.LiveControls{Location: "stale"})

	loc := fx.pipeline.ResolveLocation(context.Background(), sess, LocatorFunc(func(context.Context) (models.Coordinates, error) {
		return models.Coordinates{Latitude: 31.46, Longitude: -100.44}, nil
	}))
	assert.Equal(t, SourceGeolocation, loc.Source)
	require.NotNil(t, sess.Controls.Coordinates)
	assert.Empty(t, sess.Controls.Location)

	loc = fx.pipeline.ResolveLocation(context.Background(), sess, nil)
	assert.Equal(t, SourceFallback, loc.Source)
	assert.Nil(t, sess.Controls.Coordinates)
	assert.Equal(t, "Austin, TX", sess.Controls.Location)
}
