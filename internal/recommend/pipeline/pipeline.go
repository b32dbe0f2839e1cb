// Package pipeline runs one recommendation search as a sequence of named phases:
// exact fan-out, relaxation, cache fallback and give-up.
package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"quiz-recommender/internal/common/config"
	apperrors "quiz-recommender/internal/common/errors"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/common/metrics"
	"quiz-recommender/internal/common/observability"
	"quiz-recommender/internal/models"
	"quiz-recommender/internal/recommend/fanout"
	"quiz-recommender/internal/recommend/filter"
	"quiz-recommender/internal/recommend/mapper"
	"quiz-recommender/internal/recommend/querybuilder"
	"quiz-recommender/internal/recommend/ranking"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type Phase string

const (
	PhaseExactFanout   Phase = "exact_fanout"
	PhaseRelax         Phase = "relax"
	PhaseCacheFallback Phase = "cache_fallback"
	PhaseGiveUp        Phase = "give_up"
)

// Searcher is the gateway search call used by the fan-out engine.
type Searcher = fanout.Searcher

type DetailsLookup interface {
	Details(ctx context.Context, id string) (*models.BusinessDetails, error)
}

// Cache is the device-local persistence the pipeline writes to and falls back on.
type Cache interface {
	SaveLast(ctx context.Context, businesses []models.Business) error
	LoadLast(ctx context.Context) (*models.ResultCacheEntry, error)
	SavePreferences(ctx context.Context, prefs models.Preferences) error
}

type Config struct {
	VerifyLimit        int
	VerifyConcurrency  int
	GeolocationTimeout time.Duration
	FallbackLocation   string
}

func DefaultConfig() Config {
	return Config{
		VerifyLimit:        10,
		VerifyConcurrency:  4,
		GeolocationTimeout: 3 * time.Second,
		FallbackLocation:   "San Angelo, TX",
	}
}

type Options struct {
	Config        Config
	Mapper        *mapper.Mapper
	Builder       *querybuilder.Builder
	Engine        *fanout.Engine
	Filter        *filter.Stage
	Ranker        *ranking.Ranker
	Cache         Cache
	Details       DetailsLookup
	Logger        logger.Logger
	Observability *observability.Observability
}

type Pipeline struct {
	cfg     Config
	mapper  *mapper.Mapper
	builder *querybuilder.Builder
	engine  *fanout.Engine
	filter  *filter.Stage
	ranker  *ranking.Ranker
	cache   Cache
	details DetailsLookup
	logger  logger.Logger
	obs     *observability.Observability
	now     func() time.Time
}

// New wires a pipeline from prebuilt stages. Engine is required; every other
// stage falls back to its defaults and Cache and Details may be nil.
func New(opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	def := DefaultConfig()
	cfg := opts.Config
	if cfg.VerifyConcurrency <= 0 {
		cfg.VerifyConcurrency = def.VerifyConcurrency
	}
	if cfg.FallbackLocation == "" {
		cfg.FallbackLocation = def.FallbackLocation
	}

	p := &Pipeline{
		cfg:     cfg,
		mapper:  opts.Mapper,
		builder: opts.Builder,
		engine:  opts.Engine,
		filter:  opts.Filter,
		ranker:  opts.Ranker,
		cache:   opts.Cache,
		details: opts.Details,
		logger:  logger.ForComponent(log, "pipeline"),
		obs:     opts.Observability,
		now:     time.Now,
	}
	if p.mapper == nil {
		p.mapper = mapper.New(nil, mapper.DefaultConfig())
	}
	if p.builder == nil {
		p.builder = querybuilder.New(querybuilder.DefaultConfig())
	}
	if p.filter == nil {
		p.filter = filter.New(filter.DefaultConfig(), log)
	}
	if p.ranker == nil {
		p.ranker = ranking.New(ranking.DefaultConfig(), log)
	}
	return p
}

// NewFromConfig builds every stage from the search section of cfg.
func NewFromConfig(cfg *config.Config, searcher Searcher, details DetailsLookup, cache Cache, log logger.Logger, obs *observability.Observability) *Pipeline {
	s := cfg.Search
	engine := fanout.New(searcher, fanout.Config{
		TargetSize:  s.TargetSize,
		MaxRadius:   s.MaxRadius,
		RelaxTerms:  s.RelaxTerms,
		Parallel:    s.Parallel,
		MaxAttempts: cfg.Gateway.MaxAttempts,
		Backoff:     config.GetDuration(cfg.Gateway.Backoff),
		CallTimeout: config.GetDuration(cfg.Gateway.Timeout),
	}, log)

	return New(Options{
		Config: Config{
			VerifyLimit:        s.VerifyLimit,
			GeolocationTimeout: config.GetDuration(s.GeolocationTimeout),
			FallbackLocation:   s.FallbackLocation,
		},
		Mapper: mapper.New(nil, mapper.Config{
			KeywordCap:    s.KeywordCap,
			CategoryCap:   s.CategoryCap,
			RadiusLadder:  s.RadiusLadder,
			DefaultRadius: s.DefaultRadius,
		}),
		Builder: querybuilder.New(querybuilder.Config{
			DefaultLimit:     s.DefaultLimit,
			MaxLimit:         cfg.Proxy.MaxLimit,
			MaxRadius:        s.MaxRadius,
			FallbackLocation: s.FallbackLocation,
		}),
		Engine: engine,
		Filter: filter.New(filter.Config{
			MinRating:     s.MinRating,
			BudgetMaxTier: s.BudgetMaxTier,
			ChainNames:    s.ChainNames,
		}, log),
		Ranker:        ranking.New(ranking.Config{ChainNames: s.ChainNames, Jitter: s.RollJitter}, log),
		Cache:         cache,
		Details:       details,
		Logger:        log,
		Observability: obs,
	})
}

// WithCache returns a copy of p bound to another cache, typically a per-session namespace.
func (p *Pipeline) WithCache(cache Cache) *Pipeline {
	cp := *p
	cp.cache = cache
	return &cp
}

// NewSession starts a session with the configured default controls.
func (p *Pipeline) NewSession(answers []models.QuizAnswer, defaultOpenNow bool) *Session {
	return NewSession(answers, models.LiveControls{OpenNow: defaultOpenNow})
}

// FetchResult is the business set a search settled on, before filtering and ranking.
type FetchResult struct {
	Phase          Phase             `json:"phase"`
	Businesses     []models.Business `json:"businesses"`
	Stale          bool              `json:"stale"`
	CachedAt       *time.Time        `json:"cachedAt,omitempty"`
	RetryAvailable bool              `json:"retryAvailable"`
	VariantsIssued int               `json:"variantsIssued"`
	FailedVariants int               `json:"failedVariants"`

	// Cause is why the live search produced nothing, when it failed.
	Cause error `json:"-"`
}

// Outcome is one published run for a session.
type Outcome struct {
	FetchResult
	Generation uint64                `json:"generation"`
	Intent     models.SearchIntent   `json:"intent"`
	Controls   models.LiveControls   `json:"controls"`
	Results    []models.RankedResult `json:"results"`
	Message    string                `json:"message,omitempty"`
}

// Intent maps answers to a search intent.
func (p *Pipeline) Intent(answers []models.QuizAnswer) models.SearchIntent {
	return p.mapper.Map(answers)
}

// Plan is the pure front half of the pipeline: answers and controls to a query plan.
func (p *Pipeline) Plan(answers []models.QuizAnswer, controls models.LiveControls) (models.SearchIntent, models.QueryPlan) {
	intent := p.mapper.Map(answers)
	return intent, p.builder.Build(intent, controls)
}

// Fetch runs the exact and relaxed passes and, when both come back empty or the
// search fails, falls back to the cache. Only a cancelled context is returned as
// an error; everything else is reported through the phase.
func (p *Pipeline) Fetch(ctx context.Context, intent models.SearchIntent, controls models.LiveControls) (*FetchResult, error) {
	ctx, span := p.obs.StartSpan(ctx, "pipeline.fetch",
		attribute.Bool("open_now", controls.OpenNow),
		attribute.String("sort_by", string(controls.SortBy)),
	)
	defer span.End()

	plan := p.builder.Build(intent, controls)
	res, err := p.engine.Search(ctx, plan)
	if ctxErr := ctx.Err(); ctxErr != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, ctxErr
	}

	if err == nil && len(res.Businesses) > 0 {
		out := &FetchResult{
			Phase:          Phase(res.Phase),
			Businesses:     res.Businesses,
			VariantsIssued: res.VariantsIssued,
			FailedVariants: res.FailedVariants,
		}
		p.saveLast(ctx, out.Businesses)
		if controls.OpenNow && out.Phase == PhaseExactFanout {
			p.verify(ctx, out.Businesses)
		}
		span.SetAttributes(attribute.String("phase", string(out.Phase)), attribute.Int("results", len(out.Businesses)))
		return out, nil
	}

	cause := err
	if cause == nil {
		cause = apperrors.NewNoResultsError("exact and relaxed passes returned nothing")
	}
	out := p.fallback(ctx, cause)
	if res != nil {
		out.VariantsIssued = res.VariantsIssued
		out.FailedVariants = res.FailedVariants
	}
	span.SetAttributes(attribute.String("phase", string(out.Phase)))
	if out.Phase == PhaseGiveUp {
		span.SetStatus(codes.Error, cause.Error())
	}
	return out, nil
}

// Rank applies the client-side filter and reorders by the effective sort mode.
// A relaxed fetch has already dropped open-now, so the filter does not reapply it.
func (p *Pipeline) Rank(fetch *FetchResult, intent models.SearchIntent, controls models.LiveControls) []models.RankedResult {
	if fetch == nil {
		return []models.RankedResult{}
	}
	effective := EffectiveControls(fetch.Phase, controls)
	kept := p.filter.Apply(fetch.Businesses, effective)
	return p.ranker.Rerank(kept, SortModeFor(intent, controls), intent, effective)
}

// Run executes one full search for the session and publishes the outcome.
// ErrSuperseded is returned when a newer Run started before this one finished.
func (p *Pipeline) Run(ctx context.Context, sess *Session) (*Outcome, error) {
	start := p.now()
	gen := sess.begin()
	answers, controls := sess.Answers, sess.Controls

	ctx, span := p.obs.StartSpan(ctx, "pipeline.run",
		attribute.String("session_id", sess.ID),
		attribute.Int64("generation", int64(gen)),
	)
	defer span.End()

	p.savePreferences(ctx, models.Preferences{Answers: answers, Controls: controls})

	intent := p.mapper.Map(answers)
	fetch, err := p.Fetch(ctx, intent, controls)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		FetchResult: *fetch,
		Generation:  gen,
		Intent:      intent,
		Controls:    controls,
		Results:     p.Rank(fetch, intent, controls),
		Message:     fetch.Notice(),
	}

	if !sess.publish(gen, out) {
		p.logger.Debug("Discarding superseded search", map[string]interface{}{
			"sessionId":  sess.ID,
			"generation": gen,
			"current":    sess.Generation(),
		})
		return nil, apperrors.NewSearchSupersededError(gen, sess.Generation())
	}

	metrics.SearchPhases.WithLabelValues(string(out.Phase)).Inc()
	p.obs.RecordSearch(ctx, string(out.Phase), len(out.Results), p.now().Sub(start))
	p.logger.Info("Search completed", map[string]interface{}{
		"sessionId":      sess.ID,
		"generation":     gen,
		"phase":          string(out.Phase),
		"results":        len(out.Results),
		"variantsIssued": out.VariantsIssued,
		"stale":          out.Stale,
	})
	return out, nil
}

// Resort reorders the session's last outcome under a new sort mode without a network call.
func (p *Pipeline) Resort(sess *Session, mode models.SortMode) []models.RankedResult {
	last := sess.Last()
	if last == nil {
		return []models.RankedResult{}
	}
	controls := last.Controls
	controls.SortBy = mode
	results := p.Rank(&last.FetchResult, last.Intent, controls)
	sess.replaceResults(last, results)
	return results
}

// RollAgain reshuffles the last outcome with a small random perturbation.
func (p *Pipeline) RollAgain(sess *Session, rng *rand.Rand) []models.RankedResult {
	last := sess.Last()
	if last == nil {
		return []models.RankedResult{}
	}
	results := p.Roll(&last.FetchResult, last.Intent, last.Controls, rng)
	sess.replaceResults(last, results)
	return results
}

// Roll is Rank with the best-match scores jittered by rng.
func (p *Pipeline) Roll(fetch *FetchResult, intent models.SearchIntent, controls models.LiveControls, rng *rand.Rand) []models.RankedResult {
	if fetch == nil {
		return []models.RankedResult{}
	}
	effective := EffectiveControls(fetch.Phase, controls)
	kept := p.filter.Apply(fetch.Businesses, effective)
	return p.ranker.RollAgain(kept, intent, effective, rng)
}

// ResolveLocation fills the session's location from the locator, its manual
// location or the fallback city, in that order.
func (p *Pipeline) ResolveLocation(ctx context.Context, sess *Session, locator Locator) ResolvedLocation {
	loc := ResolveLocation(ctx, locator, p.cfg.GeolocationTimeout, sess.ManualLocation, p.cfg.FallbackLocation)
	loc.Apply(&sess.Controls)
	p.logger.Debug("Location resolved", map[string]interface{}{
		"sessionId": sess.ID,
		"source":    string(loc.Source),
	})
	return loc
}

// EffectiveControls drops open-now after a relaxed pass, which searched without it.
func EffectiveControls(phase Phase, controls models.LiveControls) models.LiveControls {
	if phase == PhaseRelax {
		controls.OpenNow = false
	}
	return controls
}

// SortModeFor prefers an explicit control, then the intent's preference.
func SortModeFor(intent models.SearchIntent, controls models.LiveControls) models.SortMode {
	if controls.SortBy.Valid() {
		return controls.SortBy
	}
	if intent.SortPreference.Valid() {
		return intent.SortPreference
	}
	return models.SortBestMatch
}

func (p *Pipeline) fallback(ctx context.Context, cause error) *FetchResult {
	p.logger.Warn("Live search produced nothing, trying cache", map[string]interface{}{
		"errorCode": string(apperrors.CodeOf(cause)),
		"error":     cause.Error(),
	})

	if p.cache != nil {
		entry, err := p.cache.LoadLast(ctx)
		if err != nil {
			p.logger.Warn("Cache read failed", map[string]interface{}{"error": err.Error()})
		}
		if entry != nil {
			metrics.CacheFallbacks.WithLabelValues("hit").Inc()
			at := entry.Timestamp
			return &FetchResult{
				Phase:      PhaseCacheFallback,
				Businesses: entry.Businesses,
				Stale:      true,
				CachedAt:   &at,
				Cause:      cause,
			}
		}
	}

	metrics.CacheFallbacks.WithLabelValues("miss").Inc()
	return &FetchResult{
		Phase:          PhaseGiveUp,
		Businesses:     []models.Business{},
		RetryAvailable: true,
		Cause:          cause,
	}
}

// verify upgrades open status from Details Lookup for the first VerifyLimit
// businesses. Each goroutine writes only its own element; failures are ignored.
func (p *Pipeline) verify(ctx context.Context, businesses []models.Business) {
	if p.details == nil || p.cfg.VerifyLimit <= 0 {
		return
	}
	n := min(p.cfg.VerifyLimit, len(businesses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.VerifyConcurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			d, err := p.details.Details(gctx, businesses[i].ID)
			if err != nil {
				p.logger.Debug("Details lookup failed", map[string]interface{}{
					"businessId": businesses[i].ID,
					"error":      err.Error(),
				})
				return nil
			}
			if d != nil {
				if open := d.VerifiedOpen(); open != nil {
					businesses[i].VerifiedOpen = open
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) saveLast(ctx context.Context, businesses []models.Business) {
	if p.cache == nil {
		return
	}
	if err := p.cache.SaveLast(ctx, businesses); err != nil {
		p.logger.Warn("Failed to save last results", map[string]interface{}{"error": err.Error()})
	}
}

func (p *Pipeline) savePreferences(ctx context.Context, prefs models.Preferences) {
	if p.cache == nil {
		return
	}
	if err := p.cache.SavePreferences(ctx, prefs); err != nil {
		p.logger.Warn("Failed to save preferences", map[string]interface{}{"error": err.Error()})
	}
}

// Notice is the user-facing message for a fallback or give-up result.
func (f *FetchResult) Notice() string {
	switch f.Phase {
	case PhaseCacheFallback:
		return "Showing saved results from an earlier search; live results are unavailable."
	case PhaseGiveUp:
		var se *apperrors.StandardError
		if errors.As(f.Cause, &se) && se.Code == apperrors.ErrCodeConfiguration {
			return se.Message
		}
		return "No results right now. Try again."
	default:
		return ""
	}
}
