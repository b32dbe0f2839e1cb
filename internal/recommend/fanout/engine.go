// Package fanout issues a QueryPlan against the search gateway, merges the
// responses by business id and runs a relaxation pass when the exact pass is empty.
package fanout

import (
	"context"
	"fmt"
	"time"

	apperrors "quiz-recommender/internal/common/errors"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/common/metrics"
	"quiz-recommender/internal/models"
	"quiz-recommender/internal/recommend/querybuilder"

	"golang.org/x/sync/errgroup"
)

// Searcher is the Search Gateway as seen by the engine.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) ([]models.Business, error)
}

type Phase string

const (
	PhaseExact Phase = "exact_fanout"
	PhaseRelax Phase = "relax"
)

type Config struct {
	TargetSize  int
	MaxRadius   int
	RelaxTerms  []string
	Parallel    bool
	Parallelism int
	MaxAttempts int
	Backoff     time.Duration // multiplied by the attempt number
	CallTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TargetSize:  20,
		MaxRadius:   40000,
		RelaxTerms:  []string{"food", "dinner", "lunch", "dessert"},
		Parallelism: 4,
		MaxAttempts: 3,
		Backoff:     250 * time.Millisecond,
		CallTimeout: 8 * time.Second,
	}
}

// Result is the merged output of one search. Businesses is empty, not an error,
// when both passes came back with nothing.
type Result struct {
	Businesses     []models.Business
	Phase          Phase
	VariantsIssued int
	FailedVariants int
}

type Engine struct {
	searcher Searcher
	cfg      Config
	logger   logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(searcher Searcher, cfg Config, log logger.Logger) *Engine {
	def := DefaultConfig()
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = def.TargetSize
	}
	if cfg.MaxRadius <= 0 {
		cfg.MaxRadius = def.MaxRadius
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if len(cfg.RelaxTerms) == 0 {
		cfg.RelaxTerms = def.RelaxTerms
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	return &Engine{
		searcher: searcher,
		cfg:      cfg,
		logger:   logger.ForComponent(log, "fanout"),
		sleep:    sleepCtx,
	}
}

// Search runs the exact pass and, only if it produced nothing, the relaxed pass.
// A configuration error or a cancelled context aborts and is returned; every other
// per-variant failure is counted and treated as an empty response.
func (e *Engine) Search(ctx context.Context, plan models.QueryPlan) (*Result, error) {
	exact, err := e.runPass(ctx, plan, PhaseExact)
	if err != nil {
		return nil, err
	}
	if len(exact.Businesses) > 0 {
		return exact, nil
	}

	relaxed := querybuilder.Relax(plan, e.cfg.RelaxTerms, e.cfg.MaxRadius)
	e.logger.Info("Exact pass empty, relaxing constraints", map[string]interface{}{
		"variantCount": len(relaxed.Variants),
		"radius":       relaxed.Shared.RadiusMeters,
	})

	res, err := e.runPass(ctx, relaxed, PhaseRelax)
	if err != nil {
		return nil, err
	}
	res.VariantsIssued += exact.VariantsIssued
	res.FailedVariants += exact.FailedVariants
	return res, nil
}

func (e *Engine) runPass(ctx context.Context, plan models.QueryPlan, phase Phase) (*Result, error) {
	var (
		res *Result
		err error
	)
	if e.cfg.Parallel {
		res, err = e.runParallel(ctx, plan)
	} else {
		res, err = e.runSequential(ctx, plan)
	}
	if err != nil {
		return nil, err
	}
	res.Phase = phase
	metrics.SearchVariantsIssued.WithLabelValues(string(phase)).Add(float64(res.VariantsIssued))

	e.logger.Debug("Fan-out pass complete", map[string]interface{}{
		"phase":          string(phase),
		"variantsIssued": res.VariantsIssued,
		"failedVariants": res.FailedVariants,
		"results":        len(res.Businesses),
	})
	return res, nil
}

func (e *Engine) runSequential(ctx context.Context, plan models.QueryPlan) (*Result, error) {
	acc := NewAccumulator()
	res := &Result{}

	for i, req := range plan.Requests() {
		if acc.Len() >= e.cfg.TargetSize {
			break
		}
		res.VariantsIssued++

		businesses, err := e.callWithRetry(ctx, req)
		if err != nil {
			if fatal(ctx, err) {
				return nil, err
			}
			res.FailedVariants++
			e.logVariantFailure(i, plan.Variants[i], err)
			continue
		}
		acc.Merge(businesses)
	}

	res.Businesses = capTo(acc.Businesses(), e.cfg.TargetSize)
	return res, nil
}

// runParallel dispatches every variant concurrently and merges in plan order so the
// outcome does not depend on arrival order. Each goroutine owns its slot.
func (e *Engine) runParallel(ctx context.Context, plan models.QueryPlan) (*Result, error) {
	reqs := plan.Requests()
	responses := make([][]models.Business, len(reqs))
	failed := make([]bool, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			businesses, err := e.callWithRetry(gctx, req)
			if err != nil {
				if fatal(gctx, err) {
					return err
				}
				e.logVariantFailure(i, plan.Variants[i], err)
				failed[i] = true
				return nil
			}
			responses[i] = businesses
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	acc := NewAccumulator()
	res := &Result{VariantsIssued: len(reqs)}
	for i := range reqs {
		if failed[i] {
			res.FailedVariants++
		}
		if acc.Len() < e.cfg.TargetSize {
			acc.Merge(responses[i])
		}
	}
	res.Businesses = capTo(acc.Businesses(), e.cfg.TargetSize)
	return res, nil
}

// callWithRetry retries only retryable errors, sleeping attempt*Backoff between tries.
func (e *Engine) callWithRetry(ctx context.Context, req models.SearchRequest) ([]models.Business, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		callCtx := ctx
		cancel := func() {}
		if e.cfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		}
		businesses, err := e.searcher.Search(callCtx, req)
		cancel()
		if err == nil {
			return businesses, nil
		}
		lastErr = err

		if ctx.Err() != nil || !apperrors.IsRetryable(err) || attempt == e.cfg.MaxAttempts {
			break
		}
		if err := e.sleep(ctx, time.Duration(attempt)*e.cfg.Backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// fatal reports errors that must abort the whole search.
func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return apperrors.CodeOf(err) == apperrors.ErrCodeConfiguration
}

func (e *Engine) logVariantFailure(index int, v models.QueryVariant, err error) {
	e.logger.Warn("Query variant failed, treating as empty", map[string]interface{}{
		"variantIndex": index,
		"variant":      v.Signature(),
		"errorCode":    string(apperrors.CodeOf(err)),
		"error":        err.Error(),
	})
}

func capTo(bs []models.Business, n int) []models.Business {
	if len(bs) > n {
		return bs[:n]
	}
	return bs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
