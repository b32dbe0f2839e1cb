package rankrestaurants

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"quiz-recommender/internal/common/camunda"
	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/common/errors"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/common/metrics"
	"quiz-recommender/internal/common/observability"
	"quiz-recommender/internal/models"
	"quiz-recommender/internal/recommend/filter"
	"quiz-recommender/internal/recommend/pipeline"
	"quiz-recommender/internal/recommend/ranking"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "recommend.restaurants.rank"

// Handler filters a merged business set and orders it for display.
type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	pipeline     *pipeline.Pipeline
	jobWorker    worker.JobWorker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	s := workerConfig.Search
	return &Handler{
		config:       workerConfig,
		logger:       log,
		camunda:      opts.Camunda,
		obs:          opts.Observability,
		errorHandler: errors.NewErrorHandler(log),
		pipeline: pipeline.New(pipeline.Options{
			Filter: filter.New(filter.Config{
				MinRating:     s.MinRating,
				BudgetMaxTier: s.BudgetMaxTier,
				ChainNames:    s.ChainNames,
			}, log),
			Ranker: ranking.New(ranking.Config{ChainNames: s.ChainNames, Jitter: s.RollJitter}, log),
			Logger: log,
		}),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing restaurant ranking", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		if output, err = h.Execute(ctx, input); err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
			h.obs.RecordJobProcessed(ctx, "completed")
			h.obs.RecordJobDuration(ctx, time.Since(startTime), "completed")
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.obs.RecordJobProcessed(ctx, "failed")
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}

	fetch := &pipeline.FetchResult{Phase: input.Phase, Businesses: input.Businesses}
	results := h.rank(fetch, input)
	dropped := len(input.Businesses) - len(results)

	if h.config.MaxResults > 0 && len(results) > h.config.MaxResults {
		results = results[:h.config.MaxResults]
	}

	h.logger.Debug("Ranking completed", map[string]interface{}{
		"inputCount":  len(input.Businesses),
		"outputCount": len(results),
		"dropped":     dropped,
		"rollAgain":   input.RollAgain,
	})

	return &Output{
		Results:  results,
		SortMode: pipeline.SortModeFor(input.Intent, input.Controls),
		Dropped:  dropped,
	}, nil
}

func (h *Handler) rank(fetch *pipeline.FetchResult, input *Input) []models.RankedResult {
	if !input.RollAgain {
		return h.pipeline.Rank(fetch, input.Intent, input.Controls)
	}
	var rng *rand.Rand
	if input.Seed != nil {
		rng = rand.New(rand.NewPCG(*input.Seed, *input.Seed))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return h.pipeline.Roll(fetch, input.Intent, input.Controls, rng)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("failed to parse job variables: %v", err))
	}

	result := GetInputSchema().ValidateInput(variables)
	if !result.Valid {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("validation errors: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("failed to decode input: %v", err))
	}
	return &input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output.WorkflowVariables())
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	_, err = h.camunda.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return request.Send(ctx)
	}, "complete-job")
	if err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("Restaurants ranked", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"resultCount": len(output.Results),
	})
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("%s: camunda client not configured", WorkerName)
	}

	jobWorker, err := camunda.OpenJobWorker(h.camunda.GetClient(), camunda.JobWorkerOptions{
		TaskType:      TaskType,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
		Handler:       h.Handle,
	})
	if err != nil {
		return err
	}
	h.jobWorker = jobWorker

	h.logger.Info("Worker registered with Camunda", map[string]interface{}{
		"maxJobsActive": h.config.MaxJobsActive,
		"timeout":       h.config.Timeout.String(),
	})
	return nil
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.logger.Info("Shutting down worker gracefully", nil)
		h.jobWorker.Close()
		h.jobWorker = nil
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return nil
	}
	if err := h.camunda.HealthCheck(ctx); err != nil {
		return fmt.Errorf("camunda health check failed: %w", err)
	}
	return nil
}

func (h *Handler) GetTaskType() string { return TaskType }

func (h *Handler) IsEnabled() bool { return h.config.Enabled }

func (h *Handler) GetConfig() *Config { return h.config }
