package searchrestaurants

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quiz-recommender/internal/common/camunda"
	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/common/errors"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/common/metrics"
	"quiz-recommender/internal/common/observability"
	"quiz-recommender/internal/gateway"
	"quiz-recommender/internal/recommend/pipeline"
	"quiz-recommender/internal/recommend/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "recommend.restaurants.search"

// Handler runs the fan-out, relaxation and cache fallback phases for one intent.
// Each session gets its own cache namespace.
type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	pipeline     *pipeline.Pipeline
	store        *store.Store
	ownsStore    bool
	jobWorker    worker.JobWorker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability

	// Pipeline and Store replace the ones built from AppConfig.
	Pipeline *pipeline.Pipeline
	Store    *store.Store
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

	h := &Handler{
		config:       workerConfig,
		logger:       log,
		camunda:      opts.Camunda,
		obs:          opts.Observability,
		errorHandler: errors.NewErrorHandler(log),
		pipeline:     opts.Pipeline,
		store:        opts.Store,
	}

	if h.store == nil {
		if opts.AppConfig == nil {
			h.store = store.New(store.Options{Logger: log})
		} else {
			st, err := store.Open(opts.AppConfig.Cache, log)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", WorkerName, err)
			}
			h.store = st
		}
		h.ownsStore = true
	}

	if h.pipeline == nil {
		if opts.AppConfig == nil {
			h.Close()
			return nil, fmt.Errorf("%s: app config is required to build the search pipeline", WorkerName)
		}
		gw := gateway.New(gateway.Options{
			Config:        opts.AppConfig.Gateway,
			Logger:        log,
			Observability: opts.Observability,
		})
		h.pipeline = pipeline.NewFromConfig(opts.AppConfig, gw, gw, h.store, log, opts.Observability)
	}
	return h, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing restaurant search", map[string]interface{}{
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

// Execute completes with whatever phase the search settled on. Only a missing
// search configuration or a job timeout fails the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}

	cache := h.store
	if input.SessionID != "" {
		cache = h.store.Namespace(input.SessionID)
	}

	fetch, err := h.pipeline.WithCache(cache).Fetch(ctx, input.Intent, input.Controls)
	if err != nil {
		return nil, errors.NewTransientNetworkError("search pipeline", err)
	}

	if fetch.Phase == pipeline.PhaseGiveUp && errors.CodeOf(fetch.Cause) == errors.ErrCodeConfiguration {
		return nil, fetch.Cause
	}

	out := outputFrom(fetch)
	h.logger.Info("Search settled", map[string]interface{}{
		"sessionId":      input.SessionID,
		"phase":          string(out.Phase),
		"businessCount":  len(out.Businesses),
		"variantsIssued": out.VariantsIssued,
		"failedVariants": out.FailedVariants,
		"stale":          out.Stale,
	})
	return out, nil
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
	}
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
	if h.ownsStore && h.store != nil {
		if err := h.store.Close(); err != nil {
			h.logger.Warn("Failed to close result store", map[string]interface{}{"error": err.Error()})
		}
		h.store = nil
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
