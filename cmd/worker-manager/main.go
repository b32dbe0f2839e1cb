// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quiz-recommender/internal/common/camunda"
	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/common/observability"
	"quiz-recommender/pkg/registry"

	mqa "quiz-recommender/internal/workers/recommendation/map-quiz-answers"
	rr "quiz-recommender/internal/workers/recommendation/rank-restaurants"
	sr "quiz-recommender/internal/workers/recommendation/search-restaurants"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	registryPath := flag.String("registry", "configs/activity-registry.json", "Path to the activity registry")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFromApp(cfg.Camunda))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
	} else {
		zapLog.Warn("Camunda disabled, workers will not poll for jobs")
	}

	reg := loadRegistry(*registryPath, zapLog)

	workers, err := buildWorkers(cfg, zeebe, log, obs)
	if err != nil {
		zapLog.Fatal("failed to create workers", zap.Error(err))
	}
	defer func() {
		for _, w := range workers {
			w.Close()
		}
	}()

	for _, w := range workers {
		if _, ok := reg.Find(w.GetTaskType()); !ok {
			zapLog.Warn("Worker task type missing from activity registry", zap.String("taskType", w.GetTaskType()))
		}
		if !w.IsEnabled() || zeebe == nil {
			continue
		}
		if err := w.Register(); err != nil {
			zapLog.Fatal("failed to register worker", zap.String("taskType", w.GetTaskType()), zap.Error(err))
		}
	}
	zapLog.Info("Recommendation workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              cfg.App.HealthAddr,
		Handler:           healthMux(workers),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	workers = nil

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func buildWorkers(cfg *config.Config, zeebe *camunda.Client, log logger.Logger, obs *observability.Observability) ([]camunda.Worker, error) {
	mapper, err := mqa.NewHandler(mqa.HandlerOptions{AppConfig: cfg, Camunda: zeebe, Logger: log, Observability: obs})
	if err != nil {
		return nil, err
	}
	search, err := sr.NewHandler(sr.HandlerOptions{AppConfig: cfg, Camunda: zeebe, Logger: log, Observability: obs})
	if err != nil {
		return nil, err
	}
	rank, err := rr.NewHandler(rr.HandlerOptions{AppConfig: cfg, Camunda: zeebe, Logger: log, Observability: obs})
	if err != nil {
		search.Close()
		return nil, err
	}
	return []camunda.Worker{mapper, search, rank}, nil
}

// loadRegistry reads the registry file, falling back to the built-in activities.
func loadRegistry(path string, log *zap.Logger) *registry.ActivityRegistry {
	reg, err := registry.LoadRegistry(path)
	if err == nil {
		err = reg.Validate()
	}
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Activity registry unusable, using built-in activities", zap.String("path", path), zap.Error(err))
		}
		return registry.Default()
	}
	return reg
}

func healthMux(workers []camunda.Worker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := make(map[string]string, len(workers))
		status := http.StatusOK
		for _, wk := range workers {
			if err := wk.HealthCheck(ctx); err != nil {
				checks[wk.GetTaskType()] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[wk.GetTaskType()] = "ok"
		}
		state := "ready"
		if status != http.StatusOK {
			state = "degraded"
		}
		writeStatus(w, status, map[string]interface{}{
			"status": state,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
