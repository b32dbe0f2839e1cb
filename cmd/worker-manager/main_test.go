package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"quiz-recommender/internal/common/camunda"
	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubWorker struct {
	taskType string
	err      error
}

func (s *stubWorker) Register() error                   { return nil }
func (s *stubWorker) Close()                            {}
func (s *stubWorker) HealthCheck(context.Context) error { return s.err }
func (s *stubWorker) GetTaskType() string               { return s.taskType }
func (s *stubWorker) IsEnabled() bool                   { return true }

func TestHealthMux_Ready(t *testing.T) {
	tests := []struct {
		name       string
		workers    []camunda.Worker
		wantStatus int
		wantState  string
	}{
		{
			name:       "all healthy",
			workers:    []camunda.Worker{&stubWorker{taskType: "a"}, &stubWorker{taskType: "b"}},
			wantStatus: http.StatusOK,
			wantState:  "ready",
		},
		{
			name:       "one failing",
			workers:    []camunda.Worker{&stubWorker{taskType: "a"}, &stubWorker{taskType: "b", err: errors.New("broker down")}},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthMux(tt.workers).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body["status"])
		})
	}
}

func TestHealthMux_HealthAndMetrics(t *testing.T) {
	mux := healthMux(nil)
	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestBuildWorkers_MatchRegistry(t *testing.T) {
	cfg := config.Defaults()
	workers, err := buildWorkers(cfg, nil, logger.NewTestLogger(t), nil)
	require.NoError(t, err)
	defer func() {
		for _, w := range workers {
			w.Close()
		}
	}()

	reg := registry.Default()
	require.Len(t, workers, len(reg.Activities))
	for _, w := range workers {
		_, ok := reg.Find(w.GetTaskType())
		assert.True(t, ok, w.GetTaskType())
	}
}

func TestLoadRegistry_FallsBackToBuiltin(t *testing.T) {
	reg := loadRegistry(filepath.Join(t.TempDir(), "missing.json"), zap.NewNop())
	assert.Equal(t, registry.Default(), reg)
}
