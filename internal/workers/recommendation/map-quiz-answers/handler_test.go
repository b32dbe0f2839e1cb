package mapquizanswers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/common/errors"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(map[string]interface{}) logger.Logger { return tl }

func (tl *testLogger) WithError(error) logger.Logger { return tl }

func (tl *testLogger) With(map[string]interface{}) logger.Logger { return tl }

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "restaurant-recommendation",
		ElementId:          "Activity_MapQuizAnswers",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		AppConfig: config.Defaults(),
		Logger:    &testLogger{t: t},
	})
	require.NoError(t, err)
	return h
}

func comfortDeliveryVariables() map[string]interface{} {
	return map[string]interface{}{
		"answers": []map[string]interface{}{
			{"questionText": "What’s your current mood?", "answerText": "Cozy / comfort food"},
			{"questionText": "Are you craving anything specific?", "answerText": "Hot and hearty"},
			{"questionText": "Any dietary goals or restrictions?", "answerText": "No restrictions"},
			{"questionText": "How much are you looking to spend?", "answerText": "Under $10"},
			{"questionText": "How far are you willing to go?", "answerText": "Walking distance"},
			{"questionText": "How would you like to eat today?", "answerText": "Delivery"},
		},
	}
}

// ==========================
// Handler Creation Tests
// ==========================

func TestNewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{name: "defaults without app config", opts: HandlerOptions{}},
		{name: "app config", opts: HandlerOptions{AppConfig: config.Defaults()}},
		{
			name:    "invalid custom config",
			opts:    HandlerOptions{CustomConfig: &Config{Enabled: true, MaxJobsActive: 1}},
			wantErr: "timeout must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Logger = &testLogger{t: t}
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, h.GetTaskType())
			assert.True(t, h.IsEnabled())
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	app := config.Defaults()
	app.Workers = map[string]config.WorkerConfig{
		WorkerName: {Enabled: false, MaxJobsActive: 3, Timeout: 2500},
	}

	cfg := createConfigFromAppConfig(app, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 3, cfg.MaxJobsActive)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, app.Search.RadiusLadder, cfg.Search.RadiusLadder)

	custom := &Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Second}
	assert.Same(t, custom, createConfigFromAppConfig(app, custom))
}

func TestRegister_Disabled(t *testing.T) {
	h, err := NewHandler(HandlerOptions{
		CustomConfig: &Config{Enabled: false, MaxJobsActive: 1, Timeout: time.Second},
		Logger:       &testLogger{t: t},
	})
	require.NoError(t, err)
	assert.NoError(t, h.Register())
	assert.NoError(t, h.HealthCheck(context.Background()))
	h.Close()
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
		wantCount int
	}{
		{name: "full answers", variables: comfortDeliveryVariables(), wantCount: 6},
		{name: "empty answers", variables: map[string]interface{}{"answers": []interface{}{}}, wantCount: 0},
		{name: "missing answers", variables: map[string]interface{}{}, wantErr: true},
		{
			name: "answer without text",
			variables: map[string]interface{}{
				"answers": []map[string]interface{}{{"questionText": "How far are you willing to go?"}},
			},
			wantErr: true,
		},
		{
			name:      "answers not a list",
			variables: map[string]interface{}{"answers": "Delivery"},
			wantErr:   true,
		},
	}

	h := newTestHandler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, input.Answers, tt.wantCount)
		})
	}
}

func TestHandler_ParseInput_Controls(t *testing.T) {
	vars := comfortDeliveryVariables()
	vars["controls"] = map[string]interface{}{"openNow": true, "sortBy": "distance", "radiusMeters": 3000}

	input, err := newTestHandler(t).parseInput(createMockJob(2, vars))
	require.NoError(t, err)
	assert.True(t, input.Controls.OpenNow)
	assert.Equal(t, models.SortDistance, input.Controls.SortBy)
	assert.Equal(t, 3000, input.Controls.RadiusMeters)
}

// ==========================
// Execution Tests
// ==========================

func TestHandler_Execute_ComfortDelivery(t *testing.T) {
	h := newTestHandler(t)
	input, err := h.parseInput(createMockJob(3, comfortDeliveryVariables()))
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []string{"1"}, out.Intent.PriceTiers)
	assert.Equal(t, 800, out.Intent.RadiusMeters)
	assert.Equal(t, []string{models.TransactionDelivery}, out.Intent.Transactions)
	assert.Contains(t, out.Intent.Keywords, "ramen")
	assert.Equal(t, "1", out.Price)
	assert.Equal(t, 800, out.RadiusMeters)
	assert.Equal(t, "San Angelo, TX", out.Location)
	require.NotEmpty(t, out.QuerySignatures)
	assert.Contains(t, out.QuerySignatures[0], "categories:")
}

func TestHandler_Execute_NoBudgetSendsNoPrice(t *testing.T) {
	out, err := newTestHandler(t).Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, out.Intent.PriceTiers)
	assert.Empty(t, out.Price)
}

func TestHandler_Execute_Deterministic(t *testing.T) {
	h := newTestHandler(t)
	input, err := h.parseInput(createMockJob(4, comfortDeliveryVariables()))
	require.NoError(t, err)

	a, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	b, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	_, err := newTestHandler(t).Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestOutput_WorkflowVariables(t *testing.T) {
	out := &Output{QuerySignatures: []string{"term:ramen"}, Location: "Austin, TX", RadiusMeters: 3000, Price: "1,2"}
	vars := out.WorkflowVariables()
	assert.Equal(t, []string{"term:ramen"}, vars["querySignatures"])
	assert.Equal(t, "Austin, TX", vars["searchLocation"])
	assert.Equal(t, 3000, vars["searchRadius"])
	assert.Equal(t, "1,2", vars["searchPrice"])
	assert.Contains(t, vars, "searchIntent")
}
