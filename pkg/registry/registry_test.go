package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	reg := Default()
	require.NoError(t, reg.Validate())
	assert.Len(t, reg.Activities, 3)

	for _, taskType := range []string{"recommend.answers.map", "recommend.restaurants.search", "recommend.restaurants.rank"} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.Equal(t, CategoryRecommendation, a.Category)
		assert.Contains(t, a.Workflows, WorkflowRecommendation)
		assert.Equal(t, "object", a.InputSchema["type"])
	}

	_, ok := reg.Find("validate-subscription")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	valid := Activity{ID: "a", DisplayName: "A", TaskType: "a.run", Category: "c"}
	tests := []struct {
		name       string
		activities []Activity
		wantErr    string
	}{
		{"empty", nil, "no activities"},
		{"missing id", []Activity{{DisplayName: "A", TaskType: "t", Category: "c"}}, "ID"},
		{"missing task type", []Activity{{ID: "a", DisplayName: "A", Category: "c"}}, "TaskType"},
		{"duplicate id", []Activity{valid, {ID: "a", DisplayName: "B", TaskType: "b.run", Category: "c"}}, "duplicate activity ID"},
		{"duplicate task type", []Activity{valid, {ID: "b", DisplayName: "B", TaskType: "a.run", Category: "c"}}, "duplicate task type"},
		{"bad timeout", []Activity{{ID: "a", DisplayName: "A", TaskType: "t", Category: "c", Timeout: "soon"}}, "invalid timeout"},
		{"valid", []Activity{valid}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&ActivityRegistry{Activities: tt.activities}).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMerge_ReplacesBuiltinsKeepsOthers(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{
		{ID: "search-restaurants", DisplayName: "Old", TaskType: "recommend.restaurants.search", Category: "x"},
		{ID: "custom", DisplayName: "Custom", TaskType: "custom.run", Category: "x"},
	}}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	reg.Merge(Default(), now)

	require.Len(t, reg.Activities, 4)
	assert.Equal(t, "custom", reg.Activities[0].ID)
	a, ok := reg.Find("recommend.restaurants.search")
	require.True(t, ok)
	assert.Equal(t, "Search Restaurants", a.DisplayName)
	assert.Equal(t, "1.0.0", reg.Version)
	assert.Equal(t, "2026-05-01T12:00:00Z", reg.LastUpdated)
}

func TestSaveAndLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activity-registry.json")
	require.NoError(t, SaveRegistry(Default(), path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Validate())
	a, ok := loaded.Find("recommend.answers.map")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"answers"}, a.InputSchema["required"])
}

func TestActivity_JobTimeout(t *testing.T) {
	d, err := Activity{Timeout: "30s"}.JobTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = Activity{}.JobTimeout()
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = Activity{Timeout: "soon"}.JobTimeout()
	assert.Error(t, err)
}
