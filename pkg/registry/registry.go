// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// SaveRegistry writes reg as indented JSON, creating the parent directory.
func SaveRegistry(reg *ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// Validate checks required fields and rejects duplicate IDs or task types.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}
	ids := make(map[string]bool, len(r.Activities))
	taskTypes := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		switch {
		case a.ID == "":
			return fmt.Errorf("activity missing required field: ID")
		case a.DisplayName == "":
			return fmt.Errorf("activity %s missing required field: DisplayName", a.ID)
		case a.TaskType == "":
			return fmt.Errorf("activity %s missing required field: TaskType", a.ID)
		case a.Category == "":
			return fmt.Errorf("activity %s missing required field: Category", a.ID)
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate activity ID: %s", a.ID)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("duplicate task type: %s", a.TaskType)
		}
		if _, err := a.JobTimeout(); err != nil {
			return fmt.Errorf("activity %s has invalid timeout %q", a.ID, a.Timeout)
		}
		ids[a.ID] = true
		taskTypes[a.TaskType] = true
	}
	return nil
}

// Merge overlays the built-in activities onto r, replacing entries with the
// same ID and keeping any others. Activities end up sorted by ID.
func (r *ActivityRegistry) Merge(builtin *ActivityRegistry, now time.Time) {
	byID := make(map[string]Activity, len(r.Activities)+len(builtin.Activities))
	for _, a := range r.Activities {
		byID[a.ID] = a
	}
	for _, a := range builtin.Activities {
		byID[a.ID] = a
	}
	r.Activities = r.Activities[:0]
	for _, a := range byID {
		r.Activities = append(r.Activities, a)
	}
	sort.Slice(r.Activities, func(i, j int) bool { return r.Activities[i].ID < r.Activities[j].ID })
	if r.Version == "" {
		r.Version = builtin.Version
	}
	r.LastUpdated = now.UTC().Format(time.RFC3339)
}
