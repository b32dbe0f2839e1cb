package registry

import "time"

// ActivityRegistry is the on-disk catalogue of job types the worker manager serves.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated,omitempty"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one Zeebe task type: its variable contract, the error
// codes it may throw and its job timeout.
type Activity struct {
	ID                   string                 `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Description          string                 `json:"description,omitempty"`
	Category             string                 `json:"category"`
	Version              string                 `json:"version,omitempty"`
	TaskType             string                 `json:"taskType"`
	ImplementationStatus string                 `json:"implementationStatus,omitempty"`
	InputSchema          map[string]interface{} `json:"inputSchema,omitempty"`
	OutputSchema         map[string]interface{} `json:"outputSchema,omitempty"`
	ErrorCodes           []string               `json:"errorCodes,omitempty"`
	Timeout              string                 `json:"timeout,omitempty"`
	Retries              int                    `json:"retries,omitempty"`
	Workflows            []string               `json:"workflows,omitempty"`
	Tags                 []string               `json:"tags,omitempty"`
}

// JobTimeout parses Timeout. An empty Timeout yields zero and no error.
func (a Activity) JobTimeout() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(a.Timeout)
}
