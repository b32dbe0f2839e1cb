// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Worker is what the worker manager needs from every job handler.
type Worker interface {
	Register() error
	Close()
	HealthCheck(ctx context.Context) error
	GetTaskType() string
	IsEnabled() bool
}

type JobWorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
	Handler       worker.JobHandler
}

// OpenJobWorker starts polling for one task type. Name is derived from the task type.
func OpenJobWorker(client zbc.Client, opts JobWorkerOptions) (worker.JobWorker, error) {
	if client == nil {
		return nil, fmt.Errorf("no zeebe client for %s", opts.TaskType)
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("no handler for %s", opts.TaskType)
	}
	maxJobs := opts.MaxJobsActive
	if maxJobs <= 0 {
		maxJobs = 5
	}

	step := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(opts.Handler).
		MaxJobsActive(maxJobs).
		Name(fmt.Sprintf("%s-worker", opts.TaskType))
	if opts.Timeout > 0 {
		step = step.Timeout(opts.Timeout)
	}
	return step.Open(), nil
}
