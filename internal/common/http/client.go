// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"quiz-recommender/internal/common/config"
	apperrors "quiz-recommender/internal/common/errors"
	"quiz-recommender/internal/common/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// errServerStatus marks a 5xx so the breaker counts it; callers still get the response.
var errServerStatus = errors.New("server error status")

// ErrorCodeHeader carries the error code of a failed response.
const ErrorCodeHeader = "X-Error-Code"

// codesNotCounted are 5xx error codes that say nothing about upstream health.
var codesNotCounted = map[string]bool{
	string(apperrors.ErrCodeConfiguration): true,
}

type Client struct {
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[*http.Response]
	name       string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewResilientClient wraps calls in a breaker that trips after consecutive transport
// failures or 5xx. A 5xx whose ErrorCodeHeader is CONFIGURATION_ERROR is not counted.
func NewResilientClient(name string, timeout time.Duration, bc config.BreakerConfig) *Client {
	c := NewClient(timeout)
	c.name = name
	if !bc.Enabled {
		return c
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	c.cb = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(bc.HalfOpenRequests),
		Timeout:     config.GetDuration(bc.OpenTimeout),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(bc.ConsecutiveFailures)
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about upstream health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.cb == nil {
		return c.httpClient.Do(req)
	}

	resp, err := c.cb.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError && !codesNotCounted[resp.Header.Get(ErrorCodeHeader)] {
			return resp, errServerStatus
		}
		return resp, nil
	})
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	default:
		return nil, err
	}
}

// State reports the breaker state name, "disabled" when no breaker is configured.
func (c *Client) State() string {
	if c.cb == nil {
		return "disabled"
	}
	return c.cb.State().String()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
