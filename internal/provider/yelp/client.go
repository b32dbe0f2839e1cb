// Package yelp is the business search provider client used by the proxy.
package yelp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quiz-recommender/internal/common/config"
	httpclient "quiz-recommender/internal/common/http"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/common/metrics"

	"golang.org/x/time/rate"
)

// ErrMissingCredential is returned before any call when no API key is configured.
var ErrMissingCredential = errors.New("provider api key is not configured")

// StatusError is a non-2xx provider response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// SearchParams are the provider query parameters for one business search.
type SearchParams struct {
	Term       string
	Categories string
	Location   string
	Latitude   *float64
	Longitude  *float64
	Radius     int
	Price      string
	SortBy     string
	OpenNow    bool
	Attributes []string
	Limit      int
	Offset     int
}

// Values encodes the params; coordinates are sent only as a pair and replace location.
func (p SearchParams) Values() url.Values {
	v := url.Values{}
	setIf := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	setIf("term", p.Term)
	setIf("categories", p.Categories)
	if p.Latitude != nil && p.Longitude != nil {
		v.Set("latitude", strconv.FormatFloat(*p.Latitude, 'f', -1, 64))
		v.Set("longitude", strconv.FormatFloat(*p.Longitude, 'f', -1, 64))
	} else {
		setIf("location", p.Location)
	}
	if p.Radius > 0 {
		v.Set("radius", strconv.Itoa(p.Radius))
	}
	setIf("price", p.Price)
	setIf("sort_by", p.SortBy)
	if p.OpenNow {
		v.Set("open_now", "true")
	}
	if len(p.Attributes) > 0 {
		v.Set("attributes", strings.Join(p.Attributes, ","))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	return v
}

// SearchResponse keeps business records raw; the proxy relays them untouched.
type SearchResponse struct {
	Businesses []json.RawMessage `json:"businesses"`
	Total      int               `json:"total"`
}

type Hours struct {
	IsOpenNow *bool `json:"is_open_now"`
}

// BusinessResponse is the subset of a business lookup the proxy reports.
type BusinessResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	IsClosed *bool           `json:"is_closed"`
	Hours    json.RawMessage `json:"hours"`
}

// IsOpenNow reads hours[0].is_open_now when present.
func (b BusinessResponse) IsOpenNow() *bool {
	if len(b.Hours) == 0 {
		return nil
	}
	var hours []Hours
	if err := json.Unmarshal(b.Hours, &hours); err != nil || len(hours) == 0 {
		return nil
	}
	return hours[0].IsOpenNow
}

type Client struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

func NewClient(cfg config.ProviderConfig, log logger.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpclient.NewClient(timeout),
		limiter: limiter,
		logger:  logger.ForComponent(log, "yelp"),
	}
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResponse, error) {
	body, err := c.get(ctx, "search", "/businesses/search?"+p.Values().Encode())
	if err != nil {
		return nil, err
	}
	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}
	if resp.Businesses == nil {
		resp.Businesses = []json.RawMessage{}
	}
	return &resp, nil
}

func (c *Client) Business(ctx context.Context, id string) (*BusinessResponse, error) {
	body, err := c.get(ctx, "details", "/businesses/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var resp BusinessResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal business response: %w", err)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	if !c.HasCredential() {
		return nil, ErrMissingCredential
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	metrics.ProviderRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Provider returned non-success status", map[string]interface{}{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
