// Package gateway is the pipeline's client for the search proxy. It owns the
// normalization boundary: callers only ever see models.Business.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"quiz-recommender/internal/common/config"
	apperrors "quiz-recommender/internal/common/errors"
	httpclient "quiz-recommender/internal/common/http"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/common/metrics"
	"quiz-recommender/internal/common/observability"
	"quiz-recommender/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	serviceName     = "search-gateway"
	endpointSearch  = "search"
	endpointDetails = "details"
	maxErrorBody    = 512
	// a search page of 50 businesses is well under this
	maxResponseBody = 4 << 20
)

type Options struct {
	Config        config.GatewayConfig
	Logger        logger.Logger
	Observability *observability.Observability
	// HTTPClient overrides the breaker-backed client built from Config.
	HTTPClient *httpclient.Client
}

type Client struct {
	http       *httpclient.Client
	searchURL  string
	detailsURL string
	logger     logger.Logger
	obs        *observability.Observability
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = httpclient.NewResilientClient(serviceName, config.GetDuration(opts.Config.Timeout), opts.Config.Breaker)
	}
	return &Client{
		http:       hc,
		searchURL:  opts.Config.SearchURL,
		detailsURL: opts.Config.DetailsURL,
		logger:     logger.ForComponent(opts.Logger, "gateway"),
		obs:        opts.Observability,
	}
}

// Search posts one query variant and returns its normalized businesses.
func (c *Client) Search(ctx context.Context, req models.SearchRequest) ([]models.Business, error) {
	ctx, span := c.obs.StartSpan(ctx, "gateway.search",
		attribute.String("term", req.Term),
		attribute.String("categories", req.Categories),
		attribute.Int("radius", req.Radius),
	)
	defer span.End()

	body, err := c.post(ctx, endpointSearch, c.searchURL, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		return nil, err
	}

	businesses, skipped, err := DecodeBusinesses(body)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(endpointSearch, "malformed").Inc()
		return nil, apperrors.NewMalformedResponseError(serviceName, err)
	}
	if skipped > 0 {
		c.logger.Warn("Skipped malformed business records", map[string]interface{}{
			"skipped": skipped,
			"kept":    len(businesses),
		})
	}
	span.SetAttributes(attribute.Int("results", len(businesses)))
	return businesses, nil
}

// Details fetches fresh open/closed data for one business.
func (c *Client) Details(ctx context.Context, id string) (*models.BusinessDetails, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewInvalidInputError("business id is required")
	}
	ctx, span := c.obs.StartSpan(ctx, "gateway.details", attribute.String("businessId", id))
	defer span.End()

	body, err := c.post(ctx, endpointDetails, c.detailsURL, map[string]string{"id": id})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var details models.BusinessDetails
	if err := json.Unmarshal(body, &details); err != nil {
		metrics.GatewayRequests.WithLabelValues(endpointDetails, "malformed").Inc()
		return nil, apperrors.NewMalformedResponseError(serviceName, err)
	}
	if details.ID == "" {
		details.ID = id
	}
	return &details, nil
}

// post sends a JSON body and classifies the outcome: transport failures and
// 5xx are transient, 4xx is a rejection, and a 500 carrying CONFIGURATION_ERROR
// is a configuration error.
func (c *Client) post(ctx context.Context, endpoint, url string, payload interface{}) ([]byte, error) {
	if url == "" {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("gateway %s url is not configured", endpoint))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("build %s request: %v", endpoint, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.GatewayRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, apperrors.NewTransientNetworkError(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, apperrors.NewTransientNetworkError(serviceName, err)
	}
	if len(body) > maxResponseBody {
		metrics.GatewayRequests.WithLabelValues(endpoint, "malformed").Inc()
		return nil, apperrors.NewMalformedResponseError(serviceName,
			fmt.Errorf("response body exceeds %d bytes", maxResponseBody))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.GatewayRequests.WithLabelValues(endpoint, "ok").Inc()
		return body, nil
	case resp.StatusCode >= 500:
		if resp.Header.Get(httpclient.ErrorCodeHeader) == string(apperrors.ErrCodeConfiguration) || isConfigurationBody(body) {
			metrics.GatewayRequests.WithLabelValues(endpoint, "configuration_error").Inc()
			return nil, apperrors.NewConfigurationError(truncate(body))
		}
		metrics.GatewayRequests.WithLabelValues(endpoint, "server_error").Inc()
		return nil, apperrors.NewTransientNetworkError(serviceName,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body)))
	default:
		metrics.GatewayRequests.WithLabelValues(endpoint, "rejected").Inc()
		return nil, apperrors.NewProviderRejectedError(resp.StatusCode, truncate(body))
	}
}

func isConfigurationBody(body []byte) bool {
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.Code == string(apperrors.ErrCodeConfiguration)
}

// truncate cuts body to maxErrorBody bytes without splitting a rune.
func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxErrorBody {
		return s
	}
	n := maxErrorBody
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
