// Package who fetches reference and indicator data from the WHO Global
// Health Observatory OData API.
package who

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/health-data-etl-service/internal/domain"
	"github.com/couchcryptid/health-data-etl-service/internal/observability"
)

const (
	endpointCountries = "countries"
	endpointIndicator = "indicator"

	outcomeSuccess = "success"
	outcomeEmpty   = "empty"
	outcomeError   = "error"
)

// Client reads from the GHO OData API. Its contract is "never fails": any
// transport fault, non-200 status, or unusable body yields an empty slice so
// the caller can treat an unreachable source and an empty source uniformly.
// Failures are logged and counted at this boundary instead of propagated.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a GHO API client with a fixed request timeout. An
// unbounded remote call would hang an ingestion run, so the timeout is not
// optional.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchCountries retrieves the country dimension values. Empty on any failure.
func (c *Client) FetchCountries(ctx context.Context) []domain.RawCountryRecord {
	u := fmt.Sprintf("%s/DIMENSION/COUNTRY/DimensionValues", c.baseURL)

	var records []domain.RawCountryRecord
	c.fetchValue(ctx, u, endpointCountries, &records)
	return records
}

// FetchIndicator retrieves all observations for one indicator code. Empty on
// any failure.
func (c *Client) FetchIndicator(ctx context.Context, code string) []domain.RawFactRecord {
	u := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(code))

	var records []domain.RawFactRecord
	c.fetchValue(ctx, u, endpointIndicator, &records)
	return records
}

// envelope is the OData response wrapper. The payload lives under "value";
// anything else is treated as no data.
type envelope struct {
	Value json.RawMessage `json:"value"`
}

// fetchValue issues the GET, unwraps the OData envelope, and decodes the
// record array into out. On any failure out is left empty and the failure is
// logged and counted.
func (c *Client) fetchValue(ctx context.Context, fullURL, endpoint string, out any) {
	start := time.Now()
	defer func() {
		c.metrics.FetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		c.observeFailure(endpoint, fullURL, "create request", err)
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observeFailure(endpoint, fullURL, "request failed", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("gho api returned non-200 status",
			"endpoint", endpoint, "url", fullURL, "status", resp.StatusCode)
		c.metrics.FetchRequests.WithLabelValues(endpoint, outcomeEmpty).Inc()
		return
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.observeFailure(endpoint, fullURL, "decode response", err)
		return
	}
	if env.Value == nil {
		c.logger.Warn("gho api response missing value field", "endpoint", endpoint, "url", fullURL)
		c.metrics.FetchRequests.WithLabelValues(endpoint, outcomeEmpty).Inc()
		return
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		c.observeFailure(endpoint, fullURL, "decode records", err)
		return
	}

	c.metrics.FetchRequests.WithLabelValues(endpoint, outcomeSuccess).Inc()
}

func (c *Client) observeFailure(endpoint, fullURL, msg string, err error) {
	c.logger.Warn("gho api fetch failed, treating as empty",
		"endpoint", endpoint, "url", fullURL, "reason", msg, "error", err)
	c.metrics.FetchRequests.WithLabelValues(endpoint, outcomeError).Inc()
}
