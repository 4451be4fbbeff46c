// Package consumer talks to the consumer-records vendor API. Every call is a
// single GET bounded by a deadline; there are no retries.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/RyanHill92/canvass/internal/apperr"
	"github.com/RyanHill92/canvass/internal/config"
	"github.com/RyanHill92/canvass/internal/extract"
	"github.com/RyanHill92/canvass/internal/metrics"
)

// invalidKeyResult is the vendor result code for a rejected credential.
const invalidKeyResult = "GE05"

const maxResponseBytes = 8 << 20

// Query selects vendor records. Street, HouseNumber, Records and Columns are
// optional.
type Query struct {
	Zip         string
	Street      string
	HouseNumber string
	Records     int
	Columns     []string
}

// Fetcher returns the raw vendor response text for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) (string, error)
}

// Client is the HTTP Fetcher for the vendor endpoint.
type Client struct {
	endpoint   string
	licenseKey string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient builds a Client from cfg. It fails when the credential is empty.
func NewClient(cfg config.ConsumerConfig, m *metrics.Metrics) (*Client, error) {
	if cfg.LicenseKey == "" {
		return nil, fmt.Errorf("%s is not configured", config.LicenseKeyEnv)
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parsing consumer endpoint: %w", err)
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		licenseKey: cfg.LicenseKey,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    m,
		logger:     slog.Default().With("component", "consumer-client"),
	}, nil
}

// Fetch performs one GET against the vendor and classifies the answer:
// non-2xx is ErrUpstream, a rejected credential is ErrUnauthorized and an
// expired deadline is ErrTimeout.
func (c *Client) Fetch(ctx context.Context, q Query) (string, error) {
	start := time.Now()
	text, outcome, err := c.fetch(ctx, q)
	if c.metrics != nil {
		c.metrics.VendorRequestsTotal.WithLabelValues(outcome).Inc()
		c.metrics.VendorLatency.Observe(time.Since(start).Seconds())
	}
	return text, err
}

func (c *Client) fetch(ctx context.Context, q Query) (string, string, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(callCtx); err != nil {
		if ctx.Err() != nil {
			return "", "error", fmt.Errorf("waiting for consumer rate limit: %w", ctx.Err())
		}
		c.logger.Warn("consumer rate limit wait exceeded deadline", "zip", q.Zip, "timeout", c.timeout)
		return "", "timeout", apperr.Newf(apperr.ErrTimeout, http.StatusGatewayTimeout,
			"Consumer API did not answer within %v", c.timeout)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.requestURL(q), nil)
	if err != nil {
		return "", "error", fmt.Errorf("building consumer request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			c.logger.Warn("consumer request timed out", "zip", q.Zip, "timeout", c.timeout)
			return "", "timeout", apperr.Newf(apperr.ErrTimeout, http.StatusGatewayTimeout,
				"Consumer API did not answer within %v", c.timeout)
		}
		return "", "error", fmt.Errorf("calling consumer api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("consumer api returned error status", "status", resp.StatusCode, "zip", q.Zip)
		return "", "upstream_error", apperr.Newf(apperr.ErrUpstream, http.StatusBadRequest,
			"Consumer API Error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", "timeout", apperr.Newf(apperr.ErrTimeout, http.StatusGatewayTimeout,
				"Consumer API did not answer within %v", c.timeout)
		}
		return "", "error", fmt.Errorf("reading consumer response: %w", err)
	}
	text := string(body)

	if extract.Contains(text, extract.TagResult, invalidKeyResult) {
		c.logger.Error("consumer api rejected license key")
		return "", "unauthorized", apperr.New(apperr.ErrUnauthorized, http.StatusUnauthorized,
			"Invalid License Key (Consumer)")
	}

	c.logger.Debug("consumer response received", "zip", q.Zip, "bytes", len(body))
	return text, "ok", nil
}

func (c *Client) requestURL(q Query) string {
	params := url.Values{}
	params.Set("id", c.licenseKey)
	params.Set("zip", q.Zip)
	if q.Street != "" {
		params.Set("street", q.Street)
	}
	if q.HouseNumber != "" {
		params.Set("hno", q.HouseNumber)
	}
	if q.Records > 0 {
		params.Set("records", strconv.Itoa(q.Records))
	}
	params.Set("format", "json")
	if len(q.Columns) > 0 {
		params.Set("cols", strings.Join(q.Columns, ","))
	}

	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	return c.endpoint + sep + params.Encode()
}
