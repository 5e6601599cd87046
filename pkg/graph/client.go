package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cityharvest/pkg/config"
	errs "cityharvest/pkg/errors"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/metrics"
	"cityharvest/pkg/ratelimit"
	"cityharvest/pkg/retry"
)

// Client represents a Graph API client
type Client struct {
	httpClient  *http.Client
	baseURL     string
	version     string
	accessToken string
	userAgent   string
	retry       *retry.Config
	limiter     ratelimit.Limiter
	logger      logger.Logger
	metrics     *metrics.Recorder
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. for test transports
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetry sets the retry policy for connection failures
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) {
		if cfg != nil {
			c.retry = cfg
		}
	}
}

// WithLimiter paces requests
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithLogger sets the client logger
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithMetrics records request outcomes and retries
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new Graph API client
func NewClient(cfg config.GraphConfig, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		version:     strings.Trim(cfg.APIVersion, "/"),
		accessToken: cfg.AccessToken,
		userAgent:   cfg.UserAgent,
		retry:       retry.DefaultConfig(),
		limiter:     ratelimit.Unlimited{},
		logger:      logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// count retries without touching the caller's config
	rc := *c.retry
	onRetry := rc.OnRetry
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.metrics.IncRetry()
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}
	c.retry = &rc

	return c
}

// URL returns the absolute URL of an API path, without query
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if c.version == "" {
		return c.baseURL + path
	}
	return c.baseURL + "/" + c.version + path
}

// GetJSON performs a GET request for path and decodes the JSON response into target.
// The access token is added to query. Connection failures are retried; any
// response status outside 2xx is returned as a status error.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
	endpoint := c.URL(path) + "?" + q.Encode()

	body, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, path, query, endpoint)
	}, c.retry)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		c.metrics.ObserveRequest(string(errs.ErrorTypeParsing))
		c.logger.WithError(err).ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         path,
			"body_preview": preview(body),
		})
		return errs.Parsing(http.StatusOK, err)
	}
	c.metrics.ObserveRequest("ok")
	return nil
}

// get performs a single attempt and returns the body of a 2xx response
func (c *Client) get(ctx context.Context, path string, query url.Values, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	fields := map[string]interface{}{
		"path":  path,
		"query": query.Encode(),
	}
	start := time.Now()
	c.logger.DebugWithFields("sending Graph API request", fields)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.metrics.ObserveRequest(string(errs.ErrorTypeNetwork))
		return nil, errs.Network(scrubToken(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest(string(errs.ErrorTypeNetwork))
		return nil, errs.Network(fmt.Errorf("failed to read response body: %w", err))
	}

	fields["status"] = resp.StatusCode
	fields["duration"] = time.Since(start)
	if err := c.checkResponseStatus(resp.StatusCode, body, fields); err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("Graph API request completed", fields)
	return body, nil
}

// checkResponseStatus rejects every status outside 2xx
func (c *Client) checkResponseStatus(code int, body []byte, fields map[string]interface{}) error {
	if code >= 200 && code < 300 {
		return nil
	}

	fields["body_preview"] = preview(body)
	if code >= 500 {
		c.logger.ErrorWithFields("Graph API server error", fields)
	} else {
		c.logger.WarnWithFields("Graph API rejected request", fields)
	}
	c.metrics.ObserveRequest(string(errs.ErrorTypeStatus))
	return errs.Status(code, body)
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// scrubToken removes the query string from url errors so tokens stay out of logs
func scrubToken(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
		}
	}
	return err
}
