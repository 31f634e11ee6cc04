// Package pms is the HTTP client for the upstream practice-management
// system: contacts, providers, operatories and appointments.
package pms

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultSchedulerID = "HO7"
	maxPages           = 50
	maxBodyBytes       = 4 << 20
)

var pmsTracer = otel.Tracer("dental.internal.pms")

// Config configures the PMS client.
type Config struct {
	BaseURL     string
	Token       string
	ConnectorID string
	ConsumerID  string
	Timeout     time.Duration // per call, default 10s
	RateLimit   float64       // requests per second, 0 disables limiting
	Burst       int
	SchedulerID string // remote id recorded as the scheduler of new appointments
	CancelerID  string // remote id recorded as the canceling party
	Location    *time.Location
}

// Recorder receives one latency observation per upstream call.
type Recorder interface {
	ObservePMSRequest(operation, status string, seconds float64)
}

// Client talks to the PMS REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cfg        Config
	limiter    *rate.Limiter
	logger     *logging.Logger
	recorder   Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// New creates a PMS client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("pms: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("pms: invalid BaseURL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SchedulerID == "" {
		cfg.SchedulerID = defaultSchedulerID
	}
	if cfg.CancelerID == "" {
		cfg.CancelerID = cfg.SchedulerID
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cfg:        cfg,
		logger:     logging.Default(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Component("pms")
	return c, nil
}

// Location is the practice zone used to read wall-clock times.
func (c *Client) Location() *time.Location {
	return c.cfg.Location
}

// do performs one call. The call is bounded by the configured timeout
// whatever deadline ctx carries, and waits on the outbound rate limiter.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, span := pmsTracer.Start(ctx, "pms."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("pms.path", path),
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	fail := func(status string, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.observe(op, status, 0)
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fail("rate_limited", fmt.Errorf("pms: %s: %w: %w", op, ErrUnavailable, err))
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fail("encode_error", fmt.Errorf("pms: %s: marshal request: %w", op, err))
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fail("build_error", fmt.Errorf("pms: %s: build request: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.ConnectorID != "" {
		req.Header.Set("connector-id", c.cfg.ConnectorID)
	}
	if c.cfg.ConsumerID != "" {
		req.Header.Set("consumer-id", c.cfg.ConsumerID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		status := "transport_error"
		if ctx.Err() != nil {
			status = "timeout"
		}
		return fail(status, fmt.Errorf("pms: %s: %w: %w", op, ErrUnavailable, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start).Seconds()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		return fail("read_error", fmt.Errorf("pms: %s: read response: %w: %w", op, ErrUnavailable, err))
	}
	c.observe(op, strconv.Itoa(resp.StatusCode), elapsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("pms API non-2xx response",
			"operation", op,
			"status", resp.StatusCode,
			"path", path,
			"body", msg,
		)
		apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode, Body: msg}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("pms: %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) observe(op, status string, seconds float64) {
	if c.recorder != nil {
		c.recorder.ObservePMSRequest(op, status, seconds)
	}
}

// listAll follows next_page_token until the PMS stops returning one. field
// names the JSON array holding the items.
func listAll[T any](ctx context.Context, c *Client, op, path, field string, query url.Values) ([]T, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	var all []T
	for page := 0; page < maxPages; page++ {
		var raw map[string]json.RawMessage
		if err := c.do(ctx, op, http.MethodGet, path, q, nil, &raw); err != nil {
			return nil, err
		}
		if items, ok := raw[field]; ok {
			var batch []T
			if err := json.Unmarshal(items, &batch); err != nil {
				return nil, fmt.Errorf("pms: %s: decode %s: %w", op, field, err)
			}
			all = append(all, batch...)
		}
		var next string
		if tok, ok := raw["next_page_token"]; ok {
			_ = json.Unmarshal(tok, &next)
		}
		if next == "" {
			return all, nil
		}
		q.Set("page_token", next)
	}
	c.logger.Warn("pms pagination truncated", "operation", op, "pages", maxPages)
	return all, nil
}

func escapeID(id, prefix string) string {
	return url.PathEscape(strings.TrimPrefix(strings.TrimSpace(id), prefix))
}
