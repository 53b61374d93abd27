package devops

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/okaneconnor/azure-devops-mcp/internal/httpclient"
	"github.com/okaneconnor/azure-devops-mcp/internal/resilience"
	"github.com/okaneconnor/azure-devops-mcp/internal/scrub"
)

const (
	maxResponseSize = 10 << 20 // 10MB
	maxErrorMessage = 500
)

// Statuses eligible for automatic retry before surfacing to the caller.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// Sleeper abstracts time-based waiting for testing.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// realSleeper uses actual time.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// TokenProvider supplies the bearer token attached to every request.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client is a resilient HTTP client for Azure DevOps REST APIs.
//
// A Client is stateless aside from configuration and may be shared by
// concurrent calls; all shared mutable state lives in the breaker and the
// pacing limiter.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *resilience.CircuitBreaker
	pacer      *rate.Limiter
	sleeper    Sleeper
	tokens     TokenProvider
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURL sets the build/pipeline API host (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.cfg.BaseURL = url
	}
}

// WithVSRMBaseURL sets the release-management API host (useful for testing).
func WithVSRMBaseURL(url string) Option {
	return func(c *Client) {
		c.cfg.VSRMBaseURL = url
	}
}

// WithSleeper sets a custom sleeper for retry timing (useful for testing).
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleeper = s
	}
}

// WithBreaker sets the circuit breaker guarding outbound calls.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithTokenProvider sets the credential source for outbound requests.
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Client) {
		c.tokens = tp
	}
}

// WithRetries sets retry parameters.
func WithRetries(attempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.cfg.RetryAttempts = attempts
		c.cfg.RetryDelay = baseDelay
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.cfg.Timeout = d
	}
}

// WithGlobalRateLimit sets outbound pacing across all calls.
func WithGlobalRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.cfg.GlobalRPS = rps
		c.cfg.GlobalBurst = burst
		c.pacer = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a Client for the given organization.
func New(organization string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Organization = organization
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig creates a Client from a Config.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.VSRMBaseURL == "" {
		cfg.VSRMBaseURL = def.VSRMBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = def.APIVersion
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.GlobalRPS <= 0 {
		cfg.GlobalRPS = def.GlobalRPS
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = def.GlobalBurst
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.cfg.Organization == "" {
		return nil, ErrNoOrganization
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.NewDefault()
	}
	if c.sleeper == nil {
		c.sleeper = realSleeper{}
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig())
	}
	if c.pacer == nil {
		c.pacer = rate.NewLimiter(rate.Limit(c.cfg.GlobalRPS), c.cfg.GlobalBurst)
	}

	return c, nil
}

// Breaker returns the circuit breaker guarding this client, for health
// reporting.
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// Get performs a GET beneath the given project and decodes the JSON response.
func (c *Client) Get(ctx context.Context, project, path string, query url.Values) (map[string]any, error) {
	resp, err := c.Execute(ctx, Request{
		Method:  http.MethodGet,
		Path:    path,
		Project: project,
		Query:   query,
	})
	if err != nil {
		return nil, err
	}
	return resp.JSON()
}

// Post performs a POST with a JSON body beneath the given project and decodes
// the JSON response.
func (c *Client) Post(ctx context.Context, project, path string, body any) (map[string]any, error) {
	resp, err := c.Execute(ctx, Request{
		Method:  http.MethodPost,
		Path:    path,
		Project: project,
		Body:    body,
	})
	if err != nil {
		return nil, err
	}
	return resp.JSON()
}

// GetText performs a GET returning the raw response text (used for log
// content), with the same retry machinery as JSON calls.
func (c *Client) GetText(ctx context.Context, project, path string, query url.Values) (string, error) {
	resp, err := c.Execute(ctx, Request{
		Method:  http.MethodGet,
		Path:    path,
		Project: project,
		Query:   query,
		Accept:  "text/plain",
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Execute performs one logical call: a single breaker admission check, then
// up to RetryAttempts physical attempts with backoff between retryable
// statuses, and a single breaker outcome recorded from the terminal attempt.
//
// Connection-level failures propagate immediately as *TransportError and do
// not record a breaker outcome; only server-reported statuses feed the
// breaker.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	if !c.breaker.AllowRequest() {
		return nil, ErrUnavailable
	}

	if req.Method == "" {
		req.Method = http.MethodGet
	}

	target, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.attempt(ctx, req, target, body)
		if err != nil {
			return nil, err
		}

		if retryableStatus[resp.StatusCode] && attempt < c.cfg.RetryAttempts {
			delay := retryAfter(resp.Header)
			if delay <= 0 {
				delay = backoff(c.cfg.RetryDelay, attempt)
			}
			c.logger.Warn("retryable status from azure devops",
				"status", resp.StatusCode,
				"delay", delay,
				"attempt", attempt,
				"max_attempts", c.cfg.RetryAttempts,
			)
			if err := c.sleeper.Sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		// Terminal attempt: the breaker outcome is recorded exactly once per
		// logical call. Anything below 500 counts as a success, including a
		// still-throttled 429 on the final attempt.
		if resp.StatusCode >= http.StatusInternalServerError {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, c.apiError(resp)
		}
		return resp, nil
	}
}

// attempt issues one physical request under the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, req Request, target string, body []byte) (*Response, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	hreq, err := http.NewRequestWithContext(actx, req.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	hreq.Header.Set("Accept", accept)
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}

	var token string
	if c.tokens != nil {
		token, err = c.tokens.Token(actx)
		if err != nil {
			return nil, fmt.Errorf("acquire token: %w", err)
		}
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return nil, &TransportError{Err: scrub.TokenFromError(err, token)}
	}
	defer resp.Body.Close()

	// Read one byte past the cap to detect overflow without a false positive.
	limited := io.LimitReader(resp.Body, maxResponseSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, &TransportError{Err: scrub.TokenFromError(err, token)}
	}
	if int64(len(data)) > maxResponseSize {
		return nil, ErrResponseTooLarge
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) buildURL(req Request) (string, error) {
	base := c.cfg.BaseURL
	if req.VSRM {
		base = c.cfg.VSRMBaseURL
	}
	if req.Project == "" {
		return "", fmt.Errorf("project is required for %s", req.Path)
	}

	query := url.Values{}
	for k, vs := range req.Query {
		query[k] = vs
	}
	if query.Get("api-version") == "" {
		query.Set("api-version", c.cfg.APIVersion)
	}

	return fmt.Sprintf("%s/%s/%s/%s?%s",
		strings.TrimRight(base, "/"),
		url.PathEscape(c.cfg.Organization),
		url.PathEscape(req.Project),
		req.Path,
		query.Encode(),
	), nil
}

// apiError shapes a non-2xx terminal response into an *APIError with a
// sanitized, bounded message.
func (c *Client) apiError(resp *Response) *APIError {
	message := string(resp.Body)

	// Azure DevOps error bodies carry a top-level "message" field.
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err == nil && parsed.Message != "" {
		message = parsed.Message
	}

	message = scrub.URLs(message)
	if len(message) > maxErrorMessage {
		cut := maxErrorMessage
		for cut > 0 && !utf8.RuneStart(message[cut]) {
			cut--
		}
		message = message[:cut]
	}

	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

// retryAfter parses a positive Retry-After header value in seconds.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// backoff computes baseDelay * 2^(attempt-1) plus up to one second of jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt-1))
	if n, err := rand.Int(rand.Reader, big.NewInt(int64(time.Second))); err == nil {
		d += float64(n.Int64())
	}
	return time.Duration(d)
}
