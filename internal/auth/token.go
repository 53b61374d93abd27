// Package auth supplies bearer tokens for Azure DevOps requests.
//
// On Azure the token comes from the instance metadata service (managed
// identity); locally a static token can be injected instead. Token fetches
// are cached, deduplicated across concurrent callers, and guarded by a
// circuit breaker so a failing metadata endpoint is not hammered.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	// Azure DevOps application ID; every token is scoped to this resource.
	devopsResource = "499b84ac-1321-427f-aa17-267ca6975798"

	imdsEndpoint   = "http://169.254.169.254/metadata/identity/oauth2/token"
	imdsAPIVersion = "2018-02-01"

	// Tokens are refreshed this long before they actually expire.
	refreshMargin = 5 * time.Minute
)

// Static supplies a fixed token (local development and tests).
type Static string

// Token returns the static token.
func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", errors.New("static token is empty")
	}
	return string(s), nil
}

type accessToken struct {
	value   string
	expires time.Time
}

// ManagedIdentity fetches bearer tokens from the Azure instance metadata
// service, caching each token until shortly before expiry.
type ManagedIdentity struct {
	clientID   string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *gobreaker.CircuitBreaker[*accessToken]

	mu     sync.Mutex
	cached *accessToken

	flight flightGroup[*accessToken]
}

// Option configures a ManagedIdentity provider.
type Option func(*ManagedIdentity)

// WithEndpoint overrides the metadata endpoint (useful for testing).
func WithEndpoint(endpoint string) Option {
	return func(m *ManagedIdentity) {
		m.endpoint = endpoint
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(m *ManagedIdentity) {
		m.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *ManagedIdentity) {
		m.logger = logger
	}
}

// NewManagedIdentity creates a provider. clientID selects a user-assigned
// identity; empty means the system-assigned identity.
func NewManagedIdentity(clientID string, opts ...Option) *ManagedIdentity {
	m := &ManagedIdentity{
		clientID: clientID,
		endpoint: imdsEndpoint,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	m.breaker = gobreaker.NewCircuitBreaker[*accessToken](gobreaker.Settings{
		Name:        "imds-token",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.logger.Info("token breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return m
}

// Token returns a valid bearer token, fetching a fresh one when the cached
// token is missing or close to expiry. Concurrent refreshes collapse into a
// single metadata call.
func (m *ManagedIdentity) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	if tok := m.cached; tok != nil && time.Until(tok.expires) > refreshMargin {
		m.mu.Unlock()
		return tok.value, nil
	}
	m.mu.Unlock()

	tok, err := m.flight.Do("token", func() (*accessToken, error) {
		return m.breaker.Execute(func() (*accessToken, error) {
			return m.fetch(ctx)
		})
	})
	if err != nil {
		return "", fmt.Errorf("managed identity token: %w", err)
	}

	m.mu.Lock()
	m.cached = tok
	m.mu.Unlock()
	return tok.value, nil
}

func (m *ManagedIdentity) fetch(ctx context.Context) (*accessToken, error) {
	query := url.Values{}
	query.Set("api-version", imdsAPIVersion)
	query.Set("resource", devopsResource)
	if m.clientID != "" {
		query.Set("client_id", m.clientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Metadata", "true")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata service returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresOn   string `json:"expires_on"` // unix seconds, as a string
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode metadata response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("metadata response missing access_token")
	}

	expires := time.Now().Add(time.Hour)
	if secs, err := strconv.ParseInt(payload.ExpiresOn, 10, 64); err == nil {
		expires = time.Unix(secs, 0)
	}

	return &accessToken{value: payload.AccessToken, expires: expires}, nil
}

// flightGroup prevents duplicate concurrent calls for the same key.
type flightGroup[T any] struct {
	mu    sync.Mutex
	calls map[string]*flightCall[T]
}

type flightCall[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Do executes fn only once for concurrent calls with the same key.
func (g *flightGroup[T]) Do(key string, fn func() (T, error)) (T, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*flightCall[T])
	}

	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		<-c.done
		return c.result, c.err
	}

	c := &flightCall[T]{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	c.result, c.err = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()

	return c.result, c.err
}
