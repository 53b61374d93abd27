package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// Test fixtures shared across packages.
const (
	TestOrganization = "contoso"
	TestProject      = "webapp"
)

// Capture is one recorded request.
type Capture struct {
	Method    string
	Path      string
	Query     url.Values
	Headers   http.Header
	Body      []byte
	Timestamp time.Time
}

// MockDevOpsServer is a mock Azure DevOps API server for testing.
type MockDevOpsServer struct {
	*httptest.Server
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	captures []Capture
}

// NewMockServer creates a mock server. It is closed when the test completes.
func NewMockServer(t *testing.T) *MockDevOpsServer {
	t.Helper()

	m := &MockDevOpsServer{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockDevOpsServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()

	m.mu.Lock()
	m.captures = append(m.captures, Capture{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Headers:   r.Header.Clone(),
		Body:      body,
		Timestamp: time.Now(),
	})
	handler, exists := m.handlers[r.Method+":"+r.URL.Path]
	m.mu.Unlock()

	if exists {
		handler(w, r)
		return
	}

	ReplyJSON(w, http.StatusOK, map[string]any{"value": []any{}})
}

// OnMethod registers a handler for a specific HTTP method and path.
func (m *MockDevOpsServer) OnMethod(method, path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method+":"+path] = handler
}

// OnGet registers a handler for a GET request.
func (m *MockDevOpsServer) OnGet(path string, handler http.HandlerFunc) {
	m.OnMethod(http.MethodGet, path, handler)
}

// OnPost registers a handler for a POST request.
func (m *MockDevOpsServer) OnPost(path string, handler http.HandlerFunc) {
	m.OnMethod(http.MethodPost, path, handler)
}

// Captures returns all captured requests.
func (m *MockDevOpsServer) Captures() []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Capture{}, m.captures...)
}

// LastCapture returns the most recent captured request, or nil.
func (m *MockDevOpsServer) LastCapture() *Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.captures) == 0 {
		return nil
	}
	c := m.captures[len(m.captures)-1]
	return &c
}

// BaseURL returns the server's base URL.
func (m *MockDevOpsServer) BaseURL() string {
	return m.Server.URL
}

// CaptureCount returns the number of captured requests.
func (m *MockDevOpsServer) CaptureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.captures)
}
