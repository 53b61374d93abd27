package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okaneconnor/azure-devops-mcp/devops"
	"github.com/okaneconnor/azure-devops-mcp/internal/resilience"
)

type getCall struct {
	project string
	path    string
	query   url.Values
}

type postCall struct {
	project string
	path    string
	body    any
}

// fakeAPI serves canned responses keyed by request path and records every
// call for assertions.
type fakeAPI struct {
	gets     []getCall
	posts    []postCall
	executes []devops.Request

	jsonByPath map[string]map[string]any
	textByPath map[string]string
	errByPath  map[string]error

	postJSON    map[string]any
	postErr     error
	executeJSON map[string]any
	executeErr  error
}

func (f *fakeAPI) Get(_ context.Context, project, path string, query url.Values) (map[string]any, error) {
	f.gets = append(f.gets, getCall{project, path, query})
	if err := f.errByPath[path]; err != nil {
		return nil, err
	}
	if resp, ok := f.jsonByPath[path]; ok {
		return resp, nil
	}
	return map[string]any{"value": []any{}}, nil
}

func (f *fakeAPI) Post(_ context.Context, project, path string, body any) (map[string]any, error) {
	f.posts = append(f.posts, postCall{project, path, body})
	if f.postErr != nil {
		return nil, f.postErr
	}
	if f.postJSON != nil {
		return f.postJSON, nil
	}
	return map[string]any{}, nil
}

func (f *fakeAPI) GetText(_ context.Context, project, path string, query url.Values) (string, error) {
	f.gets = append(f.gets, getCall{project, path, query})
	if err := f.errByPath[path]; err != nil {
		return "", err
	}
	return f.textByPath[path], nil
}

func (f *fakeAPI) Execute(_ context.Context, req devops.Request) (*devops.Response, error) {
	f.executes = append(f.executes, req)
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	payload := f.executeJSON
	if payload == nil {
		payload = map[string]any{"value": []any{}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &devops.Response{StatusCode: 200, Body: body}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(api API, opts ...Option) *Service {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewService(api, []string{"webapp", "infra"}, "webapp", opts...)
}

func dispatch(t *testing.T, s *Service, name string, args map[string]any) map[string]any {
	t.Helper()
	payload, err := s.Dispatch(context.Background(), name, Identity{PrincipalName: "dev@contoso.com"}, args)
	require.NoError(t, err)
	return payload
}

func TestDispatchUnknownTool(t *testing.T) {
	s := newTestService(&fakeAPI{})

	_, err := s.Dispatch(context.Background(), "drop_database", Identity{}, nil)

	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestDispatchUsesDefaultProject(t *testing.T) {
	api := &fakeAPI{}
	s := newTestService(api)

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{})

	assert.Equal(t, "webapp", payload["project"])
	require.Len(t, api.gets, 1)
	assert.Equal(t, "webapp", api.gets[0].project)
}

func TestDispatchRejectsProjectOutsideAllowList(t *testing.T) {
	api := &fakeAPI{}
	s := newTestService(api)

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{"project": "secret-project"})

	assert.Equal(t, true, payload["error"])
	assert.Contains(t, payload["message"], "secret-project")
	assert.Contains(t, payload["message"], "webapp, infra")
	assert.Empty(t, api.gets)
}

func TestDispatchRequiresSomeProject(t *testing.T) {
	s := NewService(&fakeAPI{}, []string{"webapp"}, "", WithLogger(quietLogger()))

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{})

	assert.Equal(t, true, payload["error"])
	assert.Contains(t, payload["message"], "No project specified")
}

func TestDispatchEnforcesPerCallerRateLimit(t *testing.T) {
	api := &fakeAPI{}
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		MaxRequests: 1,
		Window:      time.Minute,
	})
	s := newTestService(api, WithRateLimiter(limiter))

	first := dispatch(t, s, "list_pipeline_runs", map[string]any{})
	assert.NotContains(t, first, "error")

	second := dispatch(t, s, "list_pipeline_runs", map[string]any{})
	assert.Equal(t, true, second["error"])
	assert.Contains(t, second["message"], "Rate limit exceeded")

	// Only the admitted call reached the API.
	assert.Len(t, api.gets, 1)
}

func TestDispatchRateLimitIsPerCaller(t *testing.T) {
	api := &fakeAPI{}
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		MaxRequests: 1,
		Window:      time.Minute,
	})
	s := newTestService(api, WithRateLimiter(limiter))

	ctx := context.Background()
	_, err := s.Dispatch(ctx, "list_pipeline_runs", Identity{PrincipalID: "oid-a"}, nil)
	require.NoError(t, err)

	payload, err := s.Dispatch(ctx, "list_pipeline_runs", Identity{PrincipalID: "oid-b"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, payload, "error")
}

func TestDispatchTranslatesUnavailable(t *testing.T) {
	api := &fakeAPI{errByPath: map[string]error{
		"_apis/build/builds": devops.ErrUnavailable,
	}}
	s := newTestService(api)

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{})

	assert.Equal(t, true, payload["error"])
	assert.Equal(t, 60, payload["retry_after_seconds"])
	assert.Contains(t, payload["message"], "temporarily unavailable")
}

func TestDispatchTranslatesAPIError(t *testing.T) {
	api := &fakeAPI{errByPath: map[string]error{
		"_apis/build/builds": &devops.APIError{StatusCode: 404, Message: "project not found"},
	}}
	s := newTestService(api)

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{})

	assert.Equal(t, true, payload["error"])
	assert.Equal(t, 404, payload["status_code"])
	assert.Equal(t, "project not found", payload["message"])
}

func TestDispatchScrubsURLsFromUnexpectedErrors(t *testing.T) {
	api := &fakeAPI{errByPath: map[string]error{
		"_apis/build/builds": &devops.TransportError{
			Err: errAt("dial tcp: lookup https://dev.azure.com/contoso?token=abc failed"),
		},
	}}
	s := newTestService(api)

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{})

	assert.Equal(t, true, payload["error"])
	assert.NotContains(t, payload["message"], "token=abc")
	assert.Contains(t, payload["message"], "[URL redacted]")
}

type errAt string

func (e errAt) Error() string { return string(e) }
