package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/okaneconnor/azure-devops-mcp/devops"
	"github.com/okaneconnor/azure-devops-mcp/internal/resilience"
	"github.com/okaneconnor/azure-devops-mcp/internal/scrub"
)

// API is the slice of the Azure DevOps client the tool handlers use.
// *devops.Client satisfies it; tests substitute a fake.
type API interface {
	Get(ctx context.Context, project, path string, query url.Values) (map[string]any, error)
	Post(ctx context.Context, project, path string, body any) (map[string]any, error)
	GetText(ctx context.Context, project, path string, query url.Values) (string, error)
	Execute(ctx context.Context, req devops.Request) (*devops.Response, error)
}

var _ API = (*devops.Client)(nil)

// ErrUnknownTool is returned by Dispatch for tool names outside the registry.
var ErrUnknownTool = errors.New("tools: unknown tool")

const unavailableMessage = "Azure DevOps is temporarily unavailable. The service may be experiencing issues. Please try again shortly."

type handler func(ctx context.Context, project string, args map[string]any) (map[string]any, error)

// Service dispatches tool invocations: it resolves the target project,
// enforces per-caller rate limits, audits every call, and translates client
// errors into structured payloads.
type Service struct {
	api             API
	limiter         *resilience.RateLimiter
	logger          *slog.Logger
	allowedProjects []string
	defaultProject  string
	handlers        map[string]handler
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the audit logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRateLimiter sets the per-caller limiter. Defaults to one with
// standard limits.
func WithRateLimiter(limiter *resilience.RateLimiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

// NewService builds a Service over the given client. allowedProjects is the
// project allow-list; defaultProject is used when a call names no project.
func NewService(api API, allowedProjects []string, defaultProject string, opts ...Option) *Service {
	s := &Service{
		api:             api,
		allowedProjects: allowedProjects,
		defaultProject:  defaultProject,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.limiter == nil {
		s.limiter = resilience.NewRateLimiter(resilience.DefaultRateLimiterConfig())
	}
	s.handlers = map[string]handler{
		"list_pipeline_runs":   s.listPipelineRuns,
		"get_run_failure_logs": s.getRunFailureLogs,
		"list_deployments":     s.listDeployments,
		"trigger_pipeline_run": s.triggerPipelineRun,
	}
	return s
}

// Dispatch runs the named tool. It returns ErrUnknownTool for unregistered
// names; every other outcome, including validation and upstream failures, is
// carried in the payload.
func (s *Service) Dispatch(ctx context.Context, name string, caller Identity, args map[string]any) (map[string]any, error) {
	h, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()

	project, err := s.resolveProject(args)
	if err != nil {
		s.logResult(name, caller, project, start, "error", "error_type", "invalid_project")
		return errorMessage(err.Error()), nil
	}

	s.logger.Info("tool invocation",
		"tool_name", name,
		"user", caller.DisplayName(),
		"principal_id", caller.PrincipalID,
		"client_ip", caller.ClientIP,
		"project", project,
		"tool_args", sanitizeArgs(args),
		"status", "started",
	)

	if !s.limiter.Check(caller.Key()) {
		s.logResult(name, caller, project, start, "rate_limited")
		return errorMessage("Rate limit exceeded. Try again shortly."), nil
	}

	payload, err := h(ctx, project, args)
	if err != nil {
		s.logResult(name, caller, project, start, "error", "error_type", errorType(err))
		return s.errorPayload(err), nil
	}
	s.logResult(name, caller, project, start, "success")
	return payload, nil
}

func (s *Service) resolveProject(args map[string]any) (string, error) {
	project := stringArg(args, "project")
	if project == "" {
		project = s.defaultProject
	}
	if project == "" {
		return "", errors.New("No project specified and no default project configured")
	}
	if len(s.allowedProjects) == 0 {
		return "", errors.New("No allowed projects configured")
	}
	if !slices.Contains(s.allowedProjects, project) {
		return "", fmt.Errorf("Project '%s' is not in the allowed list: %s",
			project, strings.Join(s.allowedProjects, ", "))
	}
	return project, nil
}

func (s *Service) logResult(name string, caller Identity, project string, start time.Time, status string, extra ...any) {
	attrs := []any{
		"tool_name", name,
		"user", caller.DisplayName(),
		"principal_id", caller.PrincipalID,
		"project", project,
		"duration_ms", time.Since(start).Milliseconds(),
		"status", status,
	}
	s.logger.Info("tool result", append(attrs, extra...)...)
}

// errorPayload translates a client error into the structured form handlers
// return to callers.
func (s *Service) errorPayload(err error) map[string]any {
	if errors.Is(err, devops.ErrUnavailable) {
		return map[string]any{
			"error":               true,
			"message":             unavailableMessage,
			"retry_after_seconds": 60,
		}
	}

	var apiErr *devops.APIError
	if errors.As(err, &apiErr) {
		return map[string]any{
			"error":       true,
			"status_code": apiErr.StatusCode,
			"message":     apiErr.Message,
		}
	}

	return errorMessage(scrub.URLs(err.Error()))
}

func errorMessage(message string) map[string]any {
	return map[string]any{"error": true, "message": message}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, devops.ErrUnavailable):
		return "unavailable"
	default:
		var apiErr *devops.APIError
		var transportErr *devops.TransportError
		if errors.As(err, &apiErr) {
			return "api_error"
		}
		if errors.As(err, &transportErr) {
			return "transport_error"
		}
		return "invalid_argument"
	}
}
