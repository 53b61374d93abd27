// Package resilience provides the in-process guards for outbound Azure DevOps
// traffic: a three-state circuit breaker and a per-caller sliding-window rate
// limiter. Both are constructed once at startup and shared across all calls.
package resilience
