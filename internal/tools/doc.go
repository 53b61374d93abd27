// Package tools implements the MCP tool handlers exposed by the server:
// listing pipeline runs, fetching failure logs, listing release deployments,
// and queueing new runs. Handlers never return Go errors to callers; every
// outcome, including validation failures and upstream errors, is expressed
// as a JSON-able payload so the transport layer stays uniform.
package tools
