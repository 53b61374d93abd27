package tools

import (
	"context"
	"fmt"
	"strings"
)

// maxLogLines caps the tail of each task log included in a failure report.
const maxLogLines = 200

func (s *Service) getRunFailureLogs(ctx context.Context, project string, args map[string]any) (map[string]any, error) {
	raw, ok := args["build_id"]
	if !ok || raw == nil {
		return errorMessage("build_id is required"), nil
	}
	buildID, err := intArg(raw, "build_id")
	if err != nil {
		return errorMessage(err.Error()), nil
	}

	buildPath := fmt.Sprintf("_apis/build/builds/%d", buildID)
	build, err := s.api.Get(ctx, project, buildPath, nil)
	if err != nil {
		return nil, err
	}

	timeline, err := s.api.Get(ctx, project, buildPath+"/timeline", nil)
	if err != nil {
		return nil, err
	}

	failures := make([]map[string]any, 0)
	for _, item := range list(timeline, "records") {
		record, _ := item.(map[string]any)
		if !isFailedStep(record) {
			continue
		}
		failures = append(failures, s.failureDetail(ctx, project, buildID, record))
	}

	return map[string]any{
		"project":       project,
		"build_id":      buildID,
		"build_number":  build["buildNumber"],
		"pipeline_name": str(obj(build, "definition"), "name"),
		"status":        build["status"],
		"result":        build["result"],
		"source_branch": build["sourceBranch"],
		"requested_by":  str(obj(build, "requestedFor"), "displayName"),
		"start_time":    formatTimestamp(strOrEmpty(build, "startTime")),
		"finish_time":   formatTimestamp(strOrEmpty(build, "finishTime")),
		"duration":      formatDuration(strOrEmpty(build, "startTime"), strOrEmpty(build, "finishTime")),
		"failure_count": len(failures),
		"failures":      failures,
	}, nil
}

func isFailedStep(record map[string]any) bool {
	if strOrEmpty(record, "result") != "failed" {
		return false
	}
	switch strOrEmpty(record, "type") {
	case "Task", "Job", "Phase":
		return true
	}
	return false
}

func (s *Service) failureDetail(ctx context.Context, project string, buildID int, record map[string]any) map[string]any {
	issues := make([]map[string]any, 0)
	for _, item := range list(record, "issues") {
		issue, _ := item.(map[string]any)
		issues = append(issues, map[string]any{
			"type":     issue["type"],
			"message":  issue["message"],
			"category": issue["category"],
		})
	}

	errorCount := record["errorCount"]
	if errorCount == nil {
		errorCount = 0
	}

	detail := map[string]any{
		"name":        record["name"],
		"type":        record["type"],
		"state":       record["state"],
		"result":      record["result"],
		"start_time":  formatTimestamp(strOrEmpty(record, "startTime")),
		"finish_time": formatTimestamp(strOrEmpty(record, "finishTime")),
		"duration":    formatDuration(strOrEmpty(record, "startTime"), strOrEmpty(record, "finishTime")),
		"error_count": errorCount,
		"issues":      issues,
		"log_snippet": nil,
	}

	// Only Task records carry a fetchable per-step log.
	if strOrEmpty(record, "type") == "Task" {
		if logID, err := intArg(str(obj(record, "log"), "id"), "log_id"); err == nil {
			snippet, totalLines, err := s.logTail(ctx, project, buildID, logID)
			if err != nil {
				detail["log_snippet"] = "(could not fetch log)"
			} else {
				detail["log_snippet"] = snippet
				detail["log_total_lines"] = totalLines
			}
		}
	}

	return detail
}

// logTail fetches a build log and returns its last maxLogLines lines along
// with the total line count.
func (s *Service) logTail(ctx context.Context, project string, buildID, logID int) (string, int, error) {
	path := fmt.Sprintf("_apis/build/builds/%d/logs/%d", buildID, logID)
	text, err := s.api.GetText(ctx, project, path, nil)
	if err != nil {
		return "", 0, err
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	tail := lines
	if len(tail) > maxLogLines {
		tail = tail[len(tail)-maxLogLines:]
	}
	return strings.Join(tail, "\n"), len(lines), nil
}
