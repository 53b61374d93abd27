package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	defaultTop = 20
	maxTop     = 50

	maxBranchLength    = 500
	maxParametersBytes = 10240
)

var validBuildStatuses = map[string]bool{
	"completed":  true,
	"inProgress": true,
	"cancelling": true,
	"notStarted": true,
	"postponed":  true,
	"all":        true,
	"none":       true,
}

func (s *Service) listPipelineRuns(ctx context.Context, project string, args map[string]any) (map[string]any, error) {
	top, err := topArg(args)
	if err != nil {
		return errorMessage(err.Error()), nil
	}

	status := stringArg(args, "status")
	if status != "" && !validBuildStatuses[status] {
		return errorMessage(fmt.Sprintf("Invalid status '%s'. Valid values: %s",
			status, joinSorted(validBuildStatuses))), nil
	}

	if raw, ok := args["pipeline_id"]; ok && raw != nil {
		pipelineID, err := intArg(raw, "pipeline_id")
		if err != nil {
			return errorMessage(err.Error()), nil
		}
		return s.listRunsForPipeline(ctx, project, pipelineID, top)
	}

	query := url.Values{
		"$top":       {strconv.Itoa(top)},
		"queryOrder": {"queueTimeDescending"},
	}
	if status != "" {
		query.Set("statusFilter", status)
	}

	data, err := s.api.Get(ctx, project, "_apis/build/builds", query)
	if err != nil {
		return nil, err
	}

	builds := list(data, "value")
	runs := make([]map[string]any, 0, len(builds))
	for _, item := range builds {
		b, _ := item.(map[string]any)
		runs = append(runs, map[string]any{
			"build_id":      b["id"],
			"build_number":  b["buildNumber"],
			"pipeline_name": str(obj(b, "definition"), "name"),
			"pipeline_id":   str(obj(b, "definition"), "id"),
			"status":        b["status"],
			"result":        b["result"],
			"source_branch": b["sourceBranch"],
			"requested_by":  str(obj(b, "requestedFor"), "displayName"),
			"queue_time":    formatTimestamp(strOrEmpty(b, "queueTime")),
			"finish_time":   formatTimestamp(strOrEmpty(b, "finishTime")),
			"duration":      formatDuration(strOrEmpty(b, "startTime"), strOrEmpty(b, "finishTime")),
			"url":           webLink(b),
		})
	}

	return map[string]any{
		"project": project,
		"count":   len(runs),
		"runs":    runs,
	}, nil
}

// listRunsForPipeline uses the Pipelines API, which scopes runs to one
// definition but reports fewer fields than the Builds API.
func (s *Service) listRunsForPipeline(ctx context.Context, project string, pipelineID, top int) (map[string]any, error) {
	path := fmt.Sprintf("_apis/pipelines/%d/runs", pipelineID)
	query := url.Values{"$top": {strconv.Itoa(top)}}

	data, err := s.api.Get(ctx, project, path, query)
	if err != nil {
		return nil, err
	}

	items := list(data, "value")
	runs := make([]map[string]any, 0, len(items))
	for _, item := range items {
		r, _ := item.(map[string]any)
		runs = append(runs, map[string]any{
			"run_id":        r["id"],
			"name":          r["name"],
			"state":         r["state"],
			"result":        r["result"],
			"created_date":  formatTimestamp(strOrEmpty(r, "createdDate")),
			"finished_date": formatTimestamp(strOrEmpty(r, "finishedDate")),
			"url":           webLink(r),
		})
	}

	return map[string]any{
		"project":     project,
		"pipeline_id": pipelineID,
		"count":       len(runs),
		"runs":        runs,
	}, nil
}

func (s *Service) triggerPipelineRun(ctx context.Context, project string, args map[string]any) (map[string]any, error) {
	raw, ok := args["pipeline_id"]
	if !ok || raw == nil {
		return errorMessage("pipeline_id is required"), nil
	}
	pipelineID, err := intArg(raw, "pipeline_id")
	if err != nil {
		return errorMessage(err.Error()), nil
	}

	branch := stringArg(args, "branch")
	if len(branch) > maxBranchLength {
		return errorMessage(fmt.Sprintf("branch must be at most %d characters", maxBranchLength)), nil
	}

	self := map[string]any{}
	if branch != "" {
		self["refName"] = branch
	}
	body := map[string]any{
		"resources": map[string]any{
			"repositories": map[string]any{"self": self},
		},
	}

	if parameters := stringArg(args, "parameters"); parameters != "" {
		if len(parameters) > maxParametersBytes {
			return errorMessage(fmt.Sprintf("parameters JSON must be at most %d bytes", maxParametersBytes)), nil
		}
		var templateParameters map[string]any
		if err := json.Unmarshal([]byte(parameters), &templateParameters); err != nil {
			return errorMessage("parameters must be a valid JSON string"), nil
		}
		body["templateParameters"] = templateParameters
	}

	path := fmt.Sprintf("_apis/pipelines/%d/runs", pipelineID)
	data, err := s.api.Post(ctx, project, path, body)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"triggered":     true,
		"project":       project,
		"run_id":        data["id"],
		"name":          data["name"],
		"state":         data["state"],
		"pipeline_id":   str(obj(data, "pipeline"), "id"),
		"pipeline_name": str(obj(data, "pipeline"), "name"),
		"created_date":  formatTimestamp(strOrEmpty(data, "createdDate")),
		"url":           webLink(data),
	}, nil
}

func topArg(args map[string]any) (int, error) {
	raw, ok := args["top"]
	if !ok || raw == nil {
		return defaultTop, nil
	}
	top, err := intArg(raw, "top")
	if err != nil {
		return 0, err
	}
	if top < 1 || top > maxTop {
		return 0, fmt.Errorf("top must be between 1 and %d", maxTop)
	}
	return top, nil
}

func joinSorted(set map[string]bool) string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, ", ")
}
