package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/okaneconnor/azure-devops-mcp/devops"
)

var validDeploymentStatuses = map[string]bool{
	"succeeded":          true,
	"failed":             true,
	"inProgress":         true,
	"notDeployed":        true,
	"partiallySucceeded": true,
	"undefined":          true,
	"all":                true,
}

func (s *Service) listDeployments(ctx context.Context, project string, args map[string]any) (map[string]any, error) {
	top, err := topArg(args)
	if err != nil {
		return errorMessage(err.Error()), nil
	}

	status := stringArg(args, "deployment_status")
	if status != "" && !validDeploymentStatuses[status] {
		return errorMessage(fmt.Sprintf("Invalid deployment_status '%s'. Valid values: %s",
			status, joinSorted(validDeploymentStatuses))), nil
	}

	query := url.Values{
		"$top":       {strconv.Itoa(top)},
		"queryOrder": {"descending"},
	}
	if status != "" {
		query.Set("deploymentStatus", status)
	}

	// Classic Releases live on the vsrm host.
	resp, err := s.api.Execute(ctx, devops.Request{
		Method:  http.MethodGet,
		Path:    "_apis/release/deployments",
		Project: project,
		Query:   query,
		VSRM:    true,
	})
	if err != nil {
		return nil, err
	}
	data, err := resp.JSON()
	if err != nil {
		return nil, err
	}

	items := list(data, "value")
	deployments := make([]map[string]any, 0, len(items))
	for _, item := range items {
		d, _ := item.(map[string]any)
		deployments = append(deployments, map[string]any{
			"id":                d["id"],
			"release_name":      str(obj(d, "release"), "name"),
			"release_id":        str(obj(d, "release"), "id"),
			"definition_name":   str(obj(d, "releaseDefinition"), "name"),
			"definition_id":     str(obj(d, "releaseDefinition"), "id"),
			"environment_name":  str(obj(d, "releaseEnvironment"), "name"),
			"deployment_status": d["deploymentStatus"],
			"operation_status":  d["operationStatus"],
			"requested_by":      str(obj(d, "requestedBy"), "displayName"),
			"queued_on":         formatTimestamp(strOrEmpty(d, "queuedOn")),
			"started_on":        formatTimestamp(strOrEmpty(d, "startedOn")),
			"completed_on":      formatTimestamp(strOrEmpty(d, "completedOn")),
			"duration":          formatDuration(strOrEmpty(d, "startedOn"), strOrEmpty(d, "completedOn")),
		})
	}

	return map[string]any{
		"project":     project,
		"count":       len(deployments),
		"deployments": deployments,
	}, nil
}
