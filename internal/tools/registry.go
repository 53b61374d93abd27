package tools

// Property describes one tool argument for client discovery.
type Property struct {
	Name        string `json:"propertyName"`
	Type        string `json:"propertyType"`
	Description string `json:"description"`
}

// Tool describes one callable tool for client discovery.
type Tool struct {
	Name        string     `json:"toolName"`
	Description string     `json:"description"`
	Properties  []Property `json:"toolProperties"`
}

var projectProperty = Property{
	Name:        "project",
	Type:        "string",
	Description: "Azure DevOps project name. Defaults to the configured project.",
}

// Definitions returns the metadata for every registered tool.
func Definitions() []Tool {
	return []Tool{
		{
			Name:        "list_pipeline_runs",
			Description: "List recent pipeline runs. Returns build IDs, statuses, branches, and durations.",
			Properties: []Property{
				projectProperty,
				{Name: "pipeline_id", Type: "integer", Description: "Filter to a specific pipeline ID. If omitted, returns runs across all pipelines."},
				{Name: "status", Type: "string", Description: "Filter by status: completed, inProgress, cancelling, notStarted."},
				{Name: "top", Type: "integer", Description: "Number of results to return (default 20, max 50)."},
			},
		},
		{
			Name:        "get_run_failure_logs",
			Description: "Get failure details and log snippets for a failed pipeline run.",
			Properties: []Property{
				projectProperty,
				{Name: "build_id", Type: "integer", Description: "The build ID to inspect (from list_pipeline_runs)."},
			},
		},
		{
			Name:        "list_deployments",
			Description: "List recent release deployments (Classic Releases).",
			Properties: []Property{
				projectProperty,
				{Name: "top", Type: "integer", Description: "Number of results to return (default 20, max 50)."},
				{Name: "deployment_status", Type: "string", Description: "Filter: succeeded, failed, inProgress, notDeployed, etc."},
			},
		},
		{
			Name:        "trigger_pipeline_run",
			Description: "Queue a new pipeline run.",
			Properties: []Property{
				projectProperty,
				{Name: "pipeline_id", Type: "integer", Description: "The pipeline definition ID to trigger."},
				{Name: "branch", Type: "string", Description: "Source branch to build (e.g. refs/heads/main). Defaults to pipeline default."},
				{Name: "parameters", Type: "string", Description: "JSON string of runtime parameters to pass to the pipeline."},
			},
		},
	}
}
