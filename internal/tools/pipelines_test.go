package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPipelineRunsAcrossPipelines(t *testing.T) {
	api := &fakeAPI{jsonByPath: map[string]map[string]any{
		"_apis/build/builds": {
			"value": []any{
				map[string]any{
					"id":          float64(101),
					"buildNumber": "20260314.1",
					"definition":  map[string]any{"id": float64(7), "name": "ci-webapp"},
					"status":      "completed",
					"result":      "succeeded",
					"sourceBranch": "refs/heads/main",
					"requestedFor": map[string]any{"displayName": "Dev Eloper"},
					"queueTime":  "2026-03-14T09:30:00Z",
					"startTime":  "2026-03-14T09:31:00Z",
					"finishTime": "2026-03-14T09:41:30Z",
					"_links": map[string]any{
						"web": map[string]any{"href": "https://dev.azure.com/contoso/webapp/_build/results?buildId=101"},
					},
				},
			},
		},
	}}
	s := newTestService(api)

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{})

	assert.Equal(t, 1, payload["count"])
	runs := payload["runs"].([]map[string]any)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, float64(101), run["build_id"])
	assert.Equal(t, "ci-webapp", run["pipeline_name"])
	assert.Equal(t, "refs/heads/main", run["source_branch"])
	assert.Equal(t, "Dev Eloper", run["requested_by"])
	assert.Equal(t, "2026-03-14 09:30:00 UTC", run["queue_time"])
	assert.Equal(t, "10m 30s", run["duration"])
	assert.Equal(t, "https://dev.azure.com/contoso/webapp/_build/results?buildId=101", run["url"])

	require.Len(t, api.gets, 1)
	query := api.gets[0].query
	assert.Equal(t, "20", query.Get("$top"))
	assert.Equal(t, "queueTimeDescending", query.Get("queryOrder"))
	assert.Empty(t, query.Get("statusFilter"))
}

func TestListPipelineRunsStatusFilterForwarded(t *testing.T) {
	api := &fakeAPI{}
	s := newTestService(api)

	dispatch(t, s, "list_pipeline_runs", map[string]any{"status": "inProgress", "top": float64(5)})

	require.Len(t, api.gets, 1)
	assert.Equal(t, "inProgress", api.gets[0].query.Get("statusFilter"))
	assert.Equal(t, "5", api.gets[0].query.Get("$top"))
}

func TestListPipelineRunsInvalidStatus(t *testing.T) {
	s := newTestService(&fakeAPI{})

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{"status": "exploded"})

	assert.Equal(t, true, payload["error"])
	assert.Contains(t, payload["message"], "Invalid status 'exploded'")
	assert.Contains(t, payload["message"], "inProgress")
}

func TestListPipelineRunsTopBounds(t *testing.T) {
	s := newTestService(&fakeAPI{})

	for _, top := range []float64{0, 51} {
		payload := dispatch(t, s, "list_pipeline_runs", map[string]any{"top": top})
		assert.Equal(t, true, payload["error"])
		assert.Contains(t, payload["message"], "top must be between 1 and 50")
	}
}

func TestListPipelineRunsScopedToPipeline(t *testing.T) {
	api := &fakeAPI{jsonByPath: map[string]map[string]any{
		"_apis/pipelines/7/runs": {
			"value": []any{
				map[string]any{
					"id":           float64(2001),
					"name":         "20260314.2",
					"state":        "completed",
					"result":       "failed",
					"createdDate":  "2026-03-14T10:00:00Z",
					"finishedDate": "2026-03-14T10:05:00Z",
				},
			},
		},
	}}
	s := newTestService(api)

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{"pipeline_id": float64(7)})

	assert.Equal(t, 7, payload["pipeline_id"])
	assert.Equal(t, 1, payload["count"])
	runs := payload["runs"].([]map[string]any)
	require.Len(t, runs, 1)
	assert.Equal(t, float64(2001), runs[0]["run_id"])
	assert.Equal(t, "failed", runs[0]["result"])

	require.Len(t, api.gets, 1)
	assert.Equal(t, "_apis/pipelines/7/runs", api.gets[0].path)
}

func TestListPipelineRunsRejectsNonIntegerPipelineID(t *testing.T) {
	s := newTestService(&fakeAPI{})

	payload := dispatch(t, s, "list_pipeline_runs", map[string]any{"pipeline_id": "seven"})

	assert.Equal(t, true, payload["error"])
	assert.Contains(t, payload["message"], "pipeline_id")
}

func TestTriggerPipelineRun(t *testing.T) {
	api := &fakeAPI{postJSON: map[string]any{
		"id":          float64(3001),
		"name":        "20260314.3",
		"state":       "inProgress",
		"pipeline":    map[string]any{"id": float64(7), "name": "ci-webapp"},
		"createdDate": "2026-03-14T11:00:00Z",
		"_links": map[string]any{
			"web": map[string]any{"href": "https://dev.azure.com/contoso/webapp/_build/results?buildId=3001"},
		},
	}}
	s := newTestService(api)

	payload := dispatch(t, s, "trigger_pipeline_run", map[string]any{
		"pipeline_id": float64(7),
		"branch":      "refs/heads/hotfix",
		"parameters":  `{"deployTarget":"staging"}`,
	})

	assert.Equal(t, true, payload["triggered"])
	assert.Equal(t, float64(3001), payload["run_id"])
	assert.Equal(t, "ci-webapp", payload["pipeline_name"])
	assert.Equal(t, "2026-03-14 11:00:00 UTC", payload["created_date"])

	require.Len(t, api.posts, 1)
	post := api.posts[0]
	assert.Equal(t, "_apis/pipelines/7/runs", post.path)
	body := post.body.(map[string]any)
	self := body["resources"].(map[string]any)["repositories"].(map[string]any)["self"].(map[string]any)
	assert.Equal(t, "refs/heads/hotfix", self["refName"])
	assert.Equal(t, map[string]any{"deployTarget": "staging"}, body["templateParameters"])
}

func TestTriggerPipelineRunDefaultBranchOmitsRefName(t *testing.T) {
	api := &fakeAPI{}
	s := newTestService(api)

	dispatch(t, s, "trigger_pipeline_run", map[string]any{"pipeline_id": float64(7)})

	require.Len(t, api.posts, 1)
	body := api.posts[0].body.(map[string]any)
	self := body["resources"].(map[string]any)["repositories"].(map[string]any)["self"].(map[string]any)
	assert.Empty(t, self)
	assert.NotContains(t, body, "templateParameters")
}

func TestTriggerPipelineRunRequiresPipelineID(t *testing.T) {
	s := newTestService(&fakeAPI{})

	payload := dispatch(t, s, "trigger_pipeline_run", map[string]any{})

	assert.Equal(t, true, payload["error"])
	assert.Equal(t, "pipeline_id is required", payload["message"])
}

func TestTriggerPipelineRunRejectsLongBranch(t *testing.T) {
	s := newTestService(&fakeAPI{})

	payload := dispatch(t, s, "trigger_pipeline_run", map[string]any{
		"pipeline_id": float64(7),
		"branch":      strings.Repeat("f", 501),
	})

	assert.Equal(t, true, payload["error"])
	assert.Contains(t, payload["message"], "branch must be at most 500 characters")
}

func TestTriggerPipelineRunRejectsInvalidParameters(t *testing.T) {
	s := newTestService(&fakeAPI{})

	payload := dispatch(t, s, "trigger_pipeline_run", map[string]any{
		"pipeline_id": float64(7),
		"parameters":  "not json",
	})

	assert.Equal(t, true, payload["error"])
	assert.Equal(t, "parameters must be a valid JSON string", payload["message"])
}

func TestTriggerPipelineRunRejectsOversizedParameters(t *testing.T) {
	s := newTestService(&fakeAPI{})

	huge := `{"key":"` + strings.Repeat("v", maxParametersBytes) + `"}`
	payload := dispatch(t, s, "trigger_pipeline_run", map[string]any{
		"pipeline_id": float64(7),
		"parameters":  huge,
	})

	assert.Equal(t, true, payload["error"])
	assert.Contains(t, payload["message"], "10240 bytes")
}
