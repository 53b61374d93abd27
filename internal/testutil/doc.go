// Package testutil provides testing utilities for the Azure DevOps client and
// tool layer.
//
// MockDevOpsServer is an httptest-backed stand-in for dev.azure.com with
// request capture:
//
//	server := testutil.NewMockServer(t)
//	server.OnGet("/contoso/webapp/_apis/build/builds", func(w http.ResponseWriter, r *http.Request) {
//	    testutil.ReplyJSON(w, http.StatusOK, map[string]any{"value": []any{}})
//	})
//
// FakeSleeper records backoff sleeps without actually sleeping, so retry
// timing can be asserted without real delays.
//
// This package is intended for internal testing only.
package testutil
