// Package devops provides a resilient client for the Azure DevOps REST APIs.
//
// Every outbound call goes through a shared access layer: a circuit breaker
// consulted once per logical call, a retry loop with exponential backoff and
// jitter for transient statuses, and Retry-After awareness for throttling
// responses. Per-caller admission control lives in internal/resilience and is
// applied by the tool layer before a call reaches this package.
//
//	client, err := devops.New("myorg",
//	    devops.WithTokenProvider(provider),
//	    devops.WithBreaker(breaker),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	builds, err := client.Get(ctx, "myproject", "_apis/build/builds", nil)
package devops
