package testutil

import (
	"testing"

	"github.com/okaneconnor/azure-devops-mcp/devops"
)

// NewTestClient builds a devops client pointed at the mock server.
func NewTestClient(t *testing.T, baseURL string, sleeper devops.Sleeper, opts ...devops.Option) *devops.Client {
	t.Helper()

	base := []devops.Option{
		devops.WithBaseURL(baseURL),
		devops.WithVSRMBaseURL(baseURL),
	}
	if sleeper != nil {
		base = append(base, devops.WithSleeper(sleeper))
	}

	client, err := devops.New(TestOrganization, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to build test client: %v", err)
	}
	return client
}

// Interface compliance.
var _ devops.Sleeper = (*FakeSleeper)(nil)
