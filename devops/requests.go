package devops

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one logical Azure DevOps API call.
type Request struct {
	// Method is the HTTP method. Defaults to GET.
	Method string

	// Path is the API path beneath the project, e.g. "_apis/build/builds".
	Path string

	// Project is the Azure DevOps project the call is scoped to.
	Project string

	// Query holds extra query parameters. The api-version parameter is added
	// automatically unless already present.
	Query url.Values

	// Body is JSON-encoded as the request body when non-nil.
	Body any

	// VSRM selects the release-management host (vsrm.dev.azure.com), used by
	// the Classic Releases APIs.
	VSRM bool

	// Accept overrides the Accept header. Defaults to application/json;
	// raw log retrieval uses text/plain.
	Accept string
}

// Response is the terminal response of a logical call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into a generic map.
func (r *Response) JSON() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Text returns the response body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}
