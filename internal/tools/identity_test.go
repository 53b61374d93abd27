package tools

import (
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bearerToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return "header." + encoded + ".signature"
}

func TestIdentityFromRequestDecodesClaims(t *testing.T) {
	req := httptest.NewRequest("POST", "/tools/list_pipeline_runs", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, map[string]any{
		"preferred_username": "dev@contoso.com",
		"oid":                "11111111-2222-3333-4444-555555555555",
	}))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	id := IdentityFromRequest(req)

	assert.Equal(t, "dev@contoso.com", id.PrincipalName)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", id.PrincipalID)
	assert.Equal(t, "203.0.113.7", id.ClientIP)
}

func TestIdentityFromRequestFallsBackToNameClaim(t *testing.T) {
	req := httptest.NewRequest("POST", "/tools/list_pipeline_runs", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, map[string]any{
		"name": "Dev Eloper",
	}))

	id := IdentityFromRequest(req)

	assert.Equal(t, "Dev Eloper", id.PrincipalName)
}

func TestIdentityFromRequestMalformedToken(t *testing.T) {
	req := httptest.NewRequest("POST", "/tools/list_pipeline_runs", nil)
	req.Header.Set("Authorization", "Bearer notajwt")

	id := IdentityFromRequest(req)

	assert.Empty(t, id.PrincipalName)
	assert.Empty(t, id.PrincipalID)
}

func TestIdentityFromRequestNoHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "/tools/list_pipeline_runs", nil)

	id := IdentityFromRequest(req)

	assert.Empty(t, id.PrincipalName)
	assert.Empty(t, id.ClientIP)
}

func TestIdentityKeyPrecedence(t *testing.T) {
	assert.Equal(t, "oid-1", Identity{PrincipalID: "oid-1", PrincipalName: "dev"}.Key())
	assert.Equal(t, "dev", Identity{PrincipalName: "dev"}.Key())
	assert.Equal(t, "anonymous", Identity{}.Key())
}

func TestIdentityDisplayName(t *testing.T) {
	assert.Equal(t, "dev@contoso.com", Identity{PrincipalName: "dev@contoso.com"}.DisplayName())
	assert.Equal(t, "anonymous", Identity{PrincipalID: "oid-1"}.DisplayName())
}
