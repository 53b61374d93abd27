package tools

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

// Identity describes the authenticated caller of a tool. Fields may be empty
// when the gateway forwarded no usable claims.
type Identity struct {
	PrincipalName string
	PrincipalID   string
	ClientIP      string
}

// Key returns the identifier used for per-caller rate limiting.
func (id Identity) Key() string {
	if id.PrincipalID != "" {
		return id.PrincipalID
	}
	if id.PrincipalName != "" {
		return id.PrincipalName
	}
	return "anonymous"
}

// DisplayName returns the name used in audit logs.
func (id Identity) DisplayName() string {
	if id.PrincipalName != "" {
		return id.PrincipalName
	}
	return "anonymous"
}

// IdentityFromRequest extracts the caller identity from forwarded headers.
// The gateway has already verified the bearer token, so the JWT payload is
// decoded without re-validation; a malformed token yields an empty identity
// rather than an error.
func IdentityFromRequest(r *http.Request) Identity {
	var id Identity

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		id.ClientIP = strings.TrimSpace(first)
	}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		claims := decodeClaims(token)
		if name, ok := claims["preferred_username"].(string); ok && name != "" {
			id.PrincipalName = name
		} else if name, ok := claims["name"].(string); ok {
			id.PrincipalName = name
		}
		if oid, ok := claims["oid"].(string); ok {
			id.PrincipalID = oid
		}
	}

	return id
}

func decodeClaims(token string) map[string]any {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}
	return claims
}
