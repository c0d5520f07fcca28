package rest

import (
	"net/http"
	"strings"

	"lmlang/internal/concurrency"
)

// resolveAgent extracts the X-Agent-Id header and bearer token from r and
// resolves them against registry. A nil registry (no concurrency wired)
// always yields the anonymous, single-writer path.
func resolveAgent(registry *concurrency.Registry, r *http.Request) (agentID string, hasAgent bool, err error) {
	header := r.Header.Get("X-Agent-Id")
	if registry == nil {
		return header, header != "", nil
	}
	return concurrency.ResolveAgent(registry, header, bearerTokenFromRequest(r))
}

func bearerTokenFromRequest(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return ""
}
