package ratelimit

import (
	"net/http"
	"strings"
)

var unlimited = &Rule{Name: "unlimited"}

// MatchEndpoint returns the rule for a request, or nil when the default rule
// applies. Health and metrics endpoints are unlimited.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *Rule {
	if method == http.MethodGet && (path == "/api/health" || path == "/metrics") {
		return unlimited
	}

	for i := range configs {
		if configs[i].Path == path && configs[i].Method == method {
			return &configs[i].Rule
		}
	}

	for i := range configs {
		c := &configs[i]
		if c.Method == method && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			return &c.Rule
		}
	}

	return nil
}
