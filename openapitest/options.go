package openapitest

import (
	"log/slog"
	"maps"

	"github.com/getkin/kin-openapi/openapi3filter"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for call tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBaseURL sets the URL relative call URIs are joined to.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithServerVariables sets default server variables. Per-call values replace
// these key by key.
func WithServerVariables(server map[string]string) Option {
	return func(c *Client) {
		c.server = maps.Clone(server)
	}
}

// WithSchemaCache shares parsed schemas with other clients using cache.
func WithSchemaCache(cache *SchemaCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithAuthenticationFunc validates security requirements with fn. By default
// every security requirement is accepted.
func WithAuthenticationFunc(fn openapi3filter.AuthenticationFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.authFunc = fn
		}
	}
}
