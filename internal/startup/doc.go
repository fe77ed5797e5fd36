// Package startup loads configuration from environment variables and
// carries build information injected at link time.
package startup
