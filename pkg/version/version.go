// Package version carries build-time metadata for the observability agent.
package version

// These are overridden at build time via -ldflags.
var (
	BinaryName = "observability-agent"
	Version    = "dev"
	Commit     = "unknown"
)
