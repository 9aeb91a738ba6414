// Package constant defines immutable application-level identifiers and configuration defaults.
package constant

const (
	// Dotkeep is the canonical application identifier used for filesystem paths and CLI branding.
	Dotkeep = "dotkeep"

	// Version is the current application semantic version string.
	Version = "0.1.0"

	// UserAgent is the HTTP User-Agent string used for remote version queries.
	UserAgent = Dotkeep + "/" + Version
)

// Build metadata, injected at link time via -ldflags.
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)
