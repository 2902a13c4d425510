// Package version carries the build identity of the wasm-trace CLI.
package version

// Overridable at release time via -ldflags "-X ...".
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is the commit the binary was built from, when known.
	GitCommit = ""

	// BuildDate is the build timestamp in ISO-8601, when known.
	BuildDate = ""
)
