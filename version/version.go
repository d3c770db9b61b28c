// Package version carries build information stamped in with -ldflags, e.g.
//
//	-X github.com/pitabwire/cascade/version.Version=v1.2.0
package version //nolint:revive // package name intentionally matches build-info convention

//nolint:gochecknoglobals //version information is set at build time
var (
	Repository string
	Version    string
	Commit     string
	Date       string
)
