// Package version identifies the running docstore build. Release builds set the
// values with -ldflags "-X github.com/oyiakoumis/poco-sub000/internal/version.Version=...".
package version

//nolint:revive // overwritten by the linker
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
