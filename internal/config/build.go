package config

// Build metadata injected by the linker. Release builds pass, for example:
//
//	go build -ldflags "-X perfpulse/internal/config.version=1.2.3 \
//	    -X perfpulse/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X perfpulse/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Local builds fall back to the defaults below.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo snapshots the linker-injected variables into a BuildInfo.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
