package rediskv

import "runtime"

// Version is the current version of the rediskv node.
// INFO reports it as redis_version.
const Version = "1.0.0"

// Set through -ldflags "-X github.com/raniellyferreira/redis-inmemory-kv.GitCommit=..."
var (
	GitCommit string
	BuildTime string
)

// VersionInfo returns the version, build metadata when present, and the Go
// runtime the binary was built with.
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": Version,
		"go":      runtime.Version(),
	}
	if GitCommit != "" {
		info["commit"] = GitCommit
	}
	if BuildTime != "" {
		info["buildTime"] = BuildTime
	}
	return info
}
