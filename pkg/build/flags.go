// SPDX-License-Identifier: MIT
//
// Package build provides the build information embedded at compile time with
// linker flags, for example:
//
//	go build -ldflags "-X spexia/pkg/build.buildVersion=v0.3.0 -X spexia/pkg/build.buildCommit=$(git rev-parse HEAD)"
//
// Flags that were not set fall back to the module build info recorded by the
// Go toolchain, then to "unknown".
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
)

const unknown = "unknown"

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        "spexia",
		Description: "Live stereo spectral analysis with device hot-swap",
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize copies the ldflags values into the build information. Missing
// values are filled from the toolchain's build info where possible; the
// returned error lists the flags that were not set, so release builds can
// reject it while development builds ignore it.
func Initialize() error {
	var missing []error
	if buildName != "" {
		buildFlags.Name = buildName
	}

	vcs := vcsSettings()
	for _, f := range []struct {
		name     string
		value    string
		fallback string
		dst      *string
	}{
		{"buildTime", buildTime, vcs["vcs.time"], &buildFlags.Time},
		{"buildCommit", buildCommit, vcs["vcs.revision"], &buildFlags.Commit},
		{"buildVersion", buildVersion, vcs["version"], &buildFlags.Version},
	} {
		switch {
		case f.value != "":
			*f.dst = f.value
		case f.fallback != "":
			*f.dst = f.fallback
			missing = append(missing, fmt.Errorf("%s is not set", f.name))
		default:
			*f.dst = unknown
			missing = append(missing, fmt.Errorf("%s is not set", f.name))
		}
	}
	return errors.Join(missing...)
}

// vcsSettings returns the VCS settings and main module version recorded by
// the toolchain.
func vcsSettings() map[string]string {
	settings := make(map[string]string)
	info, ok := readBuildInfo()
	if !ok {
		return settings
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		settings["version"] = v
	}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildFlags
}

// String formats the build information for --version output.
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}
