// SPDX-License-Identifier: MIT
//
// Package build exposes version metadata injected at link time:
//
//	go build -ldflags "-X pcgmon/pkg/build.buildVersion=0.3.0 \
//	    -X pcgmon/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X pcgmon/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds run without the flags and report placeholder values.
package build

import (
	"errors"
	"fmt"
	"sync"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Set by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var (
	mu   sync.RWMutex
	info = devInfo()
)

func devInfo() Info {
	return Info{
		Name:    "pcgmon",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
}

// Initialize copies the ldflags values into the build info. Missing values
// keep their development placeholders and are reported in the returned
// error, which callers may treat as a warning.
func Initialize() error {
	mu.Lock()
	defer mu.Unlock()

	info = devInfo()
	var errs []error
	set := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is not set", flag))
			return
		}
		*dst = val
	}
	set(&info.Name, buildName, "buildName")
	set(&info.Time, buildTime, "buildTime")
	set(&info.Commit, buildCommit, "buildCommit")
	set(&info.Version, buildVersion, "buildVersion")
	return errors.Join(errs...)
}

// Get returns the current build info.
func Get() Info {
	mu.RLock()
	defer mu.RUnlock()
	return info
}
