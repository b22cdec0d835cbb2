// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	origName, origTime, origCommit, origVersion := buildName, buildTime, buildCommit, buildVersion

	exitCode := m.Run()

	buildName, buildTime, buildCommit, buildVersion = origName, origTime, origCommit, origVersion
	_ = Initialize()
	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErr     []string
		want        Info
	}{
		{
			"Development build",
			"", "", "", "",
			[]string{"buildName", "buildTime", "buildCommit", "buildVersion"},
			Info{Name: "pcgmon", Time: "unknown", Commit: "unknown", Version: "dev"},
		},
		{
			"Missing BuildCommit",
			"pcgmon", "2026-01-01T00:00:00Z", "", "v0.3.0",
			[]string{"buildCommit is not set"},
			Info{Name: "pcgmon", Time: "2026-01-01T00:00:00Z", Commit: "unknown", Version: "v0.3.0"},
		},
		{
			"Success Case",
			"pcgmon", "2026-01-01T00:00:00Z", "abcdef123", "v0.3.0",
			nil,
			Info{Name: "pcgmon", Time: "2026-01-01T00:00:00Z", Commit: "abcdef123", Version: "v0.3.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()
			if len(tt.wantErr) == 0 && err != nil {
				t.Errorf("Initialize() unexpected error: %v", err)
			}
			if len(tt.wantErr) > 0 && err == nil {
				t.Errorf("Initialize() expected error, got nil")
			}
			for _, substr := range tt.wantErr {
				if err != nil && !strings.Contains(err.Error(), substr) {
					t.Errorf("Initialize() error = %v, want substring %q", err, substr)
				}
			}

			if got := Get(); got != tt.want {
				t.Errorf("Get() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	i := Info{Name: "pcgmon", Time: "T", Commit: "abc", Version: "v1"}
	if got := i.String(); got != "pcgmon v1 (commit abc, built T)" {
		t.Errorf("String() = %q", got)
	}
}
