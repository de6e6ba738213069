package buildinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	for name, v := range map[string]string{
		"Version":   info.Version,
		"Commit":    info.Commit,
		"BuildTime": info.BuildTime,
		"GoVersion": info.GoVersion,
		"Platform":  info.Platform,
	} {
		if v == "" {
			t.Errorf("%s should not be empty", name)
		}
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.Contains(s, Get().Version) || !strings.Contains(s, "built at") {
		t.Errorf("String() = %q", s)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		read       func() (*debug.BuildInfo, bool)
		wantVer    string
		wantCommit string
	}{
		{
			name:       "no build info",
			read:       func() (*debug.BuildInfo, bool) { return nil, false },
			wantVer:    "dev",
			wantCommit: "unknown",
		},
		{
			name: "module version and vcs",
			read: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{
					Main: debug.Module{Version: "v0.4.1"},
					Settings: []debug.BuildSetting{
						{Key: "vcs.revision", Value: "0123456789abcdef"},
						{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
					},
				}, true
			},
			wantVer:    "v0.4.1",
			wantCommit: "0123456",
		},
		{
			name: "devel build keeps default",
			read: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
			},
			wantVer:    "dev",
			wantCommit: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.read)
			if got.Version != tt.wantVer {
				t.Errorf("Version = %q, want %q", got.Version, tt.wantVer)
			}
			if got.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", got.Commit, tt.wantCommit)
			}
		})
	}
}
