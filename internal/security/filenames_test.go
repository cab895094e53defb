package security

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"t9_stairs_001", "t9_stairs_001"},
		{"hip_flexion_r", "hip_flexion_r"},
		{"", "unknown"},
		{"..", "unknown"},
		{"../../etc/passwd", "etc_passwd"},
		{"walk trial #2", "walk_trial_2"},
		{"sujet/é/01", "sujet_01"},
		{"._hidden_", "hidden"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := SanitizeFilename(strings.Repeat("a", 500))
	if len(long) != maxFilenameLen {
		t.Errorf("expected length %d, got %d", maxFilenameLen, len(long))
	}
}

func TestContainedPath(t *testing.T) {
	tests := []struct {
		dir     string
		name    string
		want    string
		wantErr bool
	}{
		{"/out", "t9_stairs_001", "/out/t9_stairs_001", false},
		{"out", "a/b.png", "out/a/b.png", false},
		{"/out/", "./plots", "/out/plots", false},
		{"/out", "..", "", true},
		{"/out", "../etc", "", true},
		{"/out", "a/../../etc", "", true},
		{"/out", ".", "", true},
		{"/out", "", "", true},
	}
	for _, tt := range tests {
		got, err := ContainedPath(tt.dir, tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ContainedPath(%q, %q) = %q, expected error", tt.dir, tt.name, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ContainedPath(%q, %q) unexpected error: %v", tt.dir, tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ContainedPath(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}
