package version

import "testing"

func TestGetMinorVersion(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"0.25.1", "0.25"},
		{"1.2.3", "1.2"},
		{"0.0.0-dev", "0.0"},
		{"1", ""},
	}
	for _, tt := range tests {
		if got := GetMinorVersion(tt.version); got != tt.want {
			t.Errorf("GetMinorVersion(%q) = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"0.25.1", "0.25.0", true},
		{"0.25.0", "0.25.0", true},
		{"0.24.9", "0.25.0", false},
		{"1.0", "0.9", true},
		{"0.0", "999.0", false},
	}
	for _, tt := range tests {
		if got := IsVersionGreaterOrEqualThan(tt.version, tt.target); got != tt.want {
			t.Errorf("IsVersionGreaterOrEqualThan(%q, %q) = %v, want %v", tt.version, tt.target, got, tt.want)
		}
	}
}
