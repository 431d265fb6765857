package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRepositoryPath(t *testing.T) {
	t.Parallel()

	tempRoot := os.TempDir()
	devBase := filepath.Join(tempRoot, "strata-dev")
	inside := filepath.Join(tempRoot, "already", "here")

	tests := []struct {
		name      string
		userPath  string
		forceTemp bool
		expected  string
	}{
		{"Normal Mode - Empty Path", "", false, "."},
		{"Normal Mode - Specific Path", "/some/path", false, "/some/path"},
		{"Dev Mode - Empty Path", "", true, filepath.Join(devBase, "default")},
		{"Dev Mode - Current Dir", ".", true, filepath.Join(devBase, "default")},
		{"Dev Mode - Relative Name", "archive", true, filepath.Join(devBase, "archive")},
		{"Dev Mode - Absolute Outside Temp", "/srv/data/archive", true, filepath.Join(devBase, "archive")},
		{"Dev Mode - Already In Temp", inside, true, inside},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRepositoryPath(tt.userPath, tt.forceTemp)
			if got != tt.expected {
				t.Errorf("ResolveRepositoryPath(%q, %v) = %q, want %q", tt.userPath, tt.forceTemp, got, tt.expected)
			}
		})
	}
}

func TestIsDevRun(t *testing.T) {
	// Test binaries are built into a temporary directory with a .test suffix.
	if !IsDevRun() {
		t.Error("expected IsDevRun to be true under go test")
	}
}
