package atomicfile

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestWriteFile(t *testing.T) {
	t.Run("Creates New File", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "gradle.properties")

		if err := WriteFile(name, []byte("version=1.0\n"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		got, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(got) != "version=1.0\n" {
			t.Errorf("unexpected content %q", got)
		}
	})

	t.Run("Replaces Existing File", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "strata.toml")
		if err := os.WriteFile(name, []byte("branch = \"old\"\n"), 0644); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}

		if err := WriteFile(name, []byte("branch = \"new\"\n"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		got, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(got) != "branch = \"new\"\n" {
			t.Errorf("unexpected content %q", got)
		}
	})

	t.Run("Applies Permissions", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission bits are not enforced on windows")
		}
		name := filepath.Join(t.TempDir(), "private")

		if err := WriteFile(name, []byte("secret"), 0600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		info, err := os.Stat(name)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
		}
	})

	t.Run("Leaves No Temp Files", func(t *testing.T) {
		dir := t.TempDir()
		if err := WriteFile(filepath.Join(dir, "a"), []byte("a"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		// Missing parent directory fails before anything is created.
		if err := WriteFile(filepath.Join(dir, "missing", "b"), []byte("b"), 0644); err == nil {
			t.Fatal("expected an error for a missing directory")
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), TempPrefix) {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
		if len(entries) != 1 {
			t.Errorf("expected exactly one entry, got %d", len(entries))
		}
	})
}
