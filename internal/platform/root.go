package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindRoot looks upwards from startDir for the directory holding
// strata.toml and returns its absolute path.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, ConfigFileName) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no %s found in %s or any parent directory", ConfigFileName, abs)
}

// FindConfig returns the path of strata.toml for startDir.
func FindConfig(startDir string) (string, error) {
	root, err := FindRoot(startDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ConfigFileName), nil
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
