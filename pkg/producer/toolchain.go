package producer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

const toolchainStagingPattern = ".strata-toolchain-*"

// Toolchain is an external build tool distributed as a zip archive and
// cached on disk after the first download.
type Toolchain struct {
	URL        string // zip archive to download
	Dir        string // install directory
	Executable string // executable path relative to Dir, e.g. "bin/gradle"

	Client *http.Client
	Logger *slog.Logger
}

// ExecutablePath returns where the executable lives once installed.
func (t *Toolchain) ExecutablePath() (string, error) {
	dir, err := filepath.Abs(t.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve toolchain directory: %w", err)
	}
	return filepath.Join(dir, filepath.FromSlash(t.Executable)), nil
}

// Ensure returns the executable, downloading and extracting the toolchain
// first if it is not installed yet.
func (t *Toolchain) Ensure(ctx context.Context) (string, error) {
	exe, err := t.ExecutablePath()
	if err != nil {
		return "", err
	}
	if fileExists(exe) {
		if t.Logger != nil {
			t.Logger.Debug("found toolchain", "executable", exe)
		}
		return exe, nil
	}
	if t.URL == "" {
		return "", fmt.Errorf("toolchain executable %s is missing and no download URL is configured", exe)
	}

	dir, err := filepath.Abs(t.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve toolchain directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return "", fmt.Errorf("failed to create toolchain directory: %w", err)
	}

	if t.Logger != nil {
		t.Logger.Info("downloading toolchain", "url", t.URL, "dir", dir)
	}
	archive, size, err := t.download(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	// Unpacked next to dir and renamed into place, so dir only ever holds a
	// complete install.
	staging, err := os.MkdirTemp(filepath.Dir(dir), toolchainStagingPattern)
	if err != nil {
		return "", fmt.Errorf("failed to create toolchain staging directory: %w", err)
	}
	defer os.RemoveAll(staging)
	if err := os.Chmod(staging, 0755); err != nil {
		return "", fmt.Errorf("failed to create toolchain staging directory: %w", err)
	}

	if err := extract(archive, size, staging); err != nil {
		return "", err
	}
	rel, err := filepath.Rel(dir, exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve toolchain executable: %w", err)
	}
	staged := filepath.Join(staging, rel)
	if !fileExists(staged) {
		// Distributions usually wrap everything in one top-level directory.
		if err := hoist(staging); err != nil {
			return "", err
		}
	}
	if !fileExists(staged) {
		return "", fmt.Errorf("toolchain executable not found after extraction: %s", exe)
	}

	// Whatever sits in dir lacks the executable: a leftover of an older layout.
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear toolchain directory: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return "", fmt.Errorf("failed to install toolchain: %w", err)
	}
	return exe, nil
}

// download streams the archive into a temporary file.
func (t *Toolchain) download(ctx context.Context) (*os.File, int64, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to start toolchain download: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to start toolchain download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, fmt.Errorf("failed to download toolchain from %s: %s", t.URL, resp.Status)
	}

	f, err := os.CreateTemp("", "strata-toolchain-*.zip")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create temporary file for toolchain: %w", err)
	}
	size, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, fmt.Errorf("failed to download toolchain: %w", err)
	}
	return f, size, nil
}

// extract unpacks a zip archive into dir. Entries escaping dir are rejected.
func extract(r io.ReaderAt, size int64, dir string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("failed to open toolchain archive: %w", err)
	}

	root := filepath.Clean(dir) + string(os.PathSeparator)
	for _, f := range zr.File {
		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target+string(os.PathSeparator), root) {
			return fmt.Errorf("toolchain archive entry %q escapes the install directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to extract %s: %w", f.Name, err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			return fmt.Errorf("toolchain archive entry %q is not a regular file", f.Name)
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}

// hoist moves the content of the single directory inside dir up into dir.
func hoist(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read toolchain directory: %w", err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		return fmt.Errorf("unexpected toolchain directory contents in %s: %v", dir, names)
	}

	inner := filepath.Join(dir, entries[0].Name())
	children, err := os.ReadDir(inner)
	if err != nil {
		return fmt.Errorf("failed to read toolchain subdirectory: %w", err)
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(inner, c.Name()), filepath.Join(dir, c.Name())); err != nil {
			return fmt.Errorf("failed to move toolchain entry %s: %w", c.Name(), err)
		}
	}
	if err := os.Remove(inner); err != nil {
		return fmt.Errorf("failed to remove toolchain subdirectory: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
