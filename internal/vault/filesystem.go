package vault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"oswl-go/internal/oswl"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// Report names map directly onto paths below the root:
//
//	<root>/
//	  reports/
//	    <report id>.json       (plain reports)
//	    <report id>.json.age   (encrypted reports)
type FileSystemVault struct {
	name       string
	root       string
	reportsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	reportsDir := filepath.Join(root, strings.TrimSuffix(reportPrefix, "/"))

	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}

	return &FileSystemVault{
		name:       name,
		root:       root,
		reportsDir: reportsDir,
	}, nil
}

// PutReport stores a report, replacing any report with the same name.
func (v *FileSystemVault) PutReport(name string, r io.Reader, size int64) error {
	if err := validateName(name); err != nil {
		return err
	}
	return v.writeFile(v.path(name), r, size)
}

// GetReport retrieves a report by name and writes it to w.
func (v *FileSystemVault) GetReport(name string, w io.Writer) error {
	if err := validateName(name); err != nil {
		return err
	}

	f, err := os.Open(v.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", oswl.ErrReportNotFound, name)
		}
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	return nil
}

// ListReports returns all report names in lexical order. Leftover temp
// files from interrupted writes are skipped.
func (v *FileSystemVault) ListReports() ([]string, error) {
	var names []string
	err := filepath.WalkDir(v.reportsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	slices.Sort(names)
	return names, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.reportsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

func (v *FileSystemVault) path(name string) string {
	return filepath.Join(v.root, filepath.FromSlash(name))
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	// Temp file in the same directory so the rename stays atomic.
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements oswl.Vault interface
var _ oswl.Vault = (*FileSystemVault)(nil)
