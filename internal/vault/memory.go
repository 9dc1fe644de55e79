package vault

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"sync"

	"oswl-go/internal/oswl"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It keeps all reports in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name    string
	reports map[string][]byte // report name -> content
	mu      sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:    name,
		reports: make(map[string][]byte),
	}
}

// PutReport stores a report, replacing any report with the same name.
func (m *MemoryVault) PutReport(name string, r io.Reader, size int64) error {
	if err := validateName(name); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.reports[name] = data
	return nil
}

// GetReport retrieves a report by name.
func (m *MemoryVault) GetReport(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.reports[name]
	if !ok {
		return fmt.Errorf("%w: %s", oswl.ErrReportNotFound, name)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// ListReports returns all report names in lexical order.
func (m *MemoryVault) ListReports() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.reports))
	for name := range m.reports {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements oswl.Vault interface
var _ oswl.Vault = (*MemoryVault)(nil)
