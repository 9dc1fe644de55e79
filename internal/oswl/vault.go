package oswl

import "io"

// Vault is where exported statistics reports are kept.
// All operations stream through io.Reader/io.Writer.
type Vault interface {
	// PutReport stores a report under name, overwriting any previous one.
	// size is the number of bytes that will be read from r.
	PutReport(name string, r io.Reader, size int64) error

	// GetReport retrieves a report by name and writes it to w.
	GetReport(name string, w io.Writer) error

	// ListReports returns the names of all stored reports in lexical order.
	ListReports() ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
