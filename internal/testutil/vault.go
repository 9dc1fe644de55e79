package testutil

import (
	"oswl-go/internal/oswl"
	"oswl-go/internal/vault"
)

// NewTestVault creates a new in-memory report vault for testing.
func NewTestVault() oswl.Vault {
	return vault.NewMemoryVault("test-vault")
}
