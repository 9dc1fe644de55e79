package testutil

import (
	"oswl-go/internal/encryption"
	"oswl-go/internal/oswl"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() oswl.Encryptor {
	return encryption.NewTestEncryptor()
}
