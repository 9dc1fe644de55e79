package encryption

import (
	"fmt"

	"oswl-go/internal/config"
	"oswl-go/internal/oswl"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" returns a nil Encryptor: reports are stored as plain JSON.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (oswl.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
