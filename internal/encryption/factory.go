package encryption

import (
	"fmt"

	"worktrack/internal/archive"
	"worktrack/internal/config"
)

// NewEncryptorFromConfig creates an archive Encryptor based on the configured type.
func NewEncryptorFromConfig(cfg config.ArchiveConfig) (archive.Encryptor, error) {
	switch cfg.Encryption {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Encryption)
	}
}
