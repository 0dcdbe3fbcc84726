package encryption

import (
	"fmt"

	"scenedeck/internal/config"
	"scenedeck/internal/deck"
)

// NewEncryptorFromConfig creates the Encryptor selected by cfg.Type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (deck.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewHeaderEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
