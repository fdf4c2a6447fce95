package encryption

import (
	"fmt"

	"mediapipe/internal/config"
	"mediapipe/internal/media"
)

// PassphraseFunc supplies the passphrase that unlocks the private key. It is
// only called when the configuration needs one.
type PassphraseFunc func() (string, error)

// NewSealerFromConfig creates the Sealer for the configured encryption type.
// It returns a nil Sealer when encryption is disabled.
func NewSealerFromConfig(cfg config.EncryptionConfig, passphrase PassphraseFunc) (media.Sealer, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "test":
		return NewTestSealer(), nil
	case "age":
		keyring := NewAgeKeyring(cfg)
		if !keyring.IsConfigured() {
			return nil, fmt.Errorf("age keys not found at %s (run mediapipe keys init)", cfg.PublicKeyPath)
		}
		if passphrase == nil {
			return nil, fmt.Errorf("age encryption requires a passphrase")
		}
		p, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		return keyring.Unlock(p)
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
