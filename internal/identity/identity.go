// Package identity loads or creates the relay's own public key file. Key
// derivation (the actual Tox keypair/handshake crypto) is an external
// collaborator; this package only persists and reloads the opaque 32-byte
// value relay.PublicKey represents.
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/shurlinet/toxrelay/pkg/relay"
)

// LoadOrCreate loads an existing public key from path, or generates and
// persists a fresh random one if the file does not exist.
func LoadOrCreate(path string) (relay.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != relay.PublicKeySize {
			return relay.PublicKey{}, fmt.Errorf("identity key %s has length %d, want %d", path, len(data), relay.PublicKeySize)
		}
		var pk relay.PublicKey
		copy(pk[:], data)
		return pk, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return relay.PublicKey{}, fmt.Errorf("failed to read identity key %s: %w", path, err)
	}

	var pk relay.PublicKey
	if _, err := rand.Read(pk[:]); err != nil {
		return relay.PublicKey{}, fmt.Errorf("failed to generate identity key: %w", err)
	}
	if err := os.WriteFile(path, pk[:], 0600); err != nil {
		return relay.PublicKey{}, fmt.Errorf("failed to save identity key to %s: %w", path, err)
	}
	return pk, nil
}
