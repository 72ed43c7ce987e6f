// Package relay implements the core of a Tox TCP relay server: per-client
// link tables, cross-client notifications, keepalive eviction, and onion
// request tunneling.
package relay

import "encoding/hex"

// PublicKeySize is the length in bytes of a Tox public key.
const PublicKeySize = 32

// PublicKey uniquely identifies a client. It is an opaque 32-byte value;
// key generation and signing live outside this package.
type PublicKey [PublicKeySize]byte

// String renders a truncated hex form suitable for log lines, matching
// the truncated-identifier convention used elsewhere in this codebase
// (e.g. "12d3koo...").
func (pk PublicKey) String() string {
	s := hex.EncodeToString(pk[:])
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}

// SecretKeySize is the length in bytes of a Tox secret key.
const SecretKeySize = 32

// SecretKey is an opaque 32-byte value persisted only by the state-format
// codec; this package never inspects or uses it cryptographically.
type SecretKey [SecretKeySize]byte
