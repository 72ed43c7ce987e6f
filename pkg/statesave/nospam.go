package statesave

import (
	"fmt"

	"github.com/shurlinet/toxrelay/pkg/relay"
)

// NospamBytes is the width of the NoSpam value embedded in NospamKeys and
// every FriendState.
const NospamBytes = 4

// NoSpam scopes friend-request authority; it is part of the user-facing
// Tox ID alongside the public key.
type NoSpam [NospamBytes]byte

// NospamKeysBytes is the encoded payload width of a NospamKeys section.
const NospamKeysBytes = NospamBytes + relay.PublicKeySize + relay.SecretKeySize

// NospamKeys is the 0x0001 section: the node's own nospam value and
// identity keypair.
type NospamKeys struct {
	Nospam NoSpam
	Pk     relay.PublicKey
	Sk     relay.SecretKey
}

// Tag implements Section.
func (NospamKeys) Tag() uint16 { return tagNospamKeys }

func (k NospamKeys) encodePayload() []byte {
	buf := make([]byte, 0, NospamKeysBytes)
	buf = append(buf, k.Nospam[:]...)
	buf = append(buf, k.Pk[:]...)
	buf = append(buf, k.Sk[:]...)
	return buf
}

func decodeNospamKeysPayload(data []byte) (NospamKeys, error) {
	if len(data) < NospamKeysBytes {
		return NospamKeys{}, fmt.Errorf("%w: want %d bytes, got %d", ErrIncomplete, NospamKeysBytes, len(data))
	}
	var k NospamKeys
	copy(k.Nospam[:], data[0:4])
	copy(k.Pk[:], data[4:4+relay.PublicKeySize])
	copy(k.Sk[:], data[4+relay.PublicKeySize:NospamKeysBytes])
	return k, nil
}
