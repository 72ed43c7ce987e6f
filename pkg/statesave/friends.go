package statesave

import (
	"encoding/binary"
	"fmt"

	"github.com/shurlinet/toxrelay/pkg/relay"
)

// RequestMsgLen is the zero-padded width of FriendState's embedded
// friend-request message field.
const RequestMsgLen = 1024

// FriendStateBytes is the fixed encoded width of a single FriendState
// record. Layout (offsets in bytes):
//
//	0    1    status
//	1    32   pk
//	33   1024 friend request message, zero-padded
//	1057 1    padding
//	1058 2    fr_msg_len, big-endian, <= 1024
//	1060 128  name, zero-padded
//	1188 2    name_len, big-endian, <= 128
//	1190 1007 status message, zero-padded
//	2197 1    padding
//	2198 2    status_msg_len, big-endian, <= 1007
//	2200 1    user_status
//	2201 3    padding
//	2204 4    nospam
//	2208 8    last_seen, little-endian u64
//
// last_seen's endianness deliberately does not match the big-endian
// length fields around it; this is the reference format's own quirk and
// is preserved exactly rather than normalized.
const FriendStateBytes = 1 + relay.PublicKeySize +
	RequestMsgLen + 1 + 2 +
	NameLen + 2 +
	StatusMsgLen + 1 + 2 +
	1 + 3 +
	NospamBytes +
	8

// FriendState is a single record within the 0x0003 Friends section.
type FriendState struct {
	Status     FriendStatus
	Pk         relay.PublicKey
	FrMsg      []byte
	Name       Name
	StatusMsg  StatusMsg
	UserStatus UserWorkingStatus
	Nospam     NoSpam
	LastSeen   uint64
}

func (f FriendState) encode() []byte {
	buf := make([]byte, FriendStateBytes)
	off := 0
	buf[off] = byte(f.Status)
	off++
	off += copy(buf[off:], f.Pk[:])

	copy(buf[off:off+RequestMsgLen], f.FrMsg)
	off += RequestMsgLen
	off++ // padding
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(f.FrMsg)))
	off += 2

	copy(buf[off:off+NameLen], f.Name)
	off += NameLen
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(f.Name)))
	off += 2

	copy(buf[off:off+StatusMsgLen], f.StatusMsg)
	off += StatusMsgLen
	off++ // padding
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(f.StatusMsg)))
	off += 2

	buf[off] = byte(f.UserStatus)
	off++
	off += 3 // padding

	off += copy(buf[off:], f.Nospam[:])

	binary.LittleEndian.PutUint64(buf[off:off+8], f.LastSeen)
	off += 8

	return buf
}

func decodeFriendState(data []byte) (FriendState, error) {
	if len(data) < FriendStateBytes {
		return FriendState{}, fmt.Errorf("%w: want %d bytes, got %d", ErrIncomplete, FriendStateBytes, len(data))
	}
	var f FriendState
	off := 0

	status, err := decodeFriendStatus(data[off])
	if err != nil {
		return FriendState{}, err
	}
	f.Status = status
	off++

	copy(f.Pk[:], data[off:off+relay.PublicKeySize])
	off += relay.PublicKeySize

	frMsgRaw := data[off : off+RequestMsgLen]
	off += RequestMsgLen
	off++ // padding
	frMsgLen := binary.BigEndian.Uint16(data[off : off+2])
	off += 2
	if frMsgLen > RequestMsgLen {
		return FriendState{}, fmt.Errorf("statesave: fr_msg_len %d exceeds %d", frMsgLen, RequestMsgLen)
	}
	f.FrMsg = append([]byte(nil), frMsgRaw[:frMsgLen]...)

	nameRaw := data[off : off+NameLen]
	off += NameLen
	nameLen := binary.BigEndian.Uint16(data[off : off+2])
	off += 2
	if nameLen > NameLen {
		return FriendState{}, fmt.Errorf("statesave: name_len %d exceeds %d", nameLen, NameLen)
	}
	f.Name = Name(append([]byte(nil), nameRaw[:nameLen]...))

	statusMsgRaw := data[off : off+StatusMsgLen]
	off += StatusMsgLen
	off++ // padding
	statusMsgLen := binary.BigEndian.Uint16(data[off : off+2])
	off += 2
	if statusMsgLen > StatusMsgLen {
		return FriendState{}, fmt.Errorf("statesave: status_msg_len %d exceeds %d", statusMsgLen, StatusMsgLen)
	}
	f.StatusMsg = StatusMsg(append([]byte(nil), statusMsgRaw[:statusMsgLen]...))

	userStatus, err := decodeUserWorkingStatus(data[off])
	if err != nil {
		return FriendState{}, err
	}
	f.UserStatus = userStatus
	off++
	off += 3 // padding

	copy(f.Nospam[:], data[off:off+NospamBytes])
	off += NospamBytes

	f.LastSeen = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8

	return f, nil
}

// Friends is the 0x0003 section: a concatenation of fixed-width
// FriendState records.
type Friends struct {
	Friends []FriendState
}

func (Friends) Tag() uint16 { return tagFriends }

func (fs Friends) encodePayload() []byte {
	buf := make([]byte, 0, len(fs.Friends)*FriendStateBytes)
	for _, f := range fs.Friends {
		buf = append(buf, f.encode()...)
	}
	return buf
}

func decodeFriendsPayload(data []byte) (Friends, error) {
	if len(data)%FriendStateBytes != 0 {
		return Friends{}, fmt.Errorf("statesave: friends payload %d not a multiple of %d", len(data), FriendStateBytes)
	}
	var out Friends
	for len(data) > 0 {
		f, err := decodeFriendState(data[:FriendStateBytes])
		if err != nil {
			return Friends{}, err
		}
		out.Friends = append(out.Friends, f)
		data = data[FriendStateBytes:]
	}
	return out, nil
}
