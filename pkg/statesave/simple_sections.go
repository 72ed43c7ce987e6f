package statesave

import "fmt"

// Name is the 0x0004 section: the node's own display name, raw bytes
// with no internal length (the section's framing length is the length).
// NameLen bounds the embedded copy inside FriendState only; a standalone
// Name section is not capped.
type Name []byte

const NameLen = 128

func (Name) Tag() uint16 { return tagName }
func (n Name) encodePayload() []byte { return []byte(n) }

// StatusMsg is the 0x0005 section: the node's own status message, raw
// bytes with no internal length.
type StatusMsg []byte

const StatusMsgLen = 1007

func (StatusMsg) Tag() uint16 { return tagStatusMsg }
func (s StatusMsg) encodePayload() []byte { return []byte(s) }

// UserWorkingStatus is the tri-state presence value shared by the
// UserStatus section and each FriendState record.
type UserWorkingStatus uint8

const (
	UserStatusOnline UserWorkingStatus = 0
	UserStatusAway   UserWorkingStatus = 1
	UserStatusBusy   UserWorkingStatus = 2
)

func decodeUserWorkingStatus(b byte) (UserWorkingStatus, error) {
	switch UserWorkingStatus(b) {
	case UserStatusOnline, UserStatusAway, UserStatusBusy:
		return UserWorkingStatus(b), nil
	default:
		return 0, fmt.Errorf("statesave: invalid user status byte 0x%02x", b)
	}
}

// UserStatus is the 0x0006 section: a single byte, the node's own
// presence.
type UserStatus struct {
	Status UserWorkingStatus
}

const UserStatusLen = 1

func (UserStatus) Tag() uint16 { return tagUserStatus }
func (u UserStatus) encodePayload() []byte {
	return []byte{byte(u.Status)}
}

func decodeUserStatusPayload(data []byte) (UserStatus, error) {
	if len(data) < UserStatusLen {
		return UserStatus{}, ErrIncomplete
	}
	st, err := decodeUserWorkingStatus(data[0])
	if err != nil {
		return UserStatus{}, err
	}
	return UserStatus{Status: st}, nil
}

// FriendStatus classifies a friend record's relationship state.
type FriendStatus uint8

const (
	FriendNotFriend FriendStatus = 0
	FriendAdded     FriendStatus = 1
	FriendRequested FriendStatus = 2
	FriendConfirmed FriendStatus = 3
	FriendOnline    FriendStatus = 4
)

func decodeFriendStatus(b byte) (FriendStatus, error) {
	switch FriendStatus(b) {
	case FriendNotFriend, FriendAdded, FriendRequested, FriendConfirmed, FriendOnline:
		return FriendStatus(b), nil
	default:
		return 0, fmt.Errorf("statesave: invalid friend status byte 0x%02x", b)
	}
}

// Eof is the 0x00ff section: empty payload, conventionally terminating
// the section stream. The decoder does not require it; a clean end of
// input after the last section is equally valid.
type Eof struct{}

func (Eof) Tag() uint16 { return tagEof }
func (Eof) encodePayload() []byte { return nil }
