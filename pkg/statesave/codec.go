package statesave

import (
	"encoding/binary"
	"fmt"
)

// sectionMagic follows every section's 2-byte tag.
var sectionMagic = [2]byte{0xce, 0x01}

// stateMagic follows the file envelope's four zero bytes.
var stateMagic = [4]byte{0x1f, 0x1b, 0xed, 0x15}

// Section tags, little-endian on the wire.
const (
	tagNospamKeys uint16 = 0x0001
	tagDhtState   uint16 = 0x0002
	tagFriends    uint16 = 0x0003
	tagName       uint16 = 0x0004
	tagStatusMsg  uint16 = 0x0005
	tagUserStatus uint16 = 0x0006
	tagTcpRelays  uint16 = 0x000a
	tagPathNodes  uint16 = 0x000b
	tagEof        uint16 = 0x00ff
)

// Section is satisfied by every one of the nine state-format variants.
// Go has no closed sum type, so a State is a []Section rather than an
// enum; Tag identifies which variant a Section is without a type switch
// at every call site.
type Section interface {
	Tag() uint16
	encodePayload() []byte
}

// encodeSection writes the full framed section: length prefix, tag,
// magic, and payload. length counts only the payload, never the tag or
// magic that precede it on the wire.
func encodeSection(s Section) []byte {
	payload := s.encodePayload()
	buf := make([]byte, 4+2+2+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint16(buf[4:6], s.Tag())
	copy(buf[6:8], sectionMagic[:])
	copy(buf[8:], payload)
	return buf
}

// decodeSectionHeader reads the u32 length prefix, then the length+4
// bytes of tag+magic+payload that follow it. It checks the magic and
// returns the tag, the payload slice (length bytes) for the
// variant-specific decoder, and the number of bytes consumed from data
// including the 4-byte length prefix itself.
func decodeSectionHeader(data []byte) (tag uint16, body []byte, consumed int, err error) {
	if len(data) < 4 {
		return 0, nil, 0, ErrIncomplete
	}
	length := binary.LittleEndian.Uint32(data[0:4])
	bodyLen := int(length) + 4
	if len(data[4:]) < bodyLen {
		return 0, nil, 0, ErrIncomplete
	}
	body = data[4 : 4+bodyLen]
	if len(body) < 4 {
		return 0, nil, 0, ErrIncomplete
	}
	tag = binary.LittleEndian.Uint16(body[0:2])
	if [2]byte{body[2], body[3]} != sectionMagic {
		return 0, nil, 0, fmt.Errorf("%w: section 0x%04x", ErrBadMagic, tag)
	}
	return tag, body[4:], 4 + bodyLen, nil
}

// decodeSection dispatches on tag to the variant-specific parser and
// returns the decoded Section plus total bytes consumed from data
// (including the length prefix).
func decodeSection(data []byte) (Section, int, error) {
	tag, payload, consumed, err := decodeSectionHeader(data)
	if err != nil {
		return nil, 0, err
	}
	var sec Section
	switch tag {
	case tagNospamKeys:
		sec, err = decodeNospamKeysPayload(payload)
	case tagDhtState:
		sec, err = decodeDhtStatePayload(payload)
	case tagFriends:
		sec, err = decodeFriendsPayload(payload)
	case tagName:
		sec = Name(append([]byte(nil), payload...))
	case tagStatusMsg:
		sec = StatusMsg(append([]byte(nil), payload...))
	case tagUserStatus:
		sec, err = decodeUserStatusPayload(payload)
	case tagTcpRelays:
		sec, err = decodeTcpRelaysPayload(payload)
	case tagPathNodes:
		sec, err = decodePathNodesPayload(payload)
	case tagEof:
		sec = Eof{}
	default:
		return nil, 0, &DecodeError{Tag: tag, Err: ErrBadTag}
	}
	if err != nil {
		return nil, 0, &DecodeError{Tag: tag, Err: err}
	}
	return sec, consumed, nil
}

// State is the full contents of a Tox save file: the file envelope plus
// an ordered, non-deduplicated sequence of sections.
type State struct {
	Sections []Section
}

// Encode serializes the file envelope and every section in order.
func (st *State) Encode() []byte {
	out := append([]byte{0, 0, 0, 0}, stateMagic[:]...)
	for _, s := range st.Sections {
		out = append(out, encodeSection(s)...)
	}
	return out
}

// Decode parses a full state file: four zero bytes, the state magic,
// then zero or more sections. A trailing Eof section is conventional but
// not required; decoding stops cleanly at end of input either way.
func Decode(data []byte) (*State, error) {
	if len(data) < 8 {
		return nil, ErrIncomplete
	}
	for _, b := range data[0:4] {
		if b != 0 {
			return nil, fmt.Errorf("%w: file envelope", ErrBadMagic)
		}
	}
	if [4]byte{data[4], data[5], data[6], data[7]} != stateMagic {
		return nil, fmt.Errorf("%w: file envelope", ErrBadMagic)
	}

	var st State
	rest := data[8:]
	for len(rest) > 0 {
		sec, consumed, err := decodeSection(rest)
		if err != nil {
			return nil, err
		}
		st.Sections = append(st.Sections, sec)
		rest = rest[consumed:]
	}
	return &st, nil
}
