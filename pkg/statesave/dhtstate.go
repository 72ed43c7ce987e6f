package statesave

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/shurlinet/toxrelay/pkg/relay"
)

// dhtMagical is DhtState's leading magic u32, little-endian.
const dhtMagical uint32 = 0x0159000d

// dhtSectionType is DhtState's fixed section-type field, little-endian.
const dhtSectionType uint16 = 0x0004

// dht2ndMagical is DhtState's second magic u16, little-endian.
const dht2ndMagical uint16 = 0x11ce

// dhtStateHeaderBytes is the DhtState payload's fixed header width,
// preceding the concatenated PackedNodes: magic(4) + nodes_bytes(4) +
// section_type(2) + 2nd magic(2).
const dhtStateHeaderBytes = 12

// DHTStateBufferSize bounds how many close nodes a single DhtState
// section can realistically carry: (pk(32)+max IPv6 packed node
// overhead(19)) * 8 close nodes per bucket * 255 buckets. Mirrored from
// the reference daemon state's sizing constant. The encoder and decoder
// in this package do not use it: encode buffers grow as needed, and
// larger input is not rejected.
const DHTStateBufferSize = (relay.PublicKeySize + 19) * 8 * 255

// PackedNode is the DHT's compact on-wire/on-disk encoding of a
// (PublicKey, SocketAddr) pair. Unlike TcpUdpPackedNode, DHT traffic is
// always UDP, so there is no protocol bit in the type byte.
type PackedNode struct {
	Pk    relay.PublicKey
	Saddr netip.AddrPort
}

func (n PackedNode) encode() []byte {
	addr := n.Saddr.Addr()
	var ipType byte
	var raw []byte
	if addr.Is4() {
		ipType = ipTypeUDPv4
		v4 := addr.As4()
		raw = v4[:]
	} else {
		ipType = ipTypeUDPv6
		v6 := addr.As16()
		raw = v6[:]
	}
	buf := make([]byte, 0, 1+len(raw)+2+relay.PublicKeySize)
	buf = append(buf, ipType)
	buf = append(buf, raw...)
	port := n.Saddr.Port()
	buf = append(buf, byte(port>>8), byte(port))
	buf = append(buf, n.Pk[:]...)
	return buf
}

func decodePackedNode(data []byte) (PackedNode, int, error) {
	if len(data) < 1 {
		return PackedNode{}, 0, ErrIncomplete
	}
	var addrLen int
	switch data[0] {
	case ipTypeUDPv4:
		addrLen = 4
	case ipTypeUDPv6:
		addrLen = 16
	default:
		return PackedNode{}, 0, fmt.Errorf("statesave: invalid dht ip type byte 0x%02x", data[0])
	}
	need := 1 + addrLen + 2 + relay.PublicKeySize
	if len(data) < need {
		return PackedNode{}, 0, ErrIncomplete
	}
	var addr netip.Addr
	if addrLen == 4 {
		addr = netip.AddrFrom4([4]byte(data[1:5]))
	} else {
		addr = netip.AddrFrom16([16]byte(data[1:17]))
	}
	portOff := 1 + addrLen
	port := uint16(data[portOff])<<8 | uint16(data[portOff+1])
	var pk relay.PublicKey
	copy(pk[:], data[portOff+2:need])
	return PackedNode{Pk: pk, Saddr: netip.AddrPortFrom(addr, port)}, need, nil
}

// DhtState is the 0x0002 section: the node's known DHT close nodes.
type DhtState struct {
	Nodes []PackedNode
}

func (DhtState) Tag() uint16 { return tagDhtState }

// EncodeDhtStateSection encodes d as tag(2)+magic(2)+payload, the form
// the daemon-state bridge persists directly without the outer State
// stream's additional u32 length prefix.
func EncodeDhtStateSection(d DhtState) []byte {
	buf := make([]byte, 4)
	buf[0], buf[1] = byte(tagDhtState), byte(tagDhtState>>8)
	copy(buf[2:4], sectionMagic[:])
	return append(buf, d.encodePayload()...)
}

// DecodeDhtStateSection decodes a tag(2)+magic(2)+payload buffer
// produced by EncodeDhtStateSection (the daemon-state bridge's own
// on-disk form, distinct from a length-prefixed section inside a full
// State stream).
func DecodeDhtStateSection(data []byte) (DhtState, error) {
	if len(data) < 4 {
		return DhtState{}, ErrIncomplete
	}
	tag := uint16(data[0]) | uint16(data[1])<<8
	if tag != tagDhtState {
		return DhtState{}, ErrBadTag
	}
	if [2]byte{data[2], data[3]} != sectionMagic {
		return DhtState{}, ErrBadMagic
	}
	return decodeDhtStatePayload(data[4:])
}

func (d DhtState) encodePayload() []byte {
	var nodeBytes []byte
	for _, n := range d.Nodes {
		nodeBytes = append(nodeBytes, n.encode()...)
	}
	buf := make([]byte, dhtStateHeaderBytes, dhtStateHeaderBytes+len(nodeBytes))
	binary.LittleEndian.PutUint32(buf[0:4], dhtMagical)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(nodeBytes)))
	binary.LittleEndian.PutUint16(buf[8:10], dhtSectionType)
	binary.LittleEndian.PutUint16(buf[10:12], dht2ndMagical)
	return append(buf, nodeBytes...)
}

func decodeDhtStatePayload(data []byte) (DhtState, error) {
	if len(data) < dhtStateHeaderBytes {
		return DhtState{}, ErrIncomplete
	}
	if binary.LittleEndian.Uint32(data[0:4]) != dhtMagical {
		return DhtState{}, fmt.Errorf("%w: dht magical", ErrBadMagic)
	}
	nodesBytes := binary.LittleEndian.Uint32(data[4:8])
	if binary.LittleEndian.Uint16(data[8:10]) != dhtSectionType {
		return DhtState{}, fmt.Errorf("%w: dht section type", ErrBadMagic)
	}
	if binary.LittleEndian.Uint16(data[10:12]) != dht2ndMagical {
		return DhtState{}, fmt.Errorf("%w: dht 2nd magical", ErrBadMagic)
	}
	rest := data[dhtStateHeaderBytes:]
	if uint32(len(rest)) < nodesBytes {
		return DhtState{}, ErrIncomplete
	}
	nodeData := rest[:nodesBytes]

	var nodes []PackedNode
	for len(nodeData) > 0 {
		n, consumed, err := decodePackedNode(nodeData)
		if err != nil {
			return DhtState{}, err
		}
		nodes = append(nodes, n)
		nodeData = nodeData[consumed:]
	}
	return DhtState{Nodes: nodes}, nil
}
