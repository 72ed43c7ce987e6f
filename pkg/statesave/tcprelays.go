package statesave

import (
	"fmt"
	"net/netip"

	"github.com/shurlinet/toxrelay/pkg/relay"
)

// Protocol distinguishes a relay's transport, encoded into OldIpPort's
// leading type byte alongside the address family.
type Protocol uint8

const (
	ProtocolUDP Protocol = iota
	ProtocolTCP
)

const (
	ipTypeUDPv4 = 2
	ipTypeUDPv6 = 10
	ipTypeTCPv4 = 130
	ipTypeTCPv6 = 138
)

// OldIpPort is the on-disk address form used inside TcpRelays/PathNodes:
// a type byte selecting protocol and address family, the raw address
// bytes, and a big-endian port. This is a distinct wire shape from
// DhtState's PackedNode, which has no protocol byte since DHT is always
// UDP.
type OldIpPort struct {
	Protocol Protocol
	Addr     netip.Addr
	Port     uint16
}

func (p OldIpPort) ipType() byte {
	v4 := p.Addr.Is4()
	switch {
	case v4 && p.Protocol == ProtocolUDP:
		return ipTypeUDPv4
	case !v4 && p.Protocol == ProtocolUDP:
		return ipTypeUDPv6
	case v4 && p.Protocol == ProtocolTCP:
		return ipTypeTCPv4
	default:
		return ipTypeTCPv6
	}
}

func (p OldIpPort) encode() []byte {
	addrBytes := p.Addr.As16()
	var raw []byte
	if p.Addr.Is4() {
		v4 := p.Addr.As4()
		raw = v4[:]
	} else {
		raw = addrBytes[:]
	}
	buf := make([]byte, 0, 1+len(raw)+2)
	buf = append(buf, p.ipType())
	buf = append(buf, raw...)
	buf = append(buf, byte(p.Port>>8), byte(p.Port))
	return buf
}

func decodeOldIpPort(data []byte) (OldIpPort, int, error) {
	if len(data) < 1 {
		return OldIpPort{}, 0, ErrIncomplete
	}
	var proto Protocol
	var addrLen int
	switch data[0] {
	case ipTypeUDPv4:
		proto, addrLen = ProtocolUDP, 4
	case ipTypeUDPv6:
		proto, addrLen = ProtocolUDP, 16
	case ipTypeTCPv4:
		proto, addrLen = ProtocolTCP, 4
	case ipTypeTCPv6:
		proto, addrLen = ProtocolTCP, 16
	default:
		return OldIpPort{}, 0, fmt.Errorf("statesave: invalid ip type byte 0x%02x", data[0])
	}
	need := 1 + addrLen + 2
	if len(data) < need {
		return OldIpPort{}, 0, ErrIncomplete
	}
	var addr netip.Addr
	if addrLen == 4 {
		addr = netip.AddrFrom4([4]byte(data[1:5]))
	} else {
		addr = netip.AddrFrom16([16]byte(data[1:17]))
	}
	port := uint16(data[need-2])<<8 | uint16(data[need-1])
	return OldIpPort{Protocol: proto, Addr: addr, Port: port}, need, nil
}

// TcpUdpPackedNode is the on-disk node form for TcpRelays/PathNodes: the
// address comes first on the wire, then the public key.
type TcpUdpPackedNode struct {
	IPPort OldIpPort
	Pk     relay.PublicKey
}

func (n TcpUdpPackedNode) encode() []byte {
	buf := n.IPPort.encode()
	return append(buf, n.Pk[:]...)
}

func decodeTcpUdpPackedNode(data []byte) (TcpUdpPackedNode, int, error) {
	ipPort, consumed, err := decodeOldIpPort(data)
	if err != nil {
		return TcpUdpPackedNode{}, 0, err
	}
	if len(data) < consumed+relay.PublicKeySize {
		return TcpUdpPackedNode{}, 0, ErrIncomplete
	}
	var pk relay.PublicKey
	copy(pk[:], data[consumed:consumed+relay.PublicKeySize])
	return TcpUdpPackedNode{IPPort: ipPort, Pk: pk}, consumed + relay.PublicKeySize, nil
}

func decodeManyTcpUdpPackedNodes(data []byte) ([]TcpUdpPackedNode, error) {
	var nodes []TcpUdpPackedNode
	for len(data) > 0 {
		n, consumed, err := decodeTcpUdpPackedNode(data)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		data = data[consumed:]
	}
	return nodes, nil
}

// TcpRelays is the 0x000a section: a list of known TCP relay nodes.
type TcpRelays struct {
	Nodes []TcpUdpPackedNode
}

func (TcpRelays) Tag() uint16 { return tagTcpRelays }

func (t TcpRelays) encodePayload() []byte {
	var buf []byte
	for _, n := range t.Nodes {
		buf = append(buf, n.encode()...)
	}
	return buf
}

func decodeTcpRelaysPayload(data []byte) (TcpRelays, error) {
	nodes, err := decodeManyTcpUdpPackedNodes(data)
	if err != nil {
		return TcpRelays{}, err
	}
	return TcpRelays{Nodes: nodes}, nil
}

// PathNodes is the 0x000b section: a list of onion path nodes, same wire
// shape as TcpRelays.
type PathNodes struct {
	Nodes []TcpUdpPackedNode
}

func (PathNodes) Tag() uint16 { return tagPathNodes }

func (p PathNodes) encodePayload() []byte {
	var buf []byte
	for _, n := range p.Nodes {
		buf = append(buf, n.encode()...)
	}
	return buf
}

func decodePathNodesPayload(data []byte) (PathNodes, error) {
	nodes, err := decodeManyTcpUdpPackedNodes(data)
	if err != nil {
		return PathNodes{}, err
	}
	return PathNodes{Nodes: nodes}, nil
}
