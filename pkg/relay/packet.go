package relay

import "net/netip"

// Packet is the set of wire packet variants the relay consumes and
// produces. Wire encoding/decoding is a framing-layer concern external to
// this package; handle_packet receives already-decoded values.
type Packet interface {
	packetKind() string
}

// RouteRequest asks the relay to link the sender to peer Pk.
type RouteRequest struct {
	Pk PublicKey
}

func (RouteRequest) packetKind() string { return "RouteRequest" }

// RouteResponse answers a RouteRequest. ConnectionID is a wire id in
// [16,255], or the sentinel 0 meaning "no slot".
type RouteResponse struct {
	Pk           PublicKey
	ConnectionID uint8
}

func (RouteResponse) packetKind() string { return "RouteResponse" }

// ConnectNotification tells a client that both sides of a link are now
// online, carrying the peer's wire connection id for this side.
type ConnectNotification struct {
	ConnectionID uint8
}

func (ConnectNotification) packetKind() string { return "ConnectNotification" }

// DisconnectNotification tells a client that the peer at ConnectionID has
// gone away.
type DisconnectNotification struct {
	ConnectionID uint8
}

func (DisconnectNotification) packetKind() string { return "DisconnectNotification" }

// PingRequest carries a nonzero keepalive ping id.
type PingRequest struct {
	PingID uint64
}

func (PingRequest) packetKind() string { return "PingRequest" }

// PongResponse answers a PingRequest with the same ping id.
type PongResponse struct {
	PingID uint64
}

func (PongResponse) packetKind() string { return "PongResponse" }

// OobSend asks the relay to deliver data to DestinationPk out-of-band,
// i.e. without an established link.
type OobSend struct {
	DestinationPk PublicKey
	Data          []byte
}

func (OobSend) packetKind() string { return "OobSend" }

// OobReceive delivers out-of-band data along with its true sender.
type OobReceive struct {
	SenderPk PublicKey
	Data     []byte
}

func (OobReceive) packetKind() string { return "OobReceive" }

// Data carries payload over an established link, identified by wire
// connection id.
type Data struct {
	ConnectionID uint8
	Payload      []byte
}

func (Data) packetKind() string { return "Data" }

// OnionRequest is tunneled to the UDP onion subsystem unchanged, along
// with the sender's observed socket address.
type OnionRequest struct {
	Nonce       [24]byte
	IPPort      netip.AddrPort
	TemporaryPk PublicKey
	Payload     []byte
}

func (OnionRequest) packetKind() string { return "OnionRequest" }

// OnionResponse carries a reply from the UDP onion subsystem back to the
// originating client.
type OnionResponse struct {
	Payload []byte
}

func (OnionResponse) packetKind() string { return "OnionResponse" }

// OobMaxLen is the maximum OobSend payload size.
const OobMaxLen = 1024

// RouteSentinelNoSlot is the ConnectionID value meaning "not linked" in a
// RouteResponse (self-route, or no space left in the link table).
const RouteSentinelNoSlot = 0
