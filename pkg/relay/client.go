package relay

import (
	"math/rand/v2"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// PingFrequency is how often a keepalive ping is due.
const PingFrequency = 30 * time.Second

// PingTimeout is the additional grace period after PingFrequency before a
// client with no pong is considered dead.
const PingTimeout = 10 * time.Second

// OutboundSink is the per-client outbound packet queue. The framing/TLS
// layer is the consumer; Send returns ErrSinkClosed once that consumer is
// gone.
type OutboundSink interface {
	Send(Packet) error
}

// ClientInfo is a read-only snapshot of a Client for status reporting. It
// never participates in packet dispatch.
type ClientInfo struct {
	Pk            PublicKey
	Addr          netip.AddrPort
	LinksInUse    int
	SinceLastPing time.Duration
	SinceLastPong time.Duration
}

// Client is the relay's per-connection state: identity, outbound queue,
// link table, and keepalive bookkeeping.
type Client struct {
	pk   PublicKey
	addr netip.AddrPort
	out  OutboundSink
	clk  clock.Clock

	links *Links

	mu           sync.Mutex
	pingID       uint64
	lastPinged   time.Time
	lastPongResp time.Time
}

// NewClient creates a Client whose keepalive timestamps start at "now" on
// clk (clk defaults to the real wall clock when nil).
func NewClient(pk PublicKey, addr netip.AddrPort, out OutboundSink, clk clock.Clock) *Client {
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &Client{
		pk:           pk,
		addr:         addr,
		out:          out,
		clk:          clk,
		links:        NewLinks(),
		lastPinged:   now,
		lastPongResp: now,
	}
}

// Pk returns the client's public key.
func (c *Client) Pk() PublicKey { return c.pk }

// Addr returns the client's observed socket address.
func (c *Client) Addr() netip.AddrPort { return c.addr }

// Links returns the client's link table.
func (c *Client) Links() *Links { return c.links }

// PingID returns the last ping id sent to this client, or 0 if no ping
// has been sent yet. It is not reset when a matching pong arrives.
func (c *Client) PingID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingID
}

// Info returns a read-only snapshot for status/metrics reporting.
func (c *Client) Info() ClientInfo {
	c.mu.Lock()
	sincePing := c.clk.Now().Sub(c.lastPinged)
	sincePong := c.clk.Now().Sub(c.lastPongResp)
	c.mu.Unlock()
	return ClientInfo{
		Pk:            c.pk,
		Addr:          c.addr,
		LinksInUse:    len(c.links.Iter()),
		SinceLastPing: sincePing,
		SinceLastPong: sincePong,
	}
}

// send is the strict policy: the caller observes a closed sink.
func (c *Client) send(p Packet) error {
	if err := c.out.Send(p); err != nil {
		return ErrSinkClosed
	}
	return nil
}

// sendIgnoreFailure is the ignore-failure policy: used for notifications
// about third parties whose loss must not kill the originating
// connection.
func (c *Client) sendIgnoreFailure(p Packet) {
	_ = c.out.Send(p)
}

// SendRouteResponse replies to a RouteRequest. Strict: the requester
// should be dropped if it can no longer receive replies.
func (c *Client) SendRouteResponse(pk PublicKey, connectionID uint8) error {
	return c.send(RouteResponse{Pk: pk, ConnectionID: connectionID})
}

// SendConnectNotification tells the client a link came online.
// Ignore-failure: the link handshake still completed server-side.
func (c *Client) SendConnectNotification(connectionID uint8) {
	c.sendIgnoreFailure(ConnectNotification{ConnectionID: connectionID})
}

// SendDisconnectNotification tells the client a peer went away.
// Ignore-failure.
func (c *Client) SendDisconnectNotification(connectionID uint8) {
	c.sendIgnoreFailure(DisconnectNotification{ConnectionID: connectionID})
}

// SendPongResponse replies to a PingRequest. Strict.
func (c *Client) SendPongResponse(pingID uint64) error {
	return c.send(PongResponse{PingID: pingID})
}

// SendOob delivers out-of-band data from senderPk. Ignore-failure.
func (c *Client) SendOob(senderPk PublicKey, data []byte) {
	c.sendIgnoreFailure(OobReceive{SenderPk: senderPk, Data: data})
}

// SendOnionResponse delivers an onion reply payload. Strict.
func (c *Client) SendOnionResponse(payload []byte) error {
	return c.send(OnionResponse{Payload: payload})
}

// SendData forwards payload over connectionID. Strict: a data packet
// whose destination has vanished should drop the forwarding side too.
func (c *Client) SendData(connectionID uint8, data []byte) error {
	return c.send(Data{ConnectionID: connectionID, Payload: data})
}

// IsPingIntervalPassed reports whether a keepalive ping is due.
func (c *Client) IsPingIntervalPassed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clk.Now().Sub(c.lastPinged) >= PingFrequency
}

// IsPongTimedOut reports whether the client has gone PingFrequency+
// PingTimeout without a valid pong.
func (c *Client) IsPongTimedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clk.Now().Sub(c.lastPongResp) > PingFrequency+PingTimeout
}

// SetLastPongResp records a fresh, verified pong.
func (c *Client) SetLastPongResp(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPongResp = t
}

// genPingID draws a nonzero random 64-bit ping id. Zero is reserved as
// "no outstanding ping"; re-draw on the astronomically rare zero.
func genPingID() uint64 {
	for {
		if id := rand.Uint64(); id != 0 {
			return id
		}
	}
}

// SendPingRequest draws a fresh nonzero ping id, records it along with
// the current time, and enqueues a PingRequest. Strict: an unreachable
// client should be evicted by the next sweep, not silently skipped.
func (c *Client) SendPingRequest() error {
	id := genPingID()
	c.mu.Lock()
	c.pingID = id
	c.lastPinged = c.clk.Now()
	c.mu.Unlock()
	return c.send(PingRequest{PingID: id})
}
