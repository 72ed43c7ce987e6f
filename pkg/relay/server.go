package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// KeepaliveSweepInterval is the default period of the background
// goroutine started by Server.Start. It is independent of PingFrequency/
// PingTimeout, which are evaluated per-client against the server's clock
// on every sweep tick.
const KeepaliveSweepInterval = 1 * time.Second

// OnionSink is the optional downstream for tunneled onion requests. A
// closed sink is a hard error; an absent sink means onion requests are
// silently dropped.
type OnionSink interface {
	Forward(OnionRequest, netip.AddrPort) error
}

// Server is the relay's global registry: clients keyed by public key and
// by observed (ip,port), plus the packet dispatcher and keepalive sweep.
// The outer sync.RWMutex guards only membership (clients, byAddr); each
// Client's link table and ping bookkeeping are independently guarded so
// link churn on one client never blocks dispatch to another.
type Server struct {
	mu      sync.RWMutex
	clients map[PublicKey]*Client
	byAddr  map[netip.AddrPort]PublicKey

	onionSink OnionSink
	clk       clock.Clock
	metrics   *Metrics
	log       *slog.Logger

	sweepInterval time.Duration
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithOnionSink installs the sink that receives forwarded OnionRequests.
func WithOnionSink(sink OnionSink) Option {
	return func(s *Server) { s.onionSink = sink }
}

// WithClock overrides the clock used for keepalive timing (tests inject
// a clock.Mock).
func WithClock(clk clock.Clock) Option {
	return func(s *Server) { s.clk = clk }
}

// WithMetrics attaches a Metrics instance. A nil Metrics (the default) is
// safe to use; all methods are nil-receiver safe no-ops.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger overrides the logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithSweepInterval overrides the keepalive sweep goroutine's tick period.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Server) { s.sweepInterval = d }
}

// NewServer returns an empty Server. Call Start to begin the background
// keepalive sweep.
func NewServer(opts ...Option) *Server {
	s := &Server{
		clients:       make(map[PublicKey]*Client),
		byAddr:        make(map[netip.AddrPort]PublicKey),
		clk:           clock.New(),
		log:           slog.Default(),
		sweepInterval: KeepaliveSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert atomically records client by pk and by (ip,port), replacing any
// prior mapping at that address.
func (s *Server) Insert(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAddr[c.Addr()] = c.Pk()
	s.clients[c.Pk()] = c
	s.metrics.setClientCount(len(s.clients))
	s.log.Info("relay: client connected", "pk", c.Pk(), "addr", c.Addr())
}

// getClient is an internal read-locked lookup helper.
func (s *Server) getClient(pk PublicKey) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[pk]
	return c, ok
}

// HandlePacket is the main dispatch entry point, called once per decoded
// inbound packet after handshake.
func (s *Server) HandlePacket(senderPk PublicKey, packet Packet) error {
	switch p := packet.(type) {
	case RouteRequest:
		return s.handleRouteRequest(senderPk, p)
	case RouteResponse:
		return newError(KindProtocolViolation, "RouteResponse", senderPk, nil)
	case ConnectNotification:
		return nil // accepted silently for backward compatibility
	case DisconnectNotification:
		return s.handleDisconnectNotification(senderPk, p)
	case PingRequest:
		return s.handlePingRequest(senderPk, p)
	case PongResponse:
		return s.handlePongResponse(senderPk, p)
	case OobSend:
		return s.handleOobSend(senderPk, p)
	case OobReceive:
		return newError(KindProtocolViolation, "OobReceive", senderPk, nil)
	case Data:
		return s.handleData(senderPk, p)
	case OnionRequest:
		return s.handleOnionRequest(senderPk, p)
	case OnionResponse:
		return newError(KindProtocolViolation, "OnionResponse", senderPk, nil)
	default:
		return newError(KindProtocolViolation, "unknown", senderPk, nil)
	}
}

func (s *Server) handleRouteRequest(senderPk PublicKey, p RouteRequest) error {
	sender, ok := s.getClient(senderPk)
	if !ok {
		return newError(KindUnknownSender, "RouteRequest", senderPk, ErrNoSuchClient)
	}

	if senderPk == p.Pk {
		return sender.SendRouteResponse(senderPk, RouteSentinelNoSlot)
	}

	if slot, ok := sender.Links().IDByPK(p.Pk); ok {
		return sender.SendRouteResponse(p.Pk, ToWireID(slot))
	}

	slot, err := sender.Links().Insert(p.Pk)
	if err != nil {
		return sender.SendRouteResponse(p.Pk, RouteSentinelNoSlot)
	}
	if err := sender.SendRouteResponse(p.Pk, ToWireID(slot)); err != nil {
		return err
	}

	peer, ok := s.getClient(p.Pk)
	if !ok {
		return nil
	}
	peerSlot, ok := peer.Links().IDByPK(senderPk)
	if !ok {
		return nil
	}
	sender.Links().Upgrade(slot, peerSlot)
	peer.Links().Upgrade(peerSlot, slot)
	sender.SendConnectNotification(ToWireID(slot))
	peer.SendConnectNotification(ToWireID(peerSlot))
	return nil
}

func (s *Server) handleDisconnectNotification(senderPk PublicKey, p DisconnectNotification) error {
	sender, ok := s.getClient(senderPk)
	if !ok {
		return newError(KindUnknownSender, "DisconnectNotification", senderPk, ErrNoSuchClient)
	}

	slot, ok := FromWireID(p.ConnectionID)
	if !ok {
		return newError(KindProtocolViolation, "DisconnectNotification", senderPk, nil)
	}

	link, ok := sender.Links().Take(slot)
	if !ok {
		return nil // races with the peer's own disconnection are expected
	}

	peer, ok := s.getClient(link.PeerPK)
	if !ok {
		return nil
	}
	peerSlot, ok := peer.Links().IDByPK(senderPk)
	if !ok {
		return nil
	}
	peer.SendDisconnectNotification(ToWireID(peerSlot))
	return nil
}

func (s *Server) handlePingRequest(senderPk PublicKey, p PingRequest) error {
	if p.PingID == 0 {
		return newError(KindProtocolViolation, "PingRequest", senderPk, nil)
	}
	sender, ok := s.getClient(senderPk)
	if !ok {
		return newError(KindUnknownSender, "PingRequest", senderPk, ErrNoSuchClient)
	}
	return sender.SendPongResponse(p.PingID)
}

func (s *Server) handlePongResponse(senderPk PublicKey, p PongResponse) error {
	if p.PingID == 0 {
		return newError(KindProtocolViolation, "PongResponse", senderPk, nil)
	}
	sender, ok := s.getClient(senderPk)
	if !ok {
		return newError(KindUnknownSender, "PongResponse", senderPk, ErrNoSuchClient)
	}
	if p.PingID != sender.PingID() {
		return newError(KindProtocolViolation, "PongResponse", senderPk, nil)
	}
	sender.SetLastPongResp(s.clk.Now())
	return nil
}

func (s *Server) handleOobSend(senderPk PublicKey, p OobSend) error {
	if len(p.Data) < 1 || len(p.Data) > OobMaxLen {
		return newError(KindProtocolViolation, "OobSend", senderPk, nil)
	}
	dest, ok := s.getClient(p.DestinationPk)
	if !ok {
		return nil // silently dropped
	}
	dest.SendOob(senderPk, p.Data)
	return nil
}

func (s *Server) handleData(senderPk PublicKey, p Data) error {
	sender, ok := s.getClient(senderPk)
	if !ok {
		return newError(KindUnknownSender, "Data", senderPk, ErrNoSuchClient)
	}

	slot, ok := FromWireID(p.ConnectionID)
	if !ok {
		return nil
	}
	link, ok := sender.Links().ByID(slot)
	if !ok {
		return nil // tolerate the disconnect-notification race window
	}

	peer, ok := s.getClient(link.PeerPK)
	if !ok {
		return nil
	}
	peerSlot, ok := peer.Links().IDByPK(senderPk)
	if !ok {
		return nil
	}
	return peer.SendData(ToWireID(peerSlot), p.Payload)
}

// handleOnionRequest forwards to the configured sink. Only a closed sink
// is fatal for the connection; backpressure (an unbounded queue never
// reports this) or a rate limit is a best-effort drop.
func (s *Server) handleOnionRequest(senderPk PublicKey, p OnionRequest) error {
	if s.onionSink == nil {
		return nil
	}
	sender, ok := s.getClient(senderPk)
	if !ok {
		return newError(KindUnknownSender, "OnionRequest", senderPk, ErrNoSuchClient)
	}
	if err := s.onionSink.Forward(p, sender.Addr()); err != nil {
		s.metrics.incOnionDropped()
		if errors.Is(err, ErrSinkClosed) {
			return newError(KindSinkClosed, "OnionRequest", senderPk, err)
		}
		return nil
	}
	s.metrics.incOnionForwarded()
	return nil
}

// HandleUDPOnionResponse looks up the owner of (ip,port) and enqueues an
// OnionResponse. An unknown address is a hard error: it indicates an
// ingress bug upstream, not a race.
func (s *Server) HandleUDPOnionResponse(addr netip.AddrPort, payload []byte) error {
	s.mu.RLock()
	pk, ok := s.byAddr[addr]
	s.mu.RUnlock()
	if !ok {
		return &Error{Kind: KindUnknownTarget, Packet: "OnionResponse", Err: ErrNoSuchClient}
	}
	client, ok := s.getClient(pk)
	if !ok {
		return &Error{Kind: KindUnknownTarget, Packet: "OnionResponse", PK: pk, Err: ErrNoSuchClient}
	}
	return client.SendOnionResponse(payload)
}

// ShutdownClient removes pk from both indexes and notifies every peer
// that still has pk linked. The peer's own link to pk is preserved; the
// peer learns of the loss only through the notification. A pk not
// currently connected is a hard error.
func (s *Server) ShutdownClient(pk PublicKey) error {
	s.mu.Lock()
	client, ok := s.clients[pk]
	if !ok {
		s.mu.Unlock()
		return newError(KindUnknownTarget, "ShutdownClient", pk, ErrNoSuchClient)
	}
	delete(s.clients, pk)
	delete(s.byAddr, client.Addr())
	count := len(s.clients)
	s.mu.Unlock()

	s.metrics.setClientCount(count)
	s.log.Info("relay: client disconnected", "pk", pk)

	links := client.Links().Iter()
	for _, link := range links {
		peer, ok := s.getClient(link.PeerPK)
		if !ok {
			continue
		}
		peerSlot, ok := peer.Links().IDByPK(pk)
		if !ok {
			continue
		}
		peer.SendDisconnectNotification(ToWireID(peerSlot))
	}
	return nil
}

// evictTimedOut shuts down every client whose pong is overdue, tolerating
// per-client failures so one bad client never aborts the sweep.
func (s *Server) evictTimedOut() {
	s.mu.RLock()
	var stale []PublicKey
	for pk, c := range s.clients {
		if c.IsPongTimedOut() {
			stale = append(stale, pk)
		}
	}
	s.mu.RUnlock()

	for _, pk := range stale {
		if err := s.ShutdownClient(pk); err != nil {
			s.log.Warn("relay: eviction failed", "pk", pk, "err", err)
		} else {
			s.metrics.incEvictions()
		}
	}
}

// pingDue sends a fresh ping to every client whose ping interval has
// elapsed, tolerating per-client send failures.
func (s *Server) pingDue() {
	s.mu.RLock()
	due := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		if c.IsPingIntervalPassed() {
			due = append(due, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range due {
		if err := c.SendPingRequest(); err != nil {
			s.log.Debug("relay: ping send failed", "pk", c.Pk(), "err", err)
		} else {
			s.metrics.incPingsSent()
		}
	}
}

// SendPings runs one keepalive sweep: first evict clients whose pong is
// overdue, then ping those whose interval has passed, then refresh the
// links-in-use gauge against the post-eviction client set. All phases
// tolerate per-client failures.
func (s *Server) SendPings() {
	s.evictTimedOut()
	s.pingDue()
	s.metrics.setLinksInUse(s.linksInUse())
}

// linksInUse sums occupied link slots across every connected client.
func (s *Server) linksInUse() int {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	total := 0
	for _, c := range clients {
		total += len(c.Links().Iter())
	}
	return total
}

// Start begins the background keepalive sweep goroutine. Call Stop (or
// cancel ctx) to end it.
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.sweepLoop(ctx)
	s.log.Info("relay: started", "sweep_interval", s.sweepInterval)
}

func (s *Server) sweepLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := s.clk.Ticker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SendPings()
		}
	}
}

// Stop cancels the keepalive sweep and waits for it to exit.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info("relay: stopped")
}
