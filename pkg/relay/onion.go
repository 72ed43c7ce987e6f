package relay

import (
	"net/netip"
	"sync"

	"golang.org/x/time/rate"
)

// ChanOnionSink queues forwarded onion requests without a capacity
// bound, matching §6's "unbounded queue of (OnionRequest, SocketAddr)":
// a slow or stalled consumer must never cause Forward to fail. Only
// Close makes Forward return ErrSinkClosed.
type ChanOnionSink struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []OnionEnvelope
	closed bool
}

// OnionEnvelope pairs a tunneled onion request with the sender's observed
// socket address, exactly as the relay hands it off to UDP egress.
type OnionEnvelope struct {
	Request OnionRequest
	Addr    netip.AddrPort
}

// NewChanOnionSink returns an empty, unbounded sink.
func NewChanOnionSink() *ChanOnionSink {
	s := &ChanOnionSink{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Forward implements OnionSink. It never blocks and never drops: the
// envelope is appended to the queue regardless of how many are already
// waiting.
func (s *ChanOnionSink) Forward(req OnionRequest, addr netip.AddrPort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.queue = append(s.queue, OnionEnvelope{Request: req, Addr: addr})
	s.cond.Signal()
	return nil
}

// Next blocks until an envelope is queued or the sink is closed. ok is
// false once the sink is closed and the queue has drained.
func (s *ChanOnionSink) Next() (OnionEnvelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return OnionEnvelope{}, false
	}
	env := s.queue[0]
	s.queue = s.queue[1:]
	return env, true
}

// Close marks the sink closed; subsequent Forward calls return
// ErrSinkClosed and blocked Next callers are woken to observe it.
func (s *ChanOnionSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// RateLimitedOnionSink wraps another OnionSink with an egress rate limit,
// guarding a slow or saturated UDP path from an onion-request flood. A
// Limiter built with rate.Inf makes this a transparent pass-through;
// Limiter must not be nil.
type RateLimitedOnionSink struct {
	Next    OnionSink
	Limiter *rate.Limiter
}

// NewRateLimitedOnionSink wraps next with a limiter allowing up to r
// requests per second with the given burst. Pass rate.Inf to disable
// limiting entirely.
func NewRateLimitedOnionSink(next OnionSink, r rate.Limit, burst int) *RateLimitedOnionSink {
	return &RateLimitedOnionSink{Next: next, Limiter: rate.NewLimiter(r, burst)}
}

// Forward implements OnionSink. Over the configured rate, the request is
// dropped (ErrOnionRateLimited) rather than forwarded; this is transient
// backpressure, never treated as the sink being closed.
func (s *RateLimitedOnionSink) Forward(req OnionRequest, addr netip.AddrPort) error {
	if !s.Limiter.Allow() {
		return ErrOnionRateLimited
	}
	return s.Next.Forward(req, addr)
}
