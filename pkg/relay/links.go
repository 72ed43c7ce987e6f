package relay

import "sync"

// MaxLinks is the number of link slots a client may hold. Slots are
// 0-based internally; the wire connection id is slot+WireIDBase.
const MaxLinks = 240

// WireIDBase is the offset applied to a slot to produce a wire
// connection id. Wire conversion lives exclusively in this file: no
// other package performs +16/-16 arithmetic.
const WireIDBase = 16

// LinkStatus tags whether a link has only been registered on this side,
// or is fully online with the peer's slot recorded.
type LinkStatus struct {
	online bool
	to     uint8
}

// Registered reports a link this side allocated but has not yet received
// a ConnectNotification for.
func Registered() LinkStatus { return LinkStatus{} }

// Online reports a link where both sides are linked; to is the peer's
// slot id for this side.
func Online(to uint8) LinkStatus { return LinkStatus{online: true, to: to} }

// IsOnline reports whether the status is Online, and if so the peer's
// slot id.
func (s LinkStatus) IsOnline() (to uint8, ok bool) { return s.to, s.online }

// Link is a per-side record of wanting to exchange data with an
// identified peer.
type Link struct {
	PeerPK PublicKey
	Status LinkStatus
}

// Links is a client's fixed-capacity link table: a 240-slot array plus a
// public-key index, kept mutually consistent at all times (links[i] =
// Some{pk} iff index[pk] = i). It is independently guarded so that one
// client's link churn never serializes unrelated clients.
type Links struct {
	mu      sync.Mutex
	slots   [MaxLinks]*Link
	indexOf map[PublicKey]uint8
}

// NewLinks returns an empty link table.
func NewLinks() *Links {
	return &Links{indexOf: make(map[PublicKey]uint8)}
}

// Insert allocates a link to peerPK, idempotently. If peerPK already has
// a slot, that slot is returned. Otherwise the lowest-index empty slot is
// allocated. Returns ErrLinksFull if none remain.
func (l *Links) Insert(peerPK PublicKey) (uint8, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if slot, ok := l.indexOf[peerPK]; ok {
		return slot, nil
	}
	for i := 0; i < MaxLinks; i++ {
		if l.slots[i] == nil {
			l.slots[i] = &Link{PeerPK: peerPK, Status: Registered()}
			l.indexOf[peerPK] = uint8(i)
			return uint8(i), nil
		}
	}
	return 0, ErrLinksFull
}

// ByID returns the link at the given 0-based slot, bounds-checked.
func (l *Links) ByID(slot uint8) (Link, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if int(slot) >= MaxLinks || l.slots[slot] == nil {
		return Link{}, false
	}
	return *l.slots[slot], true
}

// IDByPK returns the slot currently allocated to pk, if any.
func (l *Links) IDByPK(pk PublicKey) (uint8, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.indexOf[pk]
	return slot, ok
}

// Take removes and returns the link at slot, freeing it for reuse.
func (l *Links) Take(slot uint8) (Link, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if int(slot) >= MaxLinks || l.slots[slot] == nil {
		return Link{}, false
	}
	link := *l.slots[slot]
	delete(l.indexOf, link.PeerPK)
	l.slots[slot] = nil
	return link, true
}

// Downgrade sets the link's status back to Registered. No-op if the slot
// is empty.
func (l *Links) Downgrade(slot uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if int(slot) < MaxLinks && l.slots[slot] != nil {
		l.slots[slot].Status = Registered()
	}
}

// Upgrade sets the link's status to Online, recording the peer's slot id
// for this side. No-op if the slot is empty.
func (l *Links) Upgrade(slot uint8, peerSlot uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if int(slot) < MaxLinks && l.slots[slot] != nil {
		l.slots[slot].Status = Online(peerSlot)
	}
}

// Iter returns a snapshot of all occupied links in slot order, used to
// produce shutdown notifications without holding the table lock while
// the caller dispatches sends.
func (l *Links) Iter() []Link {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Link, 0, len(l.indexOf))
	for _, link := range l.slots {
		if link != nil {
			out = append(out, *link)
		}
	}
	return out
}

// ToWireID converts a 0-based slot to its wire connection id.
func ToWireID(slot uint8) uint8 { return slot + WireIDBase }

// FromWireID converts a wire connection id to a 0-based slot. Any wire id
// below WireIDBase is invalid.
func FromWireID(wire uint8) (uint8, bool) {
	if wire < WireIDBase {
		return 0, false
	}
	return wire - WireIDBase, true
}
