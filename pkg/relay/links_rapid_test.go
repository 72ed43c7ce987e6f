package relay

import (
	"testing"

	"pgregory.net/rapid"
)

// TestRapidLinksInvariant drives a sequence of random Insert/Take
// operations and checks index[pk]=i <=> slots[i]=Some{pk} holds after
// every step, plus that Insert never allocates a slot above the
// lowest free one.
func TestRapidLinksInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := NewLinks()
		live := map[PublicKey]uint8{}

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "insert") || len(live) == 0 {
				b := byte(rapid.IntRange(0, 255).Draw(t, "pk_byte"))
				pk := samplePK(b)
				prev, existed := live[pk]
				slot, err := l.Insert(pk)
				if err != nil {
					continue // table full, acceptable
				}
				live[pk] = slot

				if existed {
					// Idempotent re-insert keeps the existing slot, even
					// if a lower slot has been freed since.
					if slot != prev {
						t.Fatalf("re-insert moved pk from slot %d to %d", prev, slot)
					}
				} else {
					for j := uint8(0); j < slot; j++ {
						if link, ok := l.ByID(j); !ok {
							t.Fatalf("slot %d empty below freshly allocated slot %d", j, slot)
						} else if link.PeerPK == pk {
							t.Fatalf("duplicate pk below its own slot")
						}
					}
				}
			} else {
				var victim PublicKey
				for pk := range live {
					victim = pk
					break
				}
				slot := live[victim]
				if _, ok := l.Take(slot); !ok {
					t.Fatalf("Take(%d) failed for tracked pk", slot)
				}
				delete(live, victim)
			}

			for slot := uint8(0); slot < MaxLinks; slot++ {
				link, present := l.ByID(slot)
				if !present {
					continue
				}
				idxSlot, indexed := l.IDByPK(link.PeerPK)
				if !indexed {
					t.Fatalf("slot %d: pk %v present but not indexed", slot, link.PeerPK)
				}
				if idxSlot != slot {
					t.Fatalf("slot %d: index disagrees, got %d", slot, idxSlot)
				}
			}
		}
	})
}

// TestRapidWireIDBijection checks ToWireID/FromWireID round trip for
// every valid slot, for arbitrary MaxLinks-bounded inputs.
func TestRapidWireIDBijection(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		slot := uint8(rapid.IntRange(0, MaxLinks-1).Draw(t, "slot"))
		wire := ToWireID(slot)
		back, ok := FromWireID(wire)
		if !ok || back != slot {
			t.Fatalf("slot %d -> wire %d -> %d (ok=%v)", slot, wire, back, ok)
		}
	})
}
