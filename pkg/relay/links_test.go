package relay

import "testing"

func samplePK(b byte) PublicKey {
	var pk PublicKey
	pk[0] = b
	return pk
}

func TestLinksInsertIdempotent(t *testing.T) {
	l := NewLinks()
	pk := samplePK(1)

	slot1, err := l.Insert(pk)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if slot1 != 0 {
		t.Fatalf("first insert into empty table: got slot %d, want 0", slot1)
	}

	slot2, err := l.Insert(pk)
	if err != nil {
		t.Fatalf("Insert (idempotent): %v", err)
	}
	if slot2 != slot1 {
		t.Fatalf("idempotent insert: got slot %d, want %d", slot2, slot1)
	}
}

func TestLinksSlotAllocationMinimal(t *testing.T) {
	l := NewLinks()
	for i := 0; i < 10; i++ {
		slot, err := l.Insert(samplePK(byte(i)))
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		if slot != uint8(i) {
			t.Fatalf("insert %d: got slot %d, want %d", i, slot, i)
		}
	}
}

func TestLinksTakeFreesLowestSlot(t *testing.T) {
	l := NewLinks()
	l.Insert(samplePK(1))
	slotB, _ := l.Insert(samplePK(2))
	l.Insert(samplePK(3))

	if _, ok := l.Take(slotB); !ok {
		t.Fatal("Take: expected link present")
	}

	slot, err := l.Insert(samplePK(4))
	if err != nil {
		t.Fatalf("Insert after Take: %v", err)
	}
	if slot != slotB {
		t.Fatalf("freed slot not reused: got %d, want %d", slot, slotB)
	}
}

func TestLinksFull(t *testing.T) {
	l := NewLinks()
	for i := 0; i < MaxLinks; i++ {
		if _, err := l.Insert(samplePK(byte(i))); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if _, err := l.Insert(samplePK(241)); err != ErrLinksFull {
		t.Fatalf("Insert into full table: got %v, want ErrLinksFull", err)
	}
}

func TestLinksByIDBounds(t *testing.T) {
	l := NewLinks()
	if _, ok := l.ByID(240); ok {
		t.Fatal("ByID(240): expected out-of-bounds miss")
	}
	if _, ok := l.ByID(0); ok {
		t.Fatal("ByID(0) on empty table: expected miss")
	}
}

func TestLinksUpgradeDowngrade(t *testing.T) {
	l := NewLinks()
	pk := samplePK(1)
	slot, _ := l.Insert(pk)

	link, _ := l.ByID(slot)
	if _, ok := link.Status.IsOnline(); ok {
		t.Fatal("fresh link should start Registered")
	}

	l.Upgrade(slot, 7)
	link, _ = l.ByID(slot)
	to, ok := link.Status.IsOnline()
	if !ok || to != 7 {
		t.Fatalf("after Upgrade: got (%d,%v), want (7,true)", to, ok)
	}

	l.Downgrade(slot)
	link, _ = l.ByID(slot)
	if _, ok := link.Status.IsOnline(); ok {
		t.Fatal("after Downgrade: expected Registered")
	}

	// No-op on an empty slot.
	l.Upgrade(200, 1)
	l.Downgrade(200)
}

func TestLinksInvariant(t *testing.T) {
	l := NewLinks()
	pks := make([]PublicKey, 20)
	for i := range pks {
		pks[i] = samplePK(byte(i + 1))
		l.Insert(pks[i])
	}
	l.Take(5)
	l.Insert(samplePK(99))

	for slot := uint8(0); slot < MaxLinks; slot++ {
		link, present := l.ByID(slot)
		idxSlot, indexed := l.IDByPK(pkOrZero(link, present))
		if present != indexed {
			t.Fatalf("slot %d: present=%v indexed=%v mismatch", slot, present, indexed)
		}
		if present && idxSlot != slot {
			t.Fatalf("slot %d: index disagrees, got %d", slot, idxSlot)
		}
	}
}

func pkOrZero(link Link, present bool) PublicKey {
	if !present {
		return PublicKey{}
	}
	return link.PeerPK
}

func TestWireIDBijection(t *testing.T) {
	for slot := 0; slot < MaxLinks; slot++ {
		wire := ToWireID(uint8(slot))
		if wire < WireIDBase {
			t.Fatalf("wire id %d below base %d", wire, WireIDBase)
		}
		back, ok := FromWireID(wire)
		if !ok || back != uint8(slot) {
			t.Fatalf("round trip slot %d -> wire %d -> %d (ok=%v)", slot, wire, back, ok)
		}
	}
	if _, ok := FromWireID(15); ok {
		t.Fatal("wire id 15 should be invalid (below base)")
	}
}
