package statesave

import (
	"net/netip"
	"testing"

	"pgregory.net/rapid"

	"github.com/shurlinet/toxrelay/pkg/relay"
)

func rapidPk(t *rapid.T, label string) relay.PublicKey {
	var pk relay.PublicKey
	bytes := rapid.SliceOfN(rapid.Byte(), relay.PublicKeySize, relay.PublicKeySize).Draw(t, label)
	copy(pk[:], bytes)
	return pk
}

func rapidAddrPort(t *rapid.T, label string) netip.AddrPort {
	if rapid.Bool().Draw(t, label+"_v6") {
		b := rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, label+"_addr")
		return netip.AddrPortFrom(netip.AddrFrom16([16]byte(b)), rapid.Uint16().Draw(t, label+"_port"))
	}
	b := rapid.SliceOfN(rapid.Byte(), 4, 4).Draw(t, label+"_addr")
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte(b)), rapid.Uint16().Draw(t, label+"_port"))
}

// TestRapidNameRoundTrip checks that arbitrary raw byte sequences survive
// a Name section round trip unchanged.
func TestRapidNameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(t, "payload")
		want := Name(payload)
		got, _, err := decodeSection(encodeSection(want))
		if err != nil {
			t.Fatalf("decodeSection: %v", err)
		}
		name := got.(Name)
		if string(name) != string(want) {
			t.Fatalf("got %v, want %v", name, want)
		}
	})
}

// TestRapidDhtStateRoundTrip checks that an arbitrary set of DHT close
// nodes survives a DhtState section round trip unchanged.
func TestRapidDhtStateRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 10).Draw(t, "n")
		nodes := make([]PackedNode, n)
		for i := range nodes {
			nodes[i] = PackedNode{
				Pk:    rapidPk(t, "pk"),
				Saddr: rapidAddrPort(t, "saddr"),
			}
		}
		want := DhtState{Nodes: nodes}
		got, _, err := decodeSection(encodeSection(want))
		if err != nil {
			t.Fatalf("decodeSection: %v", err)
		}
		dht := got.(DhtState)
		if len(dht.Nodes) != len(want.Nodes) {
			t.Fatalf("got %d nodes, want %d", len(dht.Nodes), len(want.Nodes))
		}
		for i := range want.Nodes {
			if dht.Nodes[i] != want.Nodes[i] {
				t.Fatalf("node %d: got %+v, want %+v", i, dht.Nodes[i], want.Nodes[i])
			}
		}
	})
}

// TestRapidFriendStateRoundTrip checks that FriendState's mixed-endian
// fixed layout survives a round trip unchanged across arbitrary
// (bounded-length) string fields.
func TestRapidFriendStateRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		want := FriendState{
			Status:     FriendStatus(rapid.IntRange(0, 4).Draw(t, "status")),
			Pk:         rapidPk(t, "pk"),
			FrMsg:      rapid.SliceOfN(rapid.Byte(), 0, RequestMsgLen).Draw(t, "fr_msg"),
			Name:       Name(rapid.SliceOfN(rapid.Byte(), 0, NameLen).Draw(t, "name")),
			StatusMsg:  StatusMsg(rapid.SliceOfN(rapid.Byte(), 0, StatusMsgLen).Draw(t, "status_msg")),
			UserStatus: UserWorkingStatus(rapid.IntRange(0, 2).Draw(t, "user_status")),
			Nospam:     NoSpam{1, 2, 3, 4},
			LastSeen:   rapid.Uint64().Draw(t, "last_seen"),
		}
		got, err := decodeFriendState(want.encode())
		if err != nil {
			t.Fatalf("decodeFriendState: %v", err)
		}
		if got.Status != want.Status || got.Pk != want.Pk || string(got.FrMsg) != string(want.FrMsg) ||
			string(got.Name) != string(want.Name) || string(got.StatusMsg) != string(want.StatusMsg) ||
			got.UserStatus != want.UserStatus || got.Nospam != want.Nospam || got.LastSeen != want.LastSeen {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	})
}
