package daemonstate

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"testing"

	"github.com/shurlinet/toxrelay/pkg/relay"
	"github.com/shurlinet/toxrelay/pkg/statesave"
)

var errRequestFailed = errors.New("request failed")

type fakeProvider struct {
	nodes []statesave.PackedNode
}

func (f fakeProvider) CloseNodes() []statesave.PackedNode { return f.nodes }

type recordingRequester struct {
	mu  sync.Mutex
	got []statesave.PackedNode
}

func (r *recordingRequester) RequestNodes(_ context.Context, to statesave.PackedNode, _ relay.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, to)
	return nil
}

func samplePk(b byte) relay.PublicKey {
	var pk relay.PublicKey
	pk[0] = b
	return pk
}

func TestBridgeSerializeDeserializeRoundTrip(t *testing.T) {
	b := New(slog.Default(), relay.NewMetrics())
	provider := fakeProvider{nodes: []statesave.PackedNode{
		{Pk: samplePk(1), Saddr: netip.MustParseAddrPort("1.2.3.4:1234")},
	}}

	encoded := b.Serialize(provider)

	requester := &recordingRequester{}
	dht, err := b.Deserialize(context.Background(), encoded, requester, samplePk(99))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(dht.Nodes) != 1 || dht.Nodes[0].Pk != samplePk(1) {
		t.Fatalf("decoded nodes = %+v, want one node with pk=1", dht.Nodes)
	}

	requester.mu.Lock()
	defer requester.mu.Unlock()
	if len(requester.got) != 1 || requester.got[0].Pk != samplePk(1) {
		t.Fatalf("requester saw %+v, want one request for pk=1", requester.got)
	}
}

func TestBridgeDeserializeTruncatedData(t *testing.T) {
	b := New(slog.Default(), relay.NewMetrics())
	if _, err := b.Deserialize(context.Background(), []byte{0x02, 0x00}, &recordingRequester{}, samplePk(1)); err == nil {
		t.Fatal("expected an error for truncated dht state data")
	}
}

type failingRequester struct{}

func (failingRequester) RequestNodes(context.Context, statesave.PackedNode, relay.PublicKey) error {
	return errRequestFailed
}

func TestBridgeDeserializeSwallowsRequestFailures(t *testing.T) {
	b := New(slog.Default(), relay.NewMetrics())
	provider := fakeProvider{nodes: []statesave.PackedNode{
		{Pk: samplePk(1), Saddr: netip.MustParseAddrPort("1.2.3.4:1234")},
	}}
	encoded := b.Serialize(provider)

	if _, err := b.Deserialize(context.Background(), encoded, failingRequester{}, samplePk(1)); err != nil {
		t.Fatalf("Deserialize should swallow per-node request failures, got %v", err)
	}
}
