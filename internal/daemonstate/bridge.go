// Package daemonstate bridges the relay's persisted DHT state to the
// live close-node set: serializing the current close nodes for storage,
// and re-seeding requests to previously known nodes on startup.
package daemonstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shurlinet/toxrelay/pkg/relay"
	"github.com/shurlinet/toxrelay/pkg/statesave"
)

// CloseNodesProvider exposes the daemon's current DHT close-node set.
type CloseNodesProvider interface {
	CloseNodes() []statesave.PackedNode
}

// NodeRequester sends a "get nodes" style request toward a node on the
// daemon's behalf. Errors are swallowed by the bridge: seeding is best
// effort, and real delivery is the DHT's concern.
type NodeRequester interface {
	RequestNodes(ctx context.Context, to statesave.PackedNode, from relay.PublicKey) error
}

// Bridge implements serialize_dht/deserialize_dht: converting between
// the live close-node set and the persisted DhtState section.
type Bridge struct {
	log     *slog.Logger
	metrics *relay.Metrics
}

// New returns a Bridge. A nil logger defaults to slog.Default(); a nil
// Metrics is a valid no-op per relay.Metrics' nil-receiver convention.
func New(log *slog.Logger, metrics *relay.Metrics) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{log: log, metrics: metrics}
}

// Serialize flattens the provider's current close nodes into a DhtState
// section and encodes it in the bridge's own tag+magic+payload form
// (see statesave.EncodeDhtStateSection) — not wrapped in the outer
// State stream's additional length prefix.
func (b *Bridge) Serialize(provider CloseNodesProvider) []byte {
	nodes := provider.CloseNodes()
	out := make([]statesave.PackedNode, len(nodes))
	copy(out, nodes)
	return statesave.EncodeDhtStateSection(statesave.DhtState{Nodes: out})
}

// Deserialize parses a DhtState section (bridge form, see Serialize)
// and, on success, fires a concurrent NodesRequest at every parsed node
// using a fresh request id per node for correlation in logs. Individual
// request failures are swallowed; the bridge's job is to seed, not to
// guarantee delivery.
func (b *Bridge) Deserialize(ctx context.Context, data []byte, requester NodeRequester, ownPk relay.PublicKey) (statesave.DhtState, error) {
	dht, err := statesave.DecodeDhtStateSection(data)
	if err != nil {
		b.metrics.IncDecodeError("DhtState")
		return statesave.DhtState{}, err
	}

	var wg sync.WaitGroup
	for _, node := range dht.Nodes {
		node := node
		reqID := uuid.New()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := requester.RequestNodes(ctx, node, ownPk); err != nil {
				b.log.Debug("daemonstate: seed request failed", "request_id", reqID, "pk", node.Pk, "err", err)
				return
			}
			b.log.Debug("daemonstate: seed request sent", "request_id", reqID, "pk", node.Pk)
		}()
	}
	wg.Wait()

	b.log.Info("daemonstate: seeded nodes from saved state", "count", len(dht.Nodes))
	return dht, nil
}
