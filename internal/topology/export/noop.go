package export

import (
	"context"

	"github.com/hermesgraph/ingestd/internal/topology"
)

// NoopMirror discards every write. Used when the Neo4j export sink is
// disabled: the canonical graph is fully usable from the entity/value/
// relation store alone, and the mirror is an optional convenience for
// Cypher-based inspection.
type NoopMirror struct{}

func (NoopMirror) WriteCanonicalGraph(ctx context.Context, graph *topology.CanonicalGraph) error {
	return nil
}

func (NoopMirror) Close(ctx context.Context) error { return nil }
