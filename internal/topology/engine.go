package topology

import (
	"sync"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

// Engine owns GraphState, TransitiveProcessor, and CanonicalProcessor
// together and applies the event-driven invalidation rules from spec
// §4.1. Lock acquisition order is always state → transitive → canonical
// to avoid cycles (spec §5); each owned component guards itself, so Engine
// only needs to serialize the ApplyEvent+invalidate+recompute sequence.
type Engine struct {
	mu sync.Mutex

	State      *GraphState
	Transitive *TransitiveProcessor
	Canonical  *CanonicalProcessor

	// CanonicalRoot is the configured space the canonical graph is rooted
	// at (spec §4.1 "a canonical graph rooted at a configured space").
	CanonicalRoot ids.ID
}

// NewEngine constructs an Engine rooted at canonicalRoot.
func NewEngine(canonicalRoot ids.ID) *Engine {
	return &Engine{
		State:         NewGraphState(),
		Transitive:    NewTransitiveProcessor(),
		Canonical:     NewCanonicalProcessor(),
		CanonicalRoot: canonicalRoot,
	}
}

// Apply applies event to GraphState, runs the transitive-cache
// invalidation rules for it, and recomputes the canonical graph. Returns
// the new canonical graph only if it changed (scenario S4: the second
// consecutive compute on unchanged state returns changed=false).
func (e *Engine) Apply(event Event) (graph *CanonicalGraph, changed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.State.ApplyEvent(event)
	e.invalidate(event)

	return e.Canonical.Compute(e.State, e.Transitive, e.CanonicalRoot)
}

// invalidate implements the per-event transitive-cache invalidation rules
// from spec §4.1 "On event".
func (e *Engine) invalidate(event Event) {
	switch event.Kind {
	case EventSpaceCreated:
		for _, source := range e.State.GetTopicEdgeSources(event.TopicID) {
			e.Transitive.Invalidate(source)
		}

	case EventTrustExtended:
		edge := event.Edge
		switch edge.Kind {
		case model.TrustEdgeVerified, model.TrustEdgeRelated:
			e.Transitive.Invalidate(edge.SourceSpace)
			e.Transitive.Invalidate(edge.TargetSpace)
		case model.TrustEdgeSubtopic:
			e.Transitive.Invalidate(edge.SourceSpace)
			for _, member := range e.State.GetTopicMembers(edge.TargetTopic) {
				e.Transitive.Invalidate(member)
			}
		}
	}
}
