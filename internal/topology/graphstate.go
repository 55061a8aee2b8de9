// Package topology maintains the evolving trust graph between spaces and
// incrementally computes per-space transitive graphs and a canonical
// subgraph rooted at a configured space (spec §4.1).
package topology

import (
	"sync"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

// EventKind tags the two GraphState mutation events.
type EventKind int

const (
	EventSpaceCreated EventKind = iota
	EventTrustExtended
)

// Event is the normalized input to GraphState.ApplyEvent.
type Event struct {
	Kind EventKind

	// EventSpaceCreated
	SpaceID ids.ID
	TopicID ids.ID

	// EventTrustExtended
	Edge model.TrustEdge
}

// GraphState is the process-scoped trust graph, exclusively owned by the
// topology engine. All mutation goes through ApplyEvent; all query methods
// return borrowed (read-only) views (spec §3 "Ownership").
type GraphState struct {
	mu sync.RWMutex

	spaces map[ids.ID]struct{}

	// explicitEdges[source] holds Verified/Related edges in insertion order.
	explicitEdges map[ids.ID][]model.TrustEdge
	// topicEdges[source] holds Subtopic edges in insertion order.
	topicEdges map[ids.ID][]model.TrustEdge

	// reverseTopicEdges[topic] = sources with a Subtopic edge to that topic.
	reverseTopicEdges map[ids.ID]map[ids.ID]struct{}
	// topicMembers[topic] = spaces that announced that topic at creation.
	topicMembers map[ids.ID]map[ids.ID]struct{}
}

// NewGraphState constructs an empty GraphState.
func NewGraphState() *GraphState {
	return &GraphState{
		spaces:            make(map[ids.ID]struct{}),
		explicitEdges:     make(map[ids.ID][]model.TrustEdge),
		topicEdges:        make(map[ids.ID][]model.TrustEdge),
		reverseTopicEdges: make(map[ids.ID]map[ids.ID]struct{}),
		topicMembers:      make(map[ids.ID]map[ids.ID]struct{}),
	}
}

// ApplyEvent adds a space (idempotent) or appends a trust edge
// (deduplicated by source+target+kind), updating the topic-membership and
// reverse-edge indexes accordingly.
func (g *GraphState) ApplyEvent(e Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch e.Kind {
	case EventSpaceCreated:
		g.spaces[e.SpaceID] = struct{}{}
		if g.topicMembers[e.TopicID] == nil {
			g.topicMembers[e.TopicID] = make(map[ids.ID]struct{})
		}
		g.topicMembers[e.TopicID][e.SpaceID] = struct{}{}

	case EventTrustExtended:
		edge := e.Edge
		switch edge.Kind {
		case model.TrustEdgeVerified, model.TrustEdgeRelated:
			if g.hasExplicitEdge(edge) {
				return
			}
			g.explicitEdges[edge.SourceSpace] = append(g.explicitEdges[edge.SourceSpace], edge)
		case model.TrustEdgeSubtopic:
			if g.hasTopicEdge(edge) {
				return
			}
			g.topicEdges[edge.SourceSpace] = append(g.topicEdges[edge.SourceSpace], edge)
			if g.reverseTopicEdges[edge.TargetTopic] == nil {
				g.reverseTopicEdges[edge.TargetTopic] = make(map[ids.ID]struct{})
			}
			g.reverseTopicEdges[edge.TargetTopic][edge.SourceSpace] = struct{}{}
		}
	}
}

func (g *GraphState) hasExplicitEdge(edge model.TrustEdge) bool {
	for _, existing := range g.explicitEdges[edge.SourceSpace] {
		if existing.Kind == edge.Kind && existing.TargetSpace == edge.TargetSpace {
			return true
		}
	}
	return false
}

func (g *GraphState) hasTopicEdge(edge model.TrustEdge) bool {
	for _, existing := range g.topicEdges[edge.SourceSpace] {
		if existing.TargetTopic == edge.TargetTopic {
			return true
		}
	}
	return false
}

// GetExplicitEdges returns a copy of source's Verified/Related edges.
func (g *GraphState) GetExplicitEdges(source ids.ID) []model.TrustEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]model.TrustEdge(nil), g.explicitEdges[source]...)
}

// GetTopicEdges returns a copy of source's Subtopic edges.
func (g *GraphState) GetTopicEdges(source ids.ID) []model.TrustEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]model.TrustEdge(nil), g.topicEdges[source]...)
}

// GetTopicMembers returns the spaces that announced topic, sorted for
// deterministic downstream iteration.
func (g *GraphState) GetTopicMembers(topic ids.ID) []ids.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.topicMembers[topic])
}

// GetTopicEdgeSources returns the spaces with a Subtopic edge to topic,
// sorted for deterministic downstream iteration.
func (g *GraphState) GetTopicEdgeSources(topic ids.ID) []ids.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.reverseTopicEdges[topic])
}

// HasSpace reports whether space is known to the graph.
func (g *GraphState) HasSpace(space ids.ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.spaces[space]
	return ok
}

func sortedKeys(m map[ids.ID]struct{}) []ids.ID {
	out := make([]ids.ID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortIDs(out)
	return out
}
