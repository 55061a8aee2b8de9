package topology

import (
	"sort"
	"sync"

	"github.com/hermesgraph/ingestd/internal/ids"
)

// CanonicalGraph is the subgraph considered "trusted" from root: every node
// reachable via explicit edges, extended with topic-edge subtrees filtered
// to that same set.
type CanonicalGraph struct {
	Root ids.ID
	Tree *TreeNode
	Flat map[ids.ID]struct{}
}

type canonicalCacheEntry struct {
	graph *CanonicalGraph
	hash  [32]byte
}

// CanonicalProcessor recomputes the canonical graph only when the
// underlying tree structure changes, one cached result per root.
type CanonicalProcessor struct {
	mu    sync.Mutex
	cache map[ids.ID]*canonicalCacheEntry
}

// NewCanonicalProcessor constructs an empty processor.
func NewCanonicalProcessor() *CanonicalProcessor {
	return &CanonicalProcessor{cache: make(map[ids.ID]*canonicalCacheEntry)}
}

// topicSourcePair is a (source, topic) pair used to deterministically order
// the topic phase (spec §4.1 "Sort pairs (source, topic_id)").
type topicSourcePair struct {
	source ids.ID
	topic  ids.ID
}

func lessPair(a, b topicSourcePair) bool {
	if a.source != b.source {
		return idLess(a.source, b.source)
	}
	return idLess(a.topic, b.topic)
}

// Compute runs the two-phase algorithm from spec §4.1 and returns the new
// graph only if its structural hash differs from the last computed one;
// otherwise (changed=false) the tree has not changed and callers should not
// publish an update (scenario S4).
func (p *CanonicalProcessor) Compute(state *GraphState, transitive *TransitiveProcessor, root ids.ID) (graph *CanonicalGraph, changed bool) {
	// Phase 1: explicit.
	explicit := transitive.ExplicitOnly(state, root)
	canonicalSet := make(map[ids.ID]struct{}, len(explicit.Flat))
	for id := range explicit.Flat {
		canonicalSet[id] = struct{}{}
	}
	tree := deepCopy(explicit.Tree)

	// Phase 2: topic.
	var pairs []topicSourcePair
	for source := range canonicalSet {
		for _, e := range state.GetTopicEdges(source) {
			pairs = append(pairs, topicSourcePair{source: source, topic: e.TargetTopic})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return lessPair(pairs[i], pairs[j]) })

	for _, pair := range pairs {
		members := state.GetTopicMembers(pair.topic)
		var canonicalMembers []ids.ID
		for _, m := range members {
			if _, ok := canonicalSet[m]; ok {
				canonicalMembers = append(canonicalMembers, m)
			}
		}
		sortIDs(canonicalMembers)

		for _, member := range canonicalMembers {
			full := transitive.Full(state, member)
			filtered := filterToSet(full.Tree, canonicalSet)
			if filtered == nil {
				continue
			}
			topicID := pair.topic
			filtered.EdgeType = EdgeTopic
			filtered.TopicID = &topicID

			var attachPoints []*TreeNode
			findAll(tree, pair.source, &attachPoints)
			for _, ap := range attachPoints {
				ap.Children = append(ap.Children, deepCopy(filtered))
			}
		}
	}

	newHash := structuralHash(tree)

	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.cache[root]; ok && entry.hash == newHash {
		return nil, false
	}

	g := &CanonicalGraph{Root: root, Tree: tree, Flat: canonicalSet}
	p.cache[root] = &canonicalCacheEntry{graph: g, hash: newHash}
	return g, true
}

// AffectsCanonical is the quick-reject predicate from spec §4.1: a
// SpaceCreated event never admits a new canonical node; a TrustExtended
// event only matters if its source is already in the canonical set.
func AffectsCanonical(e Event, canonicalSet map[ids.ID]struct{}) bool {
	switch e.Kind {
	case EventSpaceCreated:
		return false
	case EventTrustExtended:
		_, ok := canonicalSet[e.Edge.SourceSpace]
		return ok
	default:
		return false
	}
}

func deepCopy(n *TreeNode) *TreeNode {
	if n == nil {
		return nil
	}
	cp := &TreeNode{SpaceID: n.SpaceID, EdgeType: n.EdgeType, TopicID: n.TopicID}
	for _, c := range n.Children {
		cp.Children = append(cp.Children, deepCopy(c))
	}
	return cp
}
