package topology

import (
	"sort"
	"sync"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

// TransitiveGraph is the BFS closure rooted at Root: Full follows explicit
// and topic edges, explicit-only follows Verified/Related edges alone.
type TransitiveGraph struct {
	Root ids.ID
	Tree *TreeNode
	Flat map[ids.ID]struct{}
	Hash [32]byte
}

type edgeTuple struct {
	target   ids.ID
	edgeType EdgeType
	topicID  *ids.ID
}

// TransitiveProcessor lazily computes and memoizes full and explicit-only
// transitive graphs per space, exclusively owning its two caches and the
// reverse-dependency index used for invalidation.
type TransitiveProcessor struct {
	mu sync.Mutex

	full         map[ids.ID]*TransitiveGraph
	explicitOnly map[ids.ID]*TransitiveGraph

	// reverseDeps[n] = set of roots whose cached graph includes node n.
	reverseDeps map[ids.ID]map[ids.ID]struct{}
}

// NewTransitiveProcessor constructs an empty processor.
func NewTransitiveProcessor() *TransitiveProcessor {
	return &TransitiveProcessor{
		full:         make(map[ids.ID]*TransitiveGraph),
		explicitOnly: make(map[ids.ID]*TransitiveGraph),
		reverseDeps:  make(map[ids.ID]map[ids.ID]struct{}),
	}
}

// Full returns the memoized full transitive graph for root, computing it
// if absent.
func (p *TransitiveProcessor) Full(state *GraphState, root ids.ID) *TransitiveGraph {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.full[root]; ok {
		return g
	}
	g := p.compute(state, root, true)
	p.full[root] = g
	p.recordDeps(g)
	return g
}

// ExplicitOnly returns the memoized explicit-only transitive graph for
// root, computing it if absent.
func (p *TransitiveProcessor) ExplicitOnly(state *GraphState, root ids.ID) *TransitiveGraph {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.explicitOnly[root]; ok {
		return g
	}
	g := p.compute(state, root, false)
	p.explicitOnly[root] = g
	p.recordDeps(g)
	return g
}

func (p *TransitiveProcessor) recordDeps(g *TransitiveGraph) {
	for n := range g.Flat {
		if p.reverseDeps[n] == nil {
			p.reverseDeps[n] = make(map[ids.ID]struct{})
		}
		p.reverseDeps[n][g.Root] = struct{}{}
	}
}

// compute runs the BFS algorithm from spec §4.1. followTopics selects the
// "full" flavor (explicit + topic edges) vs "explicit-only".
func (p *TransitiveProcessor) compute(state *GraphState, root ids.ID, followTopics bool) *TransitiveGraph {
	type meta struct {
		edgeType EdgeType
		topicID  *ids.ID
	}

	visited := map[ids.ID]struct{}{root: {}}
	metadata := map[ids.ID]meta{root: {edgeType: EdgeRoot}}
	childrenIndex := map[ids.ID][]ids.ID{}
	queue := []ids.ID{root}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var tuples []edgeTuple
		for _, e := range state.GetExplicitEdges(current) {
			et := EdgeVerified
			if e.Kind == model.TrustEdgeRelated {
				et = EdgeRelated
			}
			tuples = append(tuples, edgeTuple{target: e.TargetSpace, edgeType: et})
		}
		if followTopics {
			for _, e := range state.GetTopicEdges(current) {
				topic := e.TargetTopic
				for _, member := range state.GetTopicMembers(topic) {
					t := topic
					tuples = append(tuples, edgeTuple{target: member, edgeType: EdgeTopic, topicID: &t})
				}
			}
		}

		sort.Slice(tuples, func(i, j int) bool { return idLess(tuples[i].target, tuples[j].target) })

		for _, t := range tuples {
			if _, already := visited[t.target]; already {
				continue
			}
			visited[t.target] = struct{}{}
			metadata[t.target] = meta{edgeType: t.edgeType, topicID: t.topicID}
			childrenIndex[current] = append(childrenIndex[current], t.target)
			queue = append(queue, t.target)
		}
	}

	var build func(id ids.ID) *TreeNode
	build = func(id ids.ID) *TreeNode {
		m := metadata[id]
		node := &TreeNode{SpaceID: id, EdgeType: m.edgeType, TopicID: m.topicID}
		for _, childID := range childrenIndex[id] {
			node.Children = append(node.Children, build(childID))
		}
		return node
	}

	tree := build(root)
	flat := make(map[ids.ID]struct{}, len(visited))
	for id := range visited {
		flat[id] = struct{}{}
	}

	return &TransitiveGraph{
		Root: root,
		Tree: tree,
		Flat: flat,
		Hash: structuralHash(tree),
	}
}

// Invalidate removes space's own cached graphs, then removes the cached
// graphs of every root that depended on space (spec §4.1 "Invalidate(space s)").
func (p *TransitiveProcessor) Invalidate(space ids.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidateLocked(space)
}

func (p *TransitiveProcessor) invalidateLocked(space ids.ID) {
	delete(p.full, space)
	delete(p.explicitOnly, space)

	dependents := p.reverseDeps[space]
	for root := range dependents {
		delete(p.full, root)
		delete(p.explicitOnly, root)
	}
}

// HasCached reports whether either cache currently holds an entry for root;
// used by tests asserting the invalidation invariant (spec §8).
func (p *TransitiveProcessor) HasCached(root ids.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, inFull := p.full[root]
	_, inExplicit := p.explicitOnly[root]
	return inFull || inExplicit
}
