package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesgraph/ingestd/internal/model"
)

func verifiedEdge(src, tgt [16]byte) Event {
	return Event{Kind: EventTrustExtended, Edge: model.TrustEdge{
		SourceSpace: src, Kind: model.TrustEdgeVerified, TargetSpace: tgt,
	}}
}

func subtopicEdge(src, topic [16]byte) Event {
	return Event{Kind: EventTrustExtended, Edge: model.TrustEdge{
		SourceSpace: src, Kind: model.TrustEdgeSubtopic, TargetTopic: topic,
	}}
}

func spaceCreated(space, topic [16]byte) Event {
	return Event{Kind: EventSpaceCreated, SpaceID: space, TopicID: topic}
}

// TestS1ExplicitChain: Root→A, A→B. Canonical(Root).flat = {Root,A,B}.
func TestS1ExplicitChain(t *testing.T) {
	root := [16]byte{0x01}
	a := [16]byte{0x02}
	b := [16]byte{0x03}

	e := NewEngine(root)
	e.Apply(spaceCreated(root, [16]byte{0xf0}))
	e.Apply(spaceCreated(a, [16]byte{0xf1}))
	e.Apply(spaceCreated(b, [16]byte{0xf2}))
	e.Apply(verifiedEdge(root, a))
	g, changed := e.Apply(verifiedEdge(a, b))

	require.True(t, changed)
	assert.Len(t, g.Flat, 3)
	for _, s := range []([16]byte){root, a, b} {
		_, ok := g.Flat[s]
		assert.True(t, ok, "expected %x in canonical flat", s)
	}
}

// TestS2TopicEdgeNonCanonicalTarget: C announces topic not reachable
// explicitly from Root; C must be excluded.
func TestS2TopicEdgeNonCanonicalTarget(t *testing.T) {
	root := [16]byte{0x01}
	a := [16]byte{0x02}
	c := [16]byte{0x03}
	topic := [16]byte{0x03}

	e := NewEngine(root)
	e.Apply(spaceCreated(root, [16]byte{0xf0}))
	e.Apply(spaceCreated(a, [16]byte{0xf1}))
	e.Apply(spaceCreated(c, topic))
	e.Apply(verifiedEdge(root, a))
	g, _ := e.Apply(subtopicEdge(root, topic))

	assert.Len(t, g.Flat, 2)
	_, hasC := g.Flat[c]
	assert.False(t, hasC)
}

// TestS3TopicEdgeCanonicalTargetWithSubtree: B announces topic 0x03 and is
// explicitly reachable; A's topic edge to that topic attaches B's subtree
// under A in addition to its explicit position under Root.
func TestS3TopicEdgeCanonicalTargetWithSubtree(t *testing.T) {
	root := [16]byte{0x01}
	a := [16]byte{0x02}
	b := [16]byte{0x03}
	c := [16]byte{0x04}
	d := [16]byte{0x05}
	topic := [16]byte{0x03}

	e := NewEngine(root)
	for _, s := range []([16]byte){root, a, c, d} {
		e.Apply(spaceCreated(s, [16]byte{0xff}))
	}
	e.Apply(spaceCreated(b, topic))

	e.Apply(verifiedEdge(root, a))
	e.Apply(verifiedEdge(root, b))
	e.Apply(verifiedEdge(b, c))
	e.Apply(verifiedEdge(c, d))
	g, _ := e.Apply(subtopicEdge(a, topic))

	assert.Len(t, g.Flat, 5)

	var found []*TreeNode
	findAll(g.Tree, a, &found)
	require.Len(t, found, 1)
	require.NotEmpty(t, found[0].Children, "expected B's subtree attached under A via topic edge")
}

// TestS4IdempotentCanonical: two consecutive computes on unchanged state;
// first returns changed, second does not.
func TestS4IdempotentCanonical(t *testing.T) {
	root := [16]byte{0x01}
	a := [16]byte{0x02}

	e := NewEngine(root)
	e.Apply(spaceCreated(root, [16]byte{0xf0}))
	e.Apply(spaceCreated(a, [16]byte{0xf1}))
	_, changed := e.Apply(verifiedEdge(root, a))
	require.True(t, changed)

	_, changedAgain := e.Canonical.Compute(e.State, e.Transitive, e.CanonicalRoot)
	assert.False(t, changedAgain)
}

// TestExplicitOnlySubsetOfFull: universal invariant explicit_only(s).flat ⊆ full(s).flat.
func TestExplicitOnlySubsetOfFull(t *testing.T) {
	root := [16]byte{0x01}
	a := [16]byte{0x02}
	topicMember := [16]byte{0x03}
	topic := [16]byte{0x09}

	e := NewEngine(root)
	e.Apply(spaceCreated(root, [16]byte{0xf0}))
	e.Apply(spaceCreated(a, [16]byte{0xf1}))
	e.Apply(spaceCreated(topicMember, topic))
	e.Apply(verifiedEdge(root, a))
	e.Apply(subtopicEdge(root, topic))

	explicit := e.Transitive.ExplicitOnly(e.State, root)
	full := e.Transitive.Full(e.State, root)

	for id := range explicit.Flat {
		_, ok := full.Flat[id]
		assert.True(t, ok)
	}
}

// TestStructuralHashInsensitiveToInsertionOrder: hash depends on shape only.
func TestStructuralHashInsensitiveToInsertionOrder(t *testing.T) {
	root := [16]byte{0x01}
	a := [16]byte{0x02}
	b := [16]byte{0x03}

	e1 := NewEngine(root)
	e1.Apply(spaceCreated(root, [16]byte{0xf0}))
	e1.Apply(spaceCreated(a, [16]byte{0xf1}))
	e1.Apply(spaceCreated(b, [16]byte{0xf2}))
	e1.Apply(verifiedEdge(root, a))
	e1.Apply(verifiedEdge(root, b))

	e2 := NewEngine(root)
	e2.Apply(spaceCreated(b, [16]byte{0xf2}))
	e2.Apply(spaceCreated(root, [16]byte{0xf0}))
	e2.Apply(spaceCreated(a, [16]byte{0xf1}))
	e2.Apply(verifiedEdge(root, b))
	e2.Apply(verifiedEdge(root, a))

	t1 := e1.Transitive.Full(e1.State, root)
	t2 := e2.Transitive.Full(e2.State, root)
	assert.Equal(t, t1.Hash, t2.Hash)
}

// TestCacheInvalidationOnTrustExtended: after TrustExtended(src,tgt), the
// warmed cached transitive graph of src is gone.
func TestCacheInvalidationOnTrustExtended(t *testing.T) {
	root := [16]byte{0x01}
	a := [16]byte{0x02}
	b := [16]byte{0x03}

	e := NewEngine(root)
	e.Apply(spaceCreated(root, [16]byte{0xf0}))
	e.Apply(spaceCreated(a, [16]byte{0xf1}))
	e.Apply(spaceCreated(b, [16]byte{0xf2}))
	e.Apply(verifiedEdge(root, a))

	// Warm the cache for `a` before extending a new edge from it.
	e.Transitive.Full(e.State, a)
	require.True(t, e.Transitive.HasCached(a))

	e.Apply(verifiedEdge(a, b))
	assert.False(t, e.Transitive.HasCached(a))
}

// PendingFetches ordering (scenario S5) is tested by TestS5CIDOrdering in
// internal/ipfscache;
// not duplicated here.
