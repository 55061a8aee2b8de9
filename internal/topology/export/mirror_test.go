package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/topology"
)

func TestFlattenDedupesNodesKeepsPerParentEdges(t *testing.T) {
	root := [16]byte{0x01}
	a := [16]byte{0x02}
	b := [16]byte{0x03}
	topicID := [16]byte{0xf0}

	// root -> a (verified), root -> b (topic), a -> b (verified): b is
	// reachable from two parents and must appear once as a node, twice
	// as an edge.
	tree := &topology.TreeNode{
		SpaceID:  root,
		EdgeType: topology.EdgeRoot,
		Children: []*topology.TreeNode{
			{
				SpaceID:  a,
				EdgeType: topology.EdgeVerified,
				Children: []*topology.TreeNode{
					{SpaceID: b, EdgeType: topology.EdgeVerified},
				},
			},
			{
				SpaceID:  b,
				EdgeType: topology.EdgeTopic,
				TopicID:  &topicID,
			},
		},
	}

	graph := &topology.CanonicalGraph{
		Root: root,
		Tree: tree,
		Flat: map[ids.ID]struct{}{root: {}, a: {}, b: {}},
	}

	nodes, edges := flatten(graph)

	require.Len(t, nodes, 3)
	var rootNode *spaceNode
	for i := range nodes {
		if nodes[i].SpaceID == idString(root) {
			rootNode = &nodes[i]
		}
	}
	require.NotNil(t, rootNode)
	assert.True(t, rootNode.IsRoot)

	require.Len(t, edges, 3)

	var topicEdge *treeEdge
	for i := range edges {
		if edges[i].EdgeType == "topic" {
			topicEdge = &edges[i]
		}
	}
	require.NotNil(t, topicEdge)
	assert.Equal(t, idString(topicID), topicEdge.TopicID)
}

func TestNoopMirrorNeverErrors(t *testing.T) {
	m := NoopMirror{}
	require.NoError(t, m.WriteCanonicalGraph(nil, nil))
	require.NoError(t, m.Close(nil))
}

func idString(id [16]byte) string {
	return ids.ID(id).String()
}
