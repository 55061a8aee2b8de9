package topology

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/hermesgraph/ingestd/internal/ids"
)

// EdgeType tags how a TreeNode is reached from its parent.
type EdgeType int

const (
	EdgeRoot EdgeType = iota
	EdgeVerified
	EdgeRelated
	EdgeTopic
)

// TreeNode is a node in a computed subgraph. Per spec §9, trees are built
// from a children-index keyed by id (an arena), never as owning pointer
// graphs, so cycles in the underlying trust graph cannot create reference
// cycles here.
type TreeNode struct {
	SpaceID  ids.ID
	EdgeType EdgeType
	TopicID  *ids.ID
	Children []*TreeNode
}

func sortIDs(s []ids.ID) {
	sort.Slice(s, func(i, j int) bool { return idLess(s[i], s[j]) })
}

func idLess(a, b ids.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// structuralHash computes a hash of tree shape only: per node, space_id,
// edge_type, topic_id and child count, then the children in recorded
// order — insensitive to
// insertion-order history beyond what's already baked into child order
// (spec §4.1 "Change detection").
func structuralHash(root *TreeNode) [32]byte {
	h := sha256.New()
	hashNode(h, root)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hashNode(h interface{ Write([]byte) (int, error) }, n *TreeNode) {
	if n == nil {
		return
	}
	h.Write(n.SpaceID[:])
	var et [4]byte
	binary.BigEndian.PutUint32(et[:], uint32(n.EdgeType))
	h.Write(et[:])
	if n.TopicID != nil {
		h.Write(n.TopicID[:])
	} else {
		h.Write(ids.Nil[:])
	}
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(n.Children)))
	h.Write(count[:])
	for _, c := range n.Children {
		hashNode(h, c)
	}
}

// filterToSet recursively prunes n so only nodes in keep survive. The root
// itself is assumed to already be in keep; returns nil if root is excluded.
func filterToSet(n *TreeNode, keep map[ids.ID]struct{}) *TreeNode {
	if n == nil {
		return nil
	}
	if _, ok := keep[n.SpaceID]; !ok {
		return nil
	}
	filtered := &TreeNode{
		SpaceID:  n.SpaceID,
		EdgeType: n.EdgeType,
		TopicID:  n.TopicID,
	}
	for _, c := range n.Children {
		if fc := filterToSet(c, keep); fc != nil {
			filtered.Children = append(filtered.Children, fc)
		}
	}
	return filtered
}

// collectFlat walks the tree collecting every space id into flat.
func collectFlat(n *TreeNode, flat map[ids.ID]struct{}) {
	if n == nil {
		return
	}
	flat[n.SpaceID] = struct{}{}
	for _, c := range n.Children {
		collectFlat(c, flat)
	}
}

// findAll returns every node in the tree (including root) whose SpaceID
// equals target, used to attach a topic subtree "everywhere source appears
// in the tree" (spec §4.1 Canonical Processor, topic phase).
func findAll(n *TreeNode, target ids.ID, out *[]*TreeNode) {
	if n == nil {
		return
	}
	if n.SpaceID == target {
		*out = append(*out, n)
	}
	for _, c := range n.Children {
		findAll(c, target, out)
	}
}
