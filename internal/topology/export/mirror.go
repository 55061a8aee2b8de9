// Package export mirrors the canonical graph the topology engine computes
// (spec §4.1) into Neo4j via idempotent MERGE writes, adapted from the
// teacher's dependency-graph Neo4j backend (internal/graph/neo4j_backend.go,
// batch_operations.go) to the topology domain: one Space node per canonical
// member, one IN_TREE relationship per parent/child pair in the computed
// tree.
package export

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/topology"
)

// Mirror writes a computed canonical graph somewhere queryable outside the
// entity/value/relation store. Handler.handleSpaces/handleTrustEdges call
// this whenever Engine.Apply reports changed=true.
type Mirror interface {
	WriteCanonicalGraph(ctx context.Context, graph *topology.CanonicalGraph) error
	Close(ctx context.Context) error
}

// Neo4jMirror implements Mirror against a Neo4j database using the modern
// ExecuteQuery API (driver v5.8+, matching the teacher's backend).
type Neo4jMirror struct {
	driver    neo4j.DriverWithContext
	database  string
	batchSize int
}

// NewNeo4jMirror dials uri and verifies connectivity before returning.
// batchSize bounds how many nodes/edges go into a single UNWIND query;
// callers typically pass a few hundred to a few thousand (teacher's
// graph.DefaultBatchConfig range).
func NewNeo4jMirror(ctx context.Context, uri, username, password, database string, batchSize int) (*Neo4jMirror, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Neo4jMirror{driver: driver, database: database, batchSize: batchSize}, nil
}

func (m *Neo4jMirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}

// WriteCanonicalGraph flattens graph's tree into Space nodes and IN_TREE
// edges and MERGEs both in UNWIND batches. A space reachable through
// multiple tree paths is written once as a node but once per parent as an
// edge, matching the tree's actual shape (spec §4.1 "a node may appear
// under more than one parent").
func (m *Neo4jMirror) WriteCanonicalGraph(ctx context.Context, graph *topology.CanonicalGraph) error {
	if graph == nil || graph.Tree == nil {
		return nil
	}

	nodes, edges := flatten(graph)

	if err := m.writeNodes(ctx, nodes); err != nil {
		return fmt.Errorf("write space nodes: %w", err)
	}
	if err := m.writeEdges(ctx, edges); err != nil {
		return fmt.Errorf("write tree edges: %w", err)
	}
	return nil
}

type spaceNode struct {
	SpaceID string `json:"space_id"`
	IsRoot  bool   `json:"is_root"`
}

type treeEdge struct {
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
	EdgeType string `json:"edge_type"`
	TopicID  string `json:"topic_id"`
}

// flatten walks graph.Tree once, deduplicating nodes by space id while
// keeping one edge per parent/child occurrence.
func flatten(graph *topology.CanonicalGraph) ([]spaceNode, []treeEdge) {
	seen := make(map[ids.ID]struct{}, len(graph.Flat))
	var nodes []spaceNode
	var edges []treeEdge

	var walk func(n *topology.TreeNode)
	walk = func(n *topology.TreeNode) {
		if n == nil {
			return
		}
		if _, ok := seen[n.SpaceID]; !ok {
			seen[n.SpaceID] = struct{}{}
			nodes = append(nodes, spaceNode{SpaceID: n.SpaceID.String(), IsRoot: n.SpaceID == graph.Root})
		}
		for _, c := range n.Children {
			edges = append(edges, treeEdge{
				ParentID: n.SpaceID.String(),
				ChildID:  c.SpaceID.String(),
				EdgeType: edgeTypeName(c.EdgeType),
				TopicID:  topicIDString(c.TopicID),
			})
			walk(c)
		}
	}
	walk(graph.Tree)

	return nodes, edges
}

func edgeTypeName(t topology.EdgeType) string {
	switch t {
	case topology.EdgeVerified:
		return "verified"
	case topology.EdgeRelated:
		return "related"
	case topology.EdgeTopic:
		return "topic"
	default:
		return "root"
	}
}

func topicIDString(topicID *ids.ID) string {
	if topicID == nil {
		return ""
	}
	return topicID.String()
}

// writeNodes MERGEs Space nodes in batches of m.batchSize using the
// UNWIND pattern (grounded on graph/batch_operations.go's CreateFileNodes).
func (m *Neo4jMirror) writeNodes(ctx context.Context, nodes []spaceNode) error {
	for start := 0; start < len(nodes); start += m.batchSize {
		end := start + m.batchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[start:end]

		params := make([]map[string]any, len(batch))
		for i, n := range batch {
			params[i] = map[string]any{"space_id": n.SpaceID, "is_root": n.IsRoot}
		}

		const query = `
			UNWIND $nodes AS node
			MERGE (s:Space {space_id: node.space_id})
			SET s.is_root = node.is_root
		`
		if _, err := neo4j.ExecuteQuery(ctx, m.driver, query,
			map[string]any{"nodes": params},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(m.database)); err != nil {
			return fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// writeEdges MERGEs a single IN_TREE relationship type per parent/child
// pair, carrying edge_type/topic_id as properties rather than dynamic
// relationship labels (grounded on graph/batch_operations.go's
// createEdgesBatchByType, which needed Cypher's WHERE-based label match to
// work around the same dynamic-label limitation).
func (m *Neo4jMirror) writeEdges(ctx context.Context, edges []treeEdge) error {
	for start := 0; start < len(edges); start += m.batchSize {
		end := start + m.batchSize
		if end > len(edges) {
			end = len(edges)
		}
		batch := edges[start:end]

		params := make([]map[string]any, len(batch))
		for i, e := range batch {
			params[i] = map[string]any{
				"parent_id": e.ParentID,
				"child_id":  e.ChildID,
				"edge_type": e.EdgeType,
				"topic_id":  e.TopicID,
			}
		}

		const query = `
			UNWIND $edges AS edge
			MATCH (p:Space {space_id: edge.parent_id})
			MATCH (c:Space {space_id: edge.child_id})
			MERGE (p)-[r:IN_TREE]->(c)
			SET r.edge_type = edge.edge_type, r.topic_id = edge.topic_id
		`
		if _, err := neo4j.ExecuteQuery(ctx, m.driver, query,
			map[string]any{"edges": params},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(m.database)); err != nil {
			return fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}
