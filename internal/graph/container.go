// Package graph holds the working copy of a diagram's nodes and edges during
// an editing session. The container is independent of the persisted copy;
// nothing reaches the store until the caller saves a snapshot.
package graph

import (
	"fmt"

	"github.com/kushan1992/diagram-builder/internal/perm"
	"github.com/kushan1992/diagram-builder/internal/store"
	"github.com/kushan1992/diagram-builder/internal/util"
)

// Shapes is the closed set of node shapes.
var Shapes = map[string]struct{}{
	"rectangle": {},
	"square":    {},
	"circle":    {},
	"diamond":   {},
}

func ValidShape(shape string) bool {
	_, ok := Shapes[shape]
	return ok
}

type Container struct {
	caps  perm.Capabilities
	nodes []store.Node
	edges []store.Edge
}

func NewContainer(caps perm.Capabilities) *Container {
	return &Container{caps: caps, nodes: []store.Node{}, edges: []store.Edge{}}
}

// Load replaces the working copy with the given sequences after validating
// them: shapes must come from the closed set, node ids must be unique, and
// every edge must reference existing nodes.
func (c *Container) Load(nodes []store.Node, edges []store.Edge) error {
	seen := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		if node.ID == "" {
			return fmt.Errorf("node without id")
		}
		if _, dup := seen[node.ID]; dup {
			return fmt.Errorf("duplicate node id %q", node.ID)
		}
		if !ValidShape(node.Type) {
			return fmt.Errorf("unknown node shape %q", node.Type)
		}
		seen[node.ID] = struct{}{}
	}
	for _, edge := range edges {
		if _, ok := seen[edge.Source]; !ok {
			return fmt.Errorf("edge %q references missing source %q", edge.ID, edge.Source)
		}
		if _, ok := seen[edge.Target]; !ok {
			return fmt.Errorf("edge %q references missing target %q", edge.ID, edge.Target)
		}
	}

	c.nodes = append([]store.Node{}, nodes...)
	c.edges = append([]store.Edge{}, edges...)
	return nil
}

// AddNode appends a node with a freshly generated id. Structural changes are
// rejected as a no-op for non-editors; this is a UX-trust boundary, the store
// side enforces the same rule independently.
func (c *Container) AddNode(shape, label string, position store.Position) (store.Node, bool) {
	if !c.caps.CanEdit || !ValidShape(shape) {
		return store.Node{}, false
	}
	if label == "" {
		label = fmt.Sprintf("Node %d", len(c.nodes)+1)
	}
	node := store.Node{
		ID:       util.NewID("node"),
		Type:     shape,
		Position: position,
		Data:     store.NodeData{Label: label},
	}
	c.nodes = append(c.nodes, node)
	return node, true
}

// DeleteNode removes the node and, in the same step, every edge referencing
// it. Deleting an absent id leaves the container unchanged.
func (c *Container) DeleteNode(nodeID string) {
	if !c.caps.CanEdit {
		return
	}

	kept := c.nodes[:0]
	found := false
	for _, node := range c.nodes {
		if node.ID == nodeID {
			found = true
			continue
		}
		kept = append(kept, node)
	}
	if !found {
		return
	}
	c.nodes = kept

	keptEdges := c.edges[:0]
	for _, edge := range c.edges {
		if edge.Source == nodeID || edge.Target == nodeID {
			continue
		}
		keptEdges = append(keptEdges, edge)
	}
	c.edges = keptEdges
}

// Connect appends an edge between two existing nodes.
func (c *Container) Connect(sourceID, targetID, sourceHandle, targetHandle string) (store.Edge, bool) {
	if !c.caps.CanEdit {
		return store.Edge{}, false
	}
	if !c.hasNode(sourceID) || !c.hasNode(targetID) {
		return store.Edge{}, false
	}
	edge := store.Edge{
		ID:           util.NewID("edge"),
		Source:       sourceID,
		Target:       targetID,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}
	c.edges = append(c.edges, edge)
	return edge, true
}

// MoveNode updates a node's position. Moves are allowed for non-editors too;
// they never persist because save is gated on CanEdit.
func (c *Container) MoveNode(nodeID string, position store.Position) bool {
	for i := range c.nodes {
		if c.nodes[i].ID == nodeID {
			c.nodes[i].Position = position
			return true
		}
	}
	return false
}

// Snapshot returns copies of the working sequences for persistence.
func (c *Container) Snapshot() ([]store.Node, []store.Edge) {
	nodes := append([]store.Node{}, c.nodes...)
	edges := append([]store.Edge{}, c.edges...)
	return nodes, edges
}

func (c *Container) hasNode(nodeID string) bool {
	for _, node := range c.nodes {
		if node.ID == nodeID {
			return true
		}
	}
	return false
}
