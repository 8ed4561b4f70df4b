// Package models defines the core domain models for DAG-based workflow execution.
package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Node is a single unit of work in a workflow graph. Its type tag selects the
// processor that executes it; Config is opaque to the engine and interpreted by
// the processor. Position is canvas metadata and irrelevant to execution.
type Node struct {
	ID        string         `json:"id"     validate:"required"`
	Type      string         `json:"type"   validate:"required"`
	Config    map[string]any `json:"config"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
}

// Edge is a directed dependency from Source to Target.
type Edge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Workflow is the wire format the engine consumes: a graph of typed nodes and
// directed edges. How the definition reaches the engine (API, file) is the
// caller's concern.
type Workflow struct {
	ID          string         `json:"id"          validate:"required"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Nodes       []*Node        `json:"nodes"       validate:"required,min=1,dive"`
	Edges       []*Edge        `json:"edges"       validate:"dive"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// Validate enforces the field constraints and the graph invariants: node ids
// are unique within the workflow and every edge endpoint references an
// existing node.
func (w *Workflow) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("workflow failed field validation: %w", err)
	}

	seen := make(map[string]struct{}, len(w.Nodes))

	for _, node := range w.Nodes {
		if _, dup := seen[node.ID]; dup {
			return fmt.Errorf("duplicate node id %q in workflow %s", node.ID, w.ID)
		}

		seen[node.ID] = struct{}{}
	}

	for _, edge := range w.Edges {
		if _, ok := seen[edge.Source]; !ok {
			return fmt.Errorf("edge source %q references unknown node in workflow %s", edge.Source, w.ID)
		}

		if _, ok := seen[edge.Target]; !ok {
			return fmt.Errorf("edge target %q references unknown node in workflow %s", edge.Target, w.ID)
		}
	}

	return nil
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// Dependencies returns the ids of all nodes the given node depends on, in edge
// declaration order.
func (w *Workflow) Dependencies(nodeID string) []string {
	var deps []string

	for _, edge := range w.Edges {
		if edge.Target == nodeID {
			deps = append(deps, edge.Source)
		}
	}

	return deps
}

// Dependents returns the ids of all nodes that depend on the given node, in
// edge declaration order.
func (w *Workflow) Dependents(nodeID string) []string {
	var deps []string

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			deps = append(deps, edge.Target)
		}
	}

	return deps
}

// StartingNodes returns the nodes with no incoming edge.
func (w *Workflow) StartingNodes() []*Node {
	incoming := make(map[string]bool, len(w.Nodes))
	for _, edge := range w.Edges {
		incoming[edge.Target] = true
	}

	var starts []*Node

	for _, node := range w.Nodes {
		if !incoming[node.ID] {
			starts = append(starts, node)
		}
	}

	return starts
}
