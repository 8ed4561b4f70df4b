package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamond() *Workflow {
	return &Workflow{
		ID: "wf-1",
		Nodes: []*Node{
			{ID: "a", Type: "trigger"},
			{ID: "b", Type: "transform"},
			{ID: "c", Type: "transform"},
			{ID: "d", Type: "email"},
		},
		Edges: []*Edge{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "c"},
			{Source: "b", Target: "d"},
			{Source: "c", Target: "d"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		workflow *Workflow
		wantErr  string
	}{
		{
			name:     "valid diamond",
			workflow: diamond(),
		},
		{
			name: "missing workflow id",
			workflow: &Workflow{
				Nodes: []*Node{{ID: "a", Type: "trigger"}},
			},
			wantErr: "failed field validation",
		},
		{
			name:     "no nodes",
			workflow: &Workflow{ID: "wf-1"},
			wantErr:  "failed field validation",
		},
		{
			name: "node missing type",
			workflow: &Workflow{
				ID:    "wf-1",
				Nodes: []*Node{{ID: "a"}},
			},
			wantErr: "failed field validation",
		},
		{
			name: "edge missing target",
			workflow: &Workflow{
				ID:    "wf-1",
				Nodes: []*Node{{ID: "a", Type: "trigger"}},
				Edges: []*Edge{{Source: "a"}},
			},
			wantErr: "failed field validation",
		},
		{
			name: "duplicate node id",
			workflow: &Workflow{
				ID:    "wf-1",
				Nodes: []*Node{{ID: "a", Type: "trigger"}, {ID: "a", Type: "email"}},
			},
			wantErr: `duplicate node id "a"`,
		},
		{
			name: "edge source unknown",
			workflow: &Workflow{
				ID:    "wf-1",
				Nodes: []*Node{{ID: "a", Type: "trigger"}},
				Edges: []*Edge{{Source: "ghost", Target: "a"}},
			},
			wantErr: `edge source "ghost"`,
		},
		{
			name: "edge target unknown",
			workflow: &Workflow{
				ID:    "wf-1",
				Nodes: []*Node{{ID: "a", Type: "trigger"}},
				Edges: []*Edge{{Source: "a", Target: "ghost"}},
			},
			wantErr: `edge target "ghost"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.workflow.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNodeByID(t *testing.T) {
	wf := diamond()

	require.NotNil(t, wf.NodeByID("b"))
	assert.Equal(t, "transform", wf.NodeByID("b").Type)
	assert.Nil(t, wf.NodeByID("ghost"))
}

func TestDependenciesAndDependents(t *testing.T) {
	wf := diamond()

	assert.Empty(t, wf.Dependencies("a"))
	assert.Equal(t, []string{"b", "c"}, wf.Dependencies("d"))
	assert.Equal(t, []string{"b", "c"}, wf.Dependents("a"))
	assert.Empty(t, wf.Dependents("d"))
}

func TestStartingNodes(t *testing.T) {
	wf := diamond()

	starts := wf.StartingNodes()
	require.Len(t, starts, 1)
	assert.Equal(t, "a", starts[0].ID)

	wf.Edges = nil
	assert.Len(t, wf.StartingNodes(), 4)
}
