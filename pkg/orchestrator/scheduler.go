package orchestrator

import (
	"sort"

	"github.com/aubira/flowd/pkg/models"
)

// scheduler tracks unmet-dependency counts per node and releases a node only
// when all of its dependencies have produced a result (Kahn's algorithm). The
// ready queue is FIFO, so sibling order follows workflow declaration order.
type scheduler struct {
	workflow *models.Workflow
	indegree map[string]int
	ready    []string
	released int
}

func newScheduler(workflow *models.Workflow) *scheduler {
	s := &scheduler{
		workflow: workflow,
		indegree: make(map[string]int, len(workflow.Nodes)),
	}

	for _, node := range workflow.Nodes {
		s.indegree[node.ID] = 0
	}

	for _, edge := range workflow.Edges {
		s.indegree[edge.Target]++
	}

	for _, node := range workflow.Nodes {
		if s.indegree[node.ID] == 0 {
			s.ready = append(s.ready, node.ID)
		}
	}

	return s
}

// verifyAcyclic runs a full dry pass over a copy of the counts. It returns a
// CycleError naming the unreachable nodes if any node can never be released.
func verifyAcyclic(workflow *models.Workflow) error {
	s := newScheduler(workflow)

	scheduled := 0

	for {
		id, ok := s.next()
		if !ok {
			break
		}

		scheduled++

		s.complete(id)
	}

	if scheduled == len(workflow.Nodes) {
		return nil
	}

	var stuck []string

	for id, count := range s.indegree {
		if count > 0 {
			stuck = append(stuck, id)
		}
	}

	sort.Strings(stuck)

	return &CycleError{WorkflowID: workflow.ID, Nodes: stuck}
}

// next pops the next ready node id.
func (s *scheduler) next() (string, bool) {
	if len(s.ready) == 0 {
		return "", false
	}

	id := s.ready[0]
	s.ready = s.ready[1:]
	s.released++

	return id, true
}

// complete marks a node done and releases dependents whose last unmet
// dependency this was.
func (s *scheduler) complete(id string) {
	for _, dependent := range s.workflow.Dependents(id) {
		s.indegree[dependent]--

		if s.indegree[dependent] == 0 {
			s.ready = append(s.ready, dependent)
		}
	}
}
