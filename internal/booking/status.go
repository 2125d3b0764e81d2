package booking

import "github.com/avelora/clinic-scheduler/internal/model"

// DefaultTransitions is the production transition graph. Terminal states
// (cancelled, completed, no_show) have no outgoing edges.
var DefaultTransitions = map[model.Status][]model.Status{
	model.StatusBooked:    {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled, model.StatusNoShow},
}

// StatusMachine validates status transitions. A nil graph checks set
// membership only; with a graph it also enforces reachability from the
// current state.
type StatusMachine struct {
	graph map[model.Status][]model.Status
}

func NewStatusMachine(graph map[model.Status][]model.Status) *StatusMachine {
	return &StatusMachine{graph: graph}
}

// Validate parses the requested target and checks whether the transition is
// allowed from the current state. Returns ErrInvalidStatus otherwise.
func (m *StatusMachine) Validate(current model.Status, target string) (model.Status, error) {
	next, ok := model.ParseStatus(target)
	if !ok {
		return "", ErrInvalidStatus
	}
	if m.graph == nil {
		return next, nil
	}
	for _, allowed := range m.graph[current] {
		if allowed == next {
			return next, nil
		}
	}
	return "", ErrInvalidStatus
}
