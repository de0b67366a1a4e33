package experiment

import (
	"sort"

	"github.com/ignite/newsletter-engine/internal/domain"
)

// State is the plain-record form of the registry used by snapshot stores.
type State struct {
	Experiments []domain.Experiment      `json:"experiments"`
	Assignments []domain.Assignment      `json:"assignments"`
	Events      []domain.ExperimentEvent `json:"events"`
}

// Export copies the registry contents. Assignments are ordered by
// experiment then recipient so repeated exports are identical.
func (r *Registry) Export() State {
	r.mu.RLock()
	st := State{
		Experiments: make([]domain.Experiment, 0, len(r.experiments)),
		Assignments: make([]domain.Assignment, 0, len(r.assignments)),
		Events:      make([]domain.ExperimentEvent, len(r.events)),
	}
	for _, exp := range r.experiments {
		st.Experiments = append(st.Experiments, *cloneExperiment(exp))
	}
	for _, a := range r.assignments {
		st.Assignments = append(st.Assignments, a)
	}
	copy(st.Events, r.events)
	r.mu.RUnlock()

	sort.Slice(st.Experiments, func(i, j int) bool {
		return st.Experiments[i].CreatedAt.Before(st.Experiments[j].CreatedAt) ||
			(st.Experiments[i].CreatedAt.Equal(st.Experiments[j].CreatedAt) && st.Experiments[i].ID < st.Experiments[j].ID)
	})
	sort.Slice(st.Assignments, func(i, j int) bool {
		if st.Assignments[i].ExperimentID != st.Assignments[j].ExperimentID {
			return st.Assignments[i].ExperimentID < st.Assignments[j].ExperimentID
		}
		return st.Assignments[i].Recipient < st.Assignments[j].Recipient
	})
	return st
}

// Import replaces the registry contents with st. Experiments are trusted
// as previously validated; status and timestamps are kept as recorded.
func (r *Registry) Import(st State) {
	experiments := make(map[string]*domain.Experiment, len(st.Experiments))
	for i := range st.Experiments {
		experiments[st.Experiments[i].ID] = cloneExperiment(&st.Experiments[i])
	}
	assignments := make(map[assignmentKey]domain.Assignment, len(st.Assignments))
	for _, a := range st.Assignments {
		assignments[assignmentKey{experimentID: a.ExperimentID, recipient: a.Recipient}] = a
	}
	events := make([]domain.ExperimentEvent, len(st.Events))
	copy(events, st.Events)

	r.mu.Lock()
	r.experiments = experiments
	r.assignments = assignments
	r.events = events
	r.mu.Unlock()

	r.log.Info("registry restored", "experiments", len(experiments), "assignments", len(assignments), "events", len(events))
}
