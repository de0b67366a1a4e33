package experiment

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/metrics"
	"github.com/ignite/newsletter-engine/internal/pkg/bucketing"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

const weightTolerance = 0.001

type assignmentKey struct {
	experimentID string
	recipient    string
}

// Registry stores experiments, assignments and events in memory.
// All public methods are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	experiments map[string]*domain.Experiment
	assignments map[assignmentKey]domain.Assignment
	events      []domain.ExperimentEvent

	now func() time.Time
	log *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		experiments: make(map[string]*domain.Experiment),
		assignments: make(map[assignmentKey]domain.Assignment),
		now:         time.Now,
		log:         logger.With("component", "experiment"),
	}
}

// SetClock replaces the time source used for timestamps.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Create validates def and stores it in draft status. An empty id is
// replaced with a generated one. The stored id is returned.
func (r *Registry) Create(def domain.Experiment) (string, error) {
	if err := Validate(def); err != nil {
		return "", err
	}
	exp := cloneExperiment(&def)
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.experiments[exp.ID]; ok {
		return "", fmt.Errorf("%w: %s", ErrAlreadyExists, exp.ID)
	}
	exp.Status = domain.ExperimentDraft
	exp.CreatedAt = r.now().UTC()
	exp.StartedAt = nil
	exp.EndedAt = nil
	r.experiments[exp.ID] = exp

	r.log.Info("experiment created", "experiment_id", exp.ID, "variants", len(exp.Variants))
	return exp.ID, nil
}

// Validate checks the structural invariants of an experiment definition.
func Validate(def domain.Experiment) error {
	if len(def.Variants) < 2 {
		return fmt.Errorf("%w: at least two variants are required, got %d", ErrInvalidConfiguration, len(def.Variants))
	}
	if !within(def.TrafficAllocation, 0, 1) {
		return fmt.Errorf("%w: traffic allocation %.3f outside [0,1]", ErrInvalidConfiguration, def.TrafficAllocation)
	}
	if !within(def.ConfidenceLevel, 0.5, 0.99) {
		return fmt.Errorf("%w: confidence level %.3f outside [0.5,0.99]", ErrInvalidConfiguration, def.ConfidenceLevel)
	}
	if def.MinimumSampleSize < 0 {
		return fmt.Errorf("%w: negative minimum sample size", ErrInvalidConfiguration)
	}

	seen := make(map[string]bool, len(def.Variants))
	var sum float64
	for _, v := range def.Variants {
		if v.ID == "" {
			return fmt.Errorf("%w: variant %q has no id", ErrInvalidConfiguration, v.Name)
		}
		if seen[v.ID] {
			return fmt.Errorf("%w: duplicate variant id %s", ErrInvalidConfiguration, v.ID)
		}
		seen[v.ID] = true
		if !within(v.TrafficWeight, 0, 1) {
			return fmt.Errorf("%w: variant %s weight %.3f outside [0,1]", ErrInvalidConfiguration, v.ID, v.TrafficWeight)
		}
		if h := v.Config.SendTimeHour; h != nil && (*h < 0 || *h > 23) {
			return fmt.Errorf("%w: variant %s send hour %d outside 0-23", ErrInvalidConfiguration, v.ID, *h)
		}
		sum += v.TrafficWeight
	}
	if !within(sum, 1-weightTolerance, 1+weightTolerance) {
		return fmt.Errorf("%w: variant weights sum to %.3f, want 1.0", ErrInvalidConfiguration, sum)
	}
	return nil
}

// within reports lo <= x <= hi. NaN is never within any range.
func within(x, lo, hi float64) bool {
	return x >= lo && x <= hi
}

// transitions lists, per target status, the states it may be entered from.
var transitions = map[domain.ExperimentStatus][]domain.ExperimentStatus{
	domain.ExperimentRunning:   {domain.ExperimentDraft, domain.ExperimentPaused},
	domain.ExperimentPaused:    {domain.ExperimentRunning},
	domain.ExperimentCompleted: {domain.ExperimentRunning},
	domain.ExperimentArchived:  {domain.ExperimentCompleted},
}

// Start moves a draft or paused experiment to running.
func (r *Registry) Start(id string) error {
	return r.transition(id, domain.ExperimentRunning)
}

// Stop completes a running experiment.
func (r *Registry) Stop(id string) error {
	return r.transition(id, domain.ExperimentCompleted)
}

// Pause suspends assignment of new recipients. Start resumes it.
func (r *Registry) Pause(id string) error {
	return r.transition(id, domain.ExperimentPaused)
}

// Archive retires a completed experiment.
func (r *Registry) Archive(id string) error {
	return r.transition(id, domain.ExperimentArchived)
}

func (r *Registry) transition(id string, to domain.ExperimentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	allowed := false
	for _, from := range transitions[to] {
		if exp.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: cannot move experiment %s from %s to %s", ErrInvalidConfiguration, id, exp.Status, to)
	}

	now := r.now().UTC()
	switch to {
	case domain.ExperimentRunning:
		exp.StartedAt = &now
	case domain.ExperimentCompleted:
		exp.EndedAt = &now
	}
	from := exp.Status
	exp.Status = to

	r.log.Info("experiment status changed", "experiment_id", id, "from", from, "to", to)
	return nil
}

// Assign returns the variant for recipient in the experiment. An existing
// assignment is returned unchanged; a new one requires the experiment to be
// running.
func (r *Registry) Assign(experimentID, recipient string, userID *int64) (_ domain.Assignment, err error) {
	key := assignmentKey{experimentID: experimentID, recipient: recipient}
	existing := false
	defer func() { metrics.ObserveAssignment(existing, err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[experimentID]
	if !ok {
		return domain.Assignment{}, fmt.Errorf("%w: %s", ErrNotFound, experimentID)
	}
	if a, ok := r.assignments[key]; ok {
		existing = true
		return a, nil
	}
	if !exp.IsActive() {
		return domain.Assignment{}, fmt.Errorf("%w: experiment %s is %s, not running", ErrInvalidConfiguration, experimentID, exp.Status)
	}

	variant := SelectVariant(exp, bucketing.Normalize(recipient))
	a := domain.Assignment{
		ExperimentID: experimentID,
		VariantID:    variant.ID,
		Recipient:    recipient,
		UserID:       userID,
		AssignedAt:   r.now().UTC(),
	}
	r.assignments[key] = a

	r.log.Debug("recipient assigned", "experiment_id", experimentID, "recipient", recipient, "variant_id", variant.ID)
	return a, nil
}

// SelectVariant picks the variant for a normalized hash in [0,1]. Hashes
// above the traffic allocation fall to the control variant; the rest walk
// the cumulative weights, with the last variant absorbing rounding.
func SelectVariant(exp *domain.Experiment, hash float64) domain.Variant {
	if hash > exp.TrafficAllocation {
		return exp.Control()
	}
	var cumulative float64
	for _, v := range exp.Variants {
		cumulative += v.TrafficWeight
		if hash <= cumulative {
			return v
		}
	}
	return exp.Variants[len(exp.Variants)-1]
}

// Assignment looks up an existing assignment without creating one.
func (r *Registry) Assignment(experimentID, recipient string) (domain.Assignment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assignments[assignmentKey{experimentID: experimentID, recipient: recipient}]
	return a, ok
}

// RecordEvent appends an event to the log. The variant is trusted to come
// from a prior assignment.
func (r *Registry) RecordEvent(experimentID, variantID, recipient string, userID *int64, kind domain.EventKind, payload map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.experiments[experimentID]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, experimentID)
	}
	evt := domain.ExperimentEvent{
		ID:           uuid.New().String(),
		ExperimentID: experimentID,
		VariantID:    variantID,
		Recipient:    recipient,
		UserID:       userID,
		Kind:         kind,
		Payload:      copyPayload(payload),
		Timestamp:    r.now().UTC(),
	}
	r.events = append(r.events, evt)
	return evt.ID, nil
}

// Get returns a copy of one experiment.
func (r *Registry) Get(id string) (domain.Experiment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exp, ok := r.experiments[id]
	if !ok {
		return domain.Experiment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *cloneExperiment(exp), nil
}

// List returns copies of every experiment, oldest first.
func (r *Registry) List() []domain.Experiment {
	r.mu.RLock()
	out := make([]domain.Experiment, 0, len(r.experiments))
	for _, exp := range r.experiments {
		out = append(out, *cloneExperiment(exp))
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Active returns the running experiments.
func (r *Registry) Active() []domain.Experiment {
	var out []domain.Experiment
	for _, exp := range r.List() {
		if exp.IsActive() {
			out = append(out, exp)
		}
	}
	return out
}

// EventCount returns the size of the event log.
func (r *Registry) EventCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

func cloneExperiment(e *domain.Experiment) *domain.Experiment {
	c := *e
	c.Variants = make([]domain.Variant, len(e.Variants))
	copy(c.Variants, e.Variants)
	return &c
}

func copyPayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
