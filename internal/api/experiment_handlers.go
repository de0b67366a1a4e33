package api

import (
	"fmt"
	"net/http"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/experiment"
	"github.com/ignite/newsletter-engine/internal/pkg/httputil"
)

var experimentErrors = []httputil.Mapping{
	{Err: experiment.ErrNotFound, Status: http.StatusNotFound, Code: "not_found"},
	{Err: experiment.ErrAlreadyExists, Status: http.StatusConflict, Code: "already_exists"},
	{Err: experiment.ErrInsufficientData, Status: http.StatusUnprocessableEntity, Code: "insufficient_data"},
	{Err: experiment.ErrInvalidConfiguration, Status: http.StatusBadRequest, Code: "invalid_configuration"},
}

// CreateExperiment stores a draft experiment.
//
//	POST /api/experiments
func (h *Handlers) CreateExperiment(w http.ResponseWriter, r *http.Request) {
	var def domain.Experiment
	if !httputil.Decode(w, r, &def) {
		return
	}
	id, err := h.engine.Experiments.Create(def)
	if err != nil {
		httputil.Fail(w, err, experimentErrors)
		return
	}
	exp, err := h.engine.Experiments.Get(id)
	if err != nil {
		httputil.Fail(w, err, experimentErrors)
		return
	}
	httputil.Created(w, exp)
}

// ListExperiments returns every experiment, optionally only running ones.
//
//	GET /api/experiments?status=running
func (h *Handlers) ListExperiments(w http.ResponseWriter, r *http.Request) {
	var list []domain.Experiment
	if r.URL.Query().Get("status") == string(domain.ExperimentRunning) {
		list = h.engine.Experiments.Active()
	} else {
		list = h.engine.Experiments.List()
	}
	httputil.OK(w, map[string]any{"experiments": list, "total": len(list)})
}

func (h *Handlers) GetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := h.engine.Experiments.Get(idParam(r))
	if err != nil {
		httputil.Fail(w, err, experimentErrors)
		return
	}
	httputil.OK(w, exp)
}

func (h *Handlers) StartExperiment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Experiments.Start)
}

func (h *Handlers) StopExperiment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Experiments.Stop)
}

func (h *Handlers) PauseExperiment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Experiments.Pause)
}

func (h *Handlers) ArchiveExperiment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Experiments.Archive)
}

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, move func(id string) error) {
	id := idParam(r)
	if err := move(id); err != nil {
		httputil.Fail(w, err, experimentErrors)
		return
	}
	exp, err := h.engine.Experiments.Get(id)
	if err != nil {
		httputil.Fail(w, err, experimentErrors)
		return
	}
	httputil.OK(w, exp)
}

type assignRequest struct {
	Recipient string `json:"recipient"`
	UserID    *int64 `json:"user_id,omitempty"`
}

// AssignRecipient returns the recipient's variant, assigning one if needed.
//
//	POST /api/experiments/{id}/assignments
func (h *Handlers) AssignRecipient(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !httputil.Decode(w, r, &req) || !requireField(w, "recipient", req.Recipient) {
		return
	}
	a, err := h.engine.Experiments.Assign(idParam(r), req.Recipient, req.UserID)
	if err != nil {
		httputil.Fail(w, err, experimentErrors)
		return
	}
	httputil.OK(w, a)
}

type eventRequest struct {
	VariantID string         `json:"variant_id,omitempty"`
	Recipient string         `json:"recipient"`
	UserID    *int64         `json:"user_id,omitempty"`
	Kind      string         `json:"event_type"`
	Payload   map[string]any `json:"event_data,omitempty"`
}

// RecordExperimentEvent appends an event. Without a variant id the
// recipient's existing assignment supplies it.
//
//	POST /api/experiments/{id}/events
func (h *Handlers) RecordExperimentEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !httputil.Decode(w, r, &req) || !requireField(w, "recipient", req.Recipient) {
		return
	}
	kind := domain.EventKind(req.Kind)
	if !kind.Valid() {
		httputil.BadRequest(w, fmt.Sprintf("unknown event type %q", req.Kind))
		return
	}

	id := idParam(r)
	exp, err := h.engine.Experiments.Get(id)
	if err != nil {
		httputil.Fail(w, err, experimentErrors)
		return
	}
	variantID := req.VariantID
	if variantID == "" {
		a, ok := h.engine.Experiments.Assignment(id, req.Recipient)
		if !ok {
			httputil.BadRequest(w, "recipient has no assignment in this experiment")
			return
		}
		variantID = a.VariantID
	} else if _, ok := exp.Variant(variantID); !ok {
		httputil.BadRequest(w, fmt.Sprintf("unknown variant %q", variantID))
		return
	}

	eventID, err := h.engine.Experiments.RecordEvent(id, variantID, req.Recipient, req.UserID, kind, req.Payload)
	if err != nil {
		httputil.Fail(w, err, experimentErrors)
		return
	}
	httputil.Created(w, map[string]string{"id": eventID, "variant_id": variantID})
}

// ExperimentResults runs the significance analysis.
//
//	GET /api/experiments/{id}/results
func (h *Handlers) ExperimentResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Experiments.Analyze(idParam(r))
	if err != nil {
		httputil.Fail(w, err, experimentErrors)
		return
	}
	httputil.OK(w, res)
}
