package handlers

import (
	"net/http"

	"github.com/diewo77/payment-tracker/httpx"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/query"
	"github.com/diewo77/payment-tracker/internal/workflow"
)

type StatusHandler struct {
	Engine   *workflow.Engine
	Resolver policy.Resolver
}

func NewStatusHandler(eng *workflow.Engine, res policy.Resolver) *StatusHandler {
	return &StatusHandler{Engine: eng, Resolver: res}
}

// Update: POST /payments/status?id= – staff transition request. All role,
// lock and note validation lives in the engine; this handler only decodes.
func (h *StatusHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := resolveActor(r, h.Resolver)
	if err != nil {
		writeError(w, err)
		return
	}
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req struct {
		Target         string `json:"target"`
		Note           string `json:"note"`
		CounterpartyID *uint  `json:"counterparty_id"`
	}
	if err := httpx.DecodeJSON(r, &req, 1<<16); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	rec, err := h.Engine.Transition(r.Context(), actor, id, workflow.TransitionInput{
		Target:         workflow.Status(req.Target),
		Note:           req.Note,
		CounterpartyID: req.CounterpartyID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, query.View(actor, rec))
}
