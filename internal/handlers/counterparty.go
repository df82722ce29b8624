package handlers

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/httpx"
	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
)

type CounterpartyHandler struct {
	DB       *gorm.DB
	Resolver policy.Resolver
}

func NewCounterpartyHandler(db *gorm.DB, res policy.Resolver) *CounterpartyHandler {
	return &CounterpartyHandler{DB: db, Resolver: res}
}

func (h *CounterpartyHandler) requireStaff(w http.ResponseWriter, r *http.Request) (policy.Actor, bool) {
	actor, err := resolveActor(r, h.Resolver)
	if err != nil {
		writeError(w, err)
		return actor, false
	}
	if !actor.StaffEquivalent() {
		httpx.JSONError(w, http.StatusForbidden, "authorization_denied", nil)
		return actor, false
	}
	return actor, true
}

// List: GET /counterparties – ordered by name, staff only.
func (h *CounterpartyHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	var cps []models.Counterparty
	if err := h.DB.Order("name asc").Find(&cps).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_counterparties", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": cps, "total": len(cps)})
}

type counterpartyReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create: POST /counterparties
func (h *CounterpartyHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	var req counterpartyReq
	if err := httpx.DecodeJSON(r, &req, 1<<16); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"name": "required"})
		return
	}
	cp := models.Counterparty{Name: req.Name, Description: strings.TrimSpace(req.Description)}
	if err := h.DB.Create(&cp).Error; err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "counterparty_exists", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, cp)
}

// Update: POST /counterparties/update?id= – name/description only; the row
// itself is permanent.
func (h *CounterpartyHandler) Update(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req counterpartyReq
	if err := httpx.DecodeJSON(r, &req, 1<<16); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	var cp models.Counterparty
	if err := h.DB.First(&cp, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_counterparty", nil)
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		cp.Name = name
	}
	cp.Description = strings.TrimSpace(req.Description)
	if err := h.DB.Save(&cp).Error; err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "counterparty_exists", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, cp)
}

// Delete: POST /counterparties/delete?id= – refused unconditionally,
// regardless of caller privilege. Counterparties are append-only reference
// data; the data layer enforces the same rule.
func (h *CounterpartyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := resolveActorOK(w, r, h.Resolver); !ok {
		return
	}
	writeError(w, models.ErrCounterpartyPermanent)
}

func resolveActorOK(w http.ResponseWriter, r *http.Request, res policy.Resolver) (policy.Actor, bool) {
	actor, err := resolveActor(r, res)
	if err != nil {
		writeError(w, err)
		return actor, false
	}
	return actor, true
}
