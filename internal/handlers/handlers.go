// Package handlers exposes the JSON HTTP surface. Handlers stay thin: resolve
// the actor, decode input, call into workflow/query, map errors to the
// envelope.
package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/payment-tracker/auth"
	"github.com/diewo77/payment-tracker/httpx"
	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/receipts"
	"github.com/diewo77/payment-tracker/internal/workflow"
)

// resolveActor classifies the caller; unauthenticated requests resolve to the
// anonymous customer actor.
func resolveActor(r *http.Request, res policy.Resolver) (policy.Actor, error) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || uid == 0 {
		return policy.Anonymous, nil
	}
	return res.Resolve(r.Context(), uid)
}

// errorStatus maps the domain error taxonomy onto HTTP statuses and stable
// codes. Unknown errors fall through to a 500 internal_error.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrDenied):
		return http.StatusForbidden, "authorization_denied"
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, workflow.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, workflow.ErrNoteRequired):
		return http.StatusBadRequest, "note_required"
	case errors.Is(err, workflow.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, workflow.ErrMissingRequired):
		return http.StatusBadRequest, "missing_required_field"
	case errors.Is(err, workflow.ErrNotEditable):
		return http.StatusForbidden, "not_editable"
	case errors.Is(err, receipts.ErrNoFiles):
		return http.StatusBadRequest, "receipt_required"
	case errors.Is(err, receipts.ErrBadExtension):
		return http.StatusBadRequest, "unsupported_file_type"
	case errors.Is(err, receipts.ErrFileTooLarge):
		return http.StatusBadRequest, "file_too_large"
	case errors.Is(err, receipts.ErrDuplicate):
		return http.StatusBadRequest, "duplicate_receipt"
	case errors.Is(err, models.ErrCounterpartyPermanent):
		return http.StatusUnprocessableEntity, "counterparty_permanent"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	var details any
	if status != http.StatusInternalServerError && err.Error() != code {
		details = err.Error()
	}
	httpx.JSONError(w, status, code, details)
}
