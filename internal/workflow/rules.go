package workflow

import (
	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
)

// roleTargets is the fixed allow-list of target statuses per role. The generic
// staff role deliberately has none: it reaches staff surfaces and may reassign
// counterparties, but moves records only through override accounts.
var roleTargets = map[policy.Role][]Status{
	policy.RoleCommercial: {StatusCommercialReview, StatusIncomplete, StatusRejected},
	policy.RoleFinance:    {StatusFinanceReview, StatusFinalApproved, StatusIncomplete, StatusRejected, StatusReturnedToCommercial},
	policy.RoleStaff:      {},
}

// commercialHandsOff are the current statuses commercial may not act from:
// once finance has taken ownership or issued an approval, commercial is out
// until finance returns the record.
var commercialHandsOff = map[Status]bool{
	StatusFinanceReview: true,
	StatusApproved:      true,
	StatusFinalApproved: true,
}

// authorizeTransition runs the role/lock checks in their fixed order and
// returns ErrDenied on the first failure. Note requirements and side effects
// are the engine's business; this answers authorization only.
func authorizeTransition(actor policy.Actor, rec *models.PaymentRecord, target Status) error {
	// 1. Customers never invoke a status change directly.
	if !actor.StaffEquivalent() {
		return ErrDenied
	}
	// 2. The finance lock stops everyone but the override role.
	if rec.LockedByFinance && !actor.Override {
		return ErrDenied
	}
	// 3. Role-scoped legality. Override may set any status; commercial is
	// additionally gated on the record's current status.
	if actor.Override {
		return nil
	}
	if actor.Role == policy.RoleCommercial && commercialHandsOff[Status(rec.Status)] {
		return ErrDenied
	}
	for _, t := range roleTargets[actor.Role] {
		if t == target {
			return nil
		}
	}
	return ErrDenied
}

// AllowedTargets is the table-driven authorization answer for (actor, record):
// every target status the actor may set right now. The engine and the
// presentation flags both derive from authorizeTransition, so they cannot
// drift.
func AllowedTargets(actor policy.Actor, rec *models.PaymentRecord) []Status {
	var out []Status
	for _, target := range AllStatuses {
		if authorizeTransition(actor, rec, target) == nil {
			out = append(out, target)
		}
	}
	return out
}

// CanAct reports whether the actor has any move available on the record.
func CanAct(actor policy.Actor, rec *models.PaymentRecord) bool {
	return len(AllowedTargets(actor, rec)) > 0
}

// mayReassignCounterparty: finance may not silently change the counterparty;
// commercial, the generic staff role and override may.
func mayReassignCounterparty(actor policy.Actor) bool {
	return actor.Override || actor.Role == policy.RoleCommercial || actor.Role == policy.RoleStaff
}
