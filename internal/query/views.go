package query

import (
	"time"

	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/workflow"
)

// RecordView is the presentation shape for one record: scrubbed fields plus
// the per-record permission flags the UI needs. The core produces the flags,
// it does not render them.
type RecordView struct {
	ID              uint      `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Organization    string    `json:"organization"`
	City            string    `json:"city"`
	Phone           string    `json:"phone"`
	Amount          int64     `json:"amount"`
	PayDate         string    `json:"pay_date"`
	TrackingCode    string    `json:"tracking_code,omitempty"`
	PayerAccount    string    `json:"payer_account_number,omitempty"`
	PayerName       string    `json:"payer_full_name,omitempty"`
	PayerBank       string    `json:"payer_bank_name,omitempty"`
	BeneficiaryBank string    `json:"beneficiary_bank_name,omitempty"`
	BeneficiaryAcct string    `json:"beneficiary_account_number,omitempty"`
	BeneficiaryOwn  string    `json:"beneficiary_account_owner,omitempty"`
	Status          string    `json:"status"`
	LockedByFinance bool      `json:"locked_by_finance,omitempty"`
	LastStaffNote   string    `json:"last_staff_note,omitempty"`
	Counterparty    string    `json:"counterparty,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	CanAct         bool     `json:"can_act"`
	AllowedTargets []string `json:"allowed_target_statuses,omitempty"`
}

// View builds the role-scoped presentation row. Customers get the collapsed
// status bucket and never see staff internals (lock flag, payer bank fields
// stay since they submitted them; the internal status does not leak).
func View(actor policy.Actor, rec *models.PaymentRecord) RecordView {
	v := RecordView{
		ID:              rec.ID,
		FirstName:       rec.FirstName,
		LastName:        rec.LastName,
		Organization:    rec.Organization,
		City:            rec.City,
		Phone:           rec.Phone,
		Amount:          rec.Amount,
		PayDate:         rec.PayDate.Format("2006-01-02"),
		PayerAccount:    models.CleanPlaceholder(rec.PayerAccountNumber),
		PayerName:       models.CleanPlaceholder(rec.PayerFullName),
		PayerBank:       models.CleanPlaceholder(rec.PayerBankName),
		BeneficiaryBank: models.CleanPlaceholder(rec.BeneficiaryBankName),
		BeneficiaryAcct: models.CleanPlaceholder(rec.BeneficiaryAccountNumber),
		BeneficiaryOwn:  models.CleanPlaceholder(rec.BeneficiaryAccountOwner),
		CreatedAt:       rec.CreatedAt,
	}
	if rec.TrackingCode != nil {
		v.TrackingCode = *rec.TrackingCode
	}
	if rec.Counterparty != nil {
		v.Counterparty = rec.Counterparty.Name
	}
	if actor.StaffEquivalent() {
		v.Status = rec.Status
		v.LockedByFinance = rec.LockedByFinance
		v.LastStaffNote = rec.LastStaffNote
		targets := workflow.AllowedTargets(actor, rec)
		v.CanAct = len(targets) > 0
		v.AllowedTargets = make([]string, len(targets))
		for i, t := range targets {
			v.AllowedTargets[i] = string(t)
		}
	} else {
		v.Status = workflow.CustomerBucket(workflow.Status(rec.Status))
		if workflow.Status(rec.Status) == workflow.StatusIncomplete {
			// The note tells the customer what to fix before resubmitting.
			v.LastStaffNote = rec.LastStaffNote
		}
	}
	return v
}

// Views maps a record set.
func Views(actor policy.Actor, recs []models.PaymentRecord) []RecordView {
	out := make([]RecordView, len(recs))
	for i := range recs {
		out[i] = View(actor, &recs[i])
	}
	return out
}

// ExportRow carries every attribute the tabular export needs, assembled from
// an already-loaded record set with no re-query.
type ExportRow struct {
	ID              uint
	FirstName       string
	LastName        string
	Organization    string
	City            string
	Phone           string
	PayerAccount    string
	PayerName       string
	PayerBank       string
	BeneficiaryBank string
	BeneficiaryAcct string
	BeneficiaryOwn  string
	Amount          int64
	PayDate         string
	TrackingCode    string
	Status          string
	Counterparty    string
	CreatedAt       time.Time
}

// ExportRows flattens records for the spreadsheet export.
func ExportRows(recs []models.PaymentRecord) []ExportRow {
	rows := make([]ExportRow, len(recs))
	for i := range recs {
		rec := &recs[i]
		row := ExportRow{
			ID:              rec.ID,
			FirstName:       rec.FirstName,
			LastName:        rec.LastName,
			Organization:    rec.Organization,
			City:            rec.City,
			Phone:           rec.Phone,
			PayerAccount:    models.CleanPlaceholder(rec.PayerAccountNumber),
			PayerName:       models.CleanPlaceholder(rec.PayerFullName),
			PayerBank:       models.CleanPlaceholder(rec.PayerBankName),
			BeneficiaryBank: models.CleanPlaceholder(rec.BeneficiaryBankName),
			BeneficiaryAcct: models.CleanPlaceholder(rec.BeneficiaryAccountNumber),
			BeneficiaryOwn:  models.CleanPlaceholder(rec.BeneficiaryAccountOwner),
			Amount:          rec.Amount,
			PayDate:         rec.PayDate.Format("2006-01-02"),
			Status:          rec.Status,
			CreatedAt:       rec.CreatedAt,
		}
		if rec.TrackingCode != nil {
			row.TrackingCode = *rec.TrackingCode
		}
		if rec.Counterparty != nil {
			row.Counterparty = rec.Counterparty.Name
		}
		rows[i] = row
	}
	return rows
}
