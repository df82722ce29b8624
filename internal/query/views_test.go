package query

import (
	"testing"
	"time"

	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/workflow"
)

func sampleRecord(status workflow.Status) *models.PaymentRecord {
	return &models.PaymentRecord{
		ID:            12,
		FirstName:     "Sara",
		LastName:      "Moradi",
		Amount:        5000,
		PayDate:       time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:        string(status),
		LastStaffNote: "resend page two",
	}
}

func TestViewCustomerSeesBucketNotInternalStatus(t *testing.T) {
	customer := policy.Actor{UserID: 1, Role: policy.RoleCustomer}

	for _, s := range []workflow.Status{workflow.StatusPending, workflow.StatusCommercialReview, workflow.StatusFinanceReview, workflow.StatusReturnedToCommercial} {
		v := View(customer, sampleRecord(s))
		if v.Status != workflow.BucketUnderReview {
			t.Errorf("%s: customer status = %s", s, v.Status)
		}
		if v.LastStaffNote != "" {
			t.Errorf("%s: note leaked to customer", s)
		}
		if v.CanAct || len(v.AllowedTargets) != 0 {
			t.Errorf("%s: customer got action flags", s)
		}
	}
}

func TestViewCustomerSeesNoteWhenIncomplete(t *testing.T) {
	customer := policy.Actor{UserID: 1, Role: policy.RoleCustomer}
	v := View(customer, sampleRecord(workflow.StatusIncomplete))
	if v.Status != workflow.BucketIncomplete {
		t.Fatalf("status = %s", v.Status)
	}
	if v.LastStaffNote != "resend page two" {
		t.Fatalf("note = %q", v.LastStaffNote)
	}
}

func TestViewStaffGetsInternalsAndFlags(t *testing.T) {
	finance := policy.Actor{UserID: 2, Role: policy.RoleFinance}
	rec := sampleRecord(workflow.StatusCommercialReview)
	v := View(finance, rec)
	if v.Status != string(workflow.StatusCommercialReview) {
		t.Fatalf("status = %s", v.Status)
	}
	if !v.CanAct || len(v.AllowedTargets) == 0 {
		t.Fatalf("flags: canAct=%v targets=%v", v.CanAct, v.AllowedTargets)
	}

	rec.LockedByFinance = true
	v = View(finance, rec)
	if !v.LockedByFinance {
		t.Fatal("lock flag hidden from staff")
	}
	if v.CanAct {
		t.Fatal("locked record must show no moves for non-override staff")
	}
}

func TestViewBlanksLegacyPlaceholder(t *testing.T) {
	rec := sampleRecord(workflow.StatusPending)
	rec.PayerAccountNumber = "-"
	rec.BeneficiaryBankName = "-"
	rec.PayerFullName = "Real Payer"

	v := View(policy.Actor{UserID: 2, Role: policy.RoleStaff}, rec)
	if v.PayerAccount != "" || v.BeneficiaryBank != "" {
		t.Fatalf("placeholder leaked: %q %q", v.PayerAccount, v.BeneficiaryBank)
	}
	if v.PayerName != "Real Payer" {
		t.Fatalf("real value scrubbed: %q", v.PayerName)
	}

	// The stored row is untouched; scrubbing is read-path only.
	if rec.PayerAccountNumber != "-" {
		t.Fatal("view mutated the record")
	}
}

func TestExportRows(t *testing.T) {
	code := "TRK-9"
	recs := []models.PaymentRecord{
		*sampleRecord(workflow.StatusFinalApproved),
	}
	recs[0].TrackingCode = &code
	recs[0].Counterparty = &models.Counterparty{Name: "Head Office"}
	recs[0].PayerBankName = "-"

	rows := ExportRows(recs)
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	row := rows[0]
	if row.TrackingCode != "TRK-9" || row.Counterparty != "Head Office" {
		t.Fatalf("row = %#v", row)
	}
	if row.Status != string(workflow.StatusFinalApproved) {
		t.Fatalf("export keeps the internal status, got %s", row.Status)
	}
	if row.PayerBank != "" {
		t.Fatalf("placeholder leaked into export: %q", row.PayerBank)
	}
	if row.PayDate != "2025-03-10" {
		t.Fatalf("pay date = %s", row.PayDate)
	}
}
