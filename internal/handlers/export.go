package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/diewo77/payment-tracker/httpx"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/query"
)

type ExportHandler struct {
	Facade   *query.Facade
	Resolver policy.Resolver
}

func NewExportHandler(fac *query.Facade, res policy.Resolver) *ExportHandler {
	return &ExportHandler{Facade: fac, Resolver: res}
}

var exportHeaders = []string{
	"ID", "First name", "Last name", "Organization", "City", "Phone",
	"Payer account", "Payer name", "Payer bank",
	"Beneficiary bank", "Beneficiary account", "Beneficiary owner",
	"Amount", "Pay date", "Tracking code", "Status", "Counterparty", "Created at",
}

// Export: GET /export – staff-only spreadsheet of the filtered record set.
// Accepts the same filter query parameters as the listing.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, err := resolveActor(r, h.Resolver)
	if err != nil {
		writeError(w, err)
		return
	}
	if !actor.StaffEquivalent() {
		httpx.JSONError(w, http.StatusForbidden, "authorization_denied", nil)
		return
	}
	qp := r.URL.Query()
	flt := query.Filters{
		FirstName:    qp.Get("first_name"),
		LastName:     qp.Get("last_name"),
		Phone:        qp.Get("phone"),
		City:         qp.Get("city"),
		TrackingCode: qp.Get("tracking_code"),
		PayDate:      qp.Get("pay_date"),
		Status:       qp.Get("status"),
	}
	recs, err := h.Facade.List(r.Context(), actor, flt, qp.Get("sort"), qp.Get("dir"))
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_payments", nil)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Payments"
	index, err := f.NewSheet(sheet)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "export_failed", nil)
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	for i, row := range query.ExportRows(recs) {
		values := []any{
			row.ID, row.FirstName, row.LastName, row.Organization, row.City, row.Phone,
			row.PayerAccount, row.PayerName, row.PayerBank,
			row.BeneficiaryBank, row.BeneficiaryAcct, row.BeneficiaryOwn,
			row.Amount, row.PayDate, row.TrackingCode, row.Status, row.Counterparty,
			row.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	fileName := fmt.Sprintf("payment_records_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(w); err != nil {
		// headers already sent; nothing useful left to report
		_ = err
	}
}
