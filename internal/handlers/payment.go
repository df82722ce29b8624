package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/httpx"
	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/query"
	"github.com/diewo77/payment-tracker/internal/receipts"
	"github.com/diewo77/payment-tracker/internal/workflow"
)

// maxSubmissionBytes caps the whole multipart submission; individual files are
// capped separately by the receipts package.
const maxSubmissionBytes = 10 << 20

type PaymentHandler struct {
	DB       *gorm.DB
	Engine   *workflow.Engine
	Facade   *query.Facade
	Resolver policy.Resolver
}

func NewPaymentHandler(db *gorm.DB, eng *workflow.Engine, fac *query.Facade, res policy.Resolver) *PaymentHandler {
	return &PaymentHandler{DB: db, Engine: eng, Facade: fac, Resolver: res}
}

// List: GET /payments – role-scoped, filtered, sorted record set.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := resolveActor(r, h.Resolver)
	if err != nil {
		writeError(w, err)
		return
	}
	qp := r.URL.Query()
	flt := query.Filters{
		FirstName:    qp.Get("first_name"),
		LastName:     qp.Get("last_name"),
		Phone:        qp.Get("phone"),
		City:         qp.Get("city"),
		TrackingCode: qp.Get("tracking_code"),
		PayerAccount: qp.Get("payer_account"),
		PayerName:    qp.Get("payer_name"),
		PayerBank:    qp.Get("payer_bank"),
		PayDate:      qp.Get("pay_date"),
		Status:       qp.Get("status"),
		Bucket:       qp.Get("bucket"),
	}
	if v := qp.Get("amount"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			flt.Amount = &n
		}
	}
	if v := qp.Get("counterparty_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			id := uint(n)
			flt.CounterpartyID = &id
		}
	}
	recs, err := h.Facade.List(r.Context(), actor, flt, qp.Get("sort"), qp.Get("dir"))
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_payments", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": query.Views(actor, recs),
		"total": len(recs),
	})
}

// Create: POST /payments – multipart customer submission. Anonymous callers
// are accepted; the record then has no owning user.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := resolveActor(r, h.Resolver)
	if err != nil {
		writeError(w, err)
		return
	}
	in, files, closeFiles, err := h.parseSubmission(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeFiles()

	rec, err := h.Engine.Create(r.Context(), actor, in, files)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, query.View(actor, rec))
}

// Edit: POST /payments/edit?id= – owner reopens an incomplete record.
func (h *PaymentHandler) Edit(w http.ResponseWriter, r *http.Request) {
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
	in, files, closeFiles, err := h.parseSubmission(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeFiles()

	rec, err := h.Engine.Edit(r.Context(), actor, id, in, files)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, query.View(actor, rec))
}

// timelineEntry is one formatted audit line plus its raw fields.
type timelineEntry struct {
	Action     string `json:"action"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Note       string `json:"note,omitempty"`
	Actor      string `json:"actor,omitempty"`
	CreatedAt  string `json:"created_at"`
	Line       string `json:"line"`
}

// Timeline: GET /payments/timeline?id= – the record, its receipts and the
// audit trail newest first. Staff views are themselves logged.
func (h *PaymentHandler) Timeline(w http.ResponseWriter, r *http.Request) {
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
	var rec models.PaymentRecord
	if err := h.DB.Preload("Counterparty").Preload("Receipts").First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_payment", nil)
		return
	}
	if !actor.StaffEquivalent() && (rec.UserID == nil || *rec.UserID != actor.UserID) {
		httpx.JSONError(w, http.StatusForbidden, "authorization_denied", nil)
		return
	}

	if err := h.Engine.RecordView(r.Context(), actor, rec.ID); err != nil {
		writeError(w, err)
		return
	}

	var logs []models.PaymentActivityLog
	if err := h.DB.Preload("Actor").Where("payment_id = ?", rec.ID).
		Order("created_at desc, id desc").Find(&logs).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_timeline", nil)
		return
	}

	entries := make([]timelineEntry, len(logs))
	for i, entry := range logs {
		e := timelineEntry{
			Action:     entry.Action,
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			Note:       entry.Note,
			CreatedAt:  entry.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if entry.Actor != nil {
			e.Actor = entry.Actor.Username
		}
		e.Line = formatAuditLine(e)
		entries[i] = e
	}

	receiptNames := make([]string, len(rec.Receipts))
	for i, rc := range rec.Receipts {
		receiptNames[i] = rc.FileName
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"payment":  query.View(actor, &rec),
		"receipts": receiptNames,
		"timeline": entries,
	})
}

// formatAuditLine renders one human-readable audit line for display.
func formatAuditLine(e timelineEntry) string {
	who := e.Actor
	if who == "" {
		who = "system"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", e.CreatedAt, who, e.Action)
	if e.Action == models.ActionStatusChanged || e.Action == models.ActionEdited {
		fmt.Fprintf(&b, ": %s -> %s", e.FromStatus, e.ToStatus)
	}
	if e.Note != "" {
		fmt.Fprintf(&b, " (%s)", e.Note)
	}
	return b.String()
}

// parseSubmission decodes the multipart form shared by create and edit. The
// returned cleanup closes every opened file.
func (h *PaymentHandler) parseSubmission(r *http.Request) (workflow.SubmissionInput, []receipts.File, func(), error) {
	noop := func() {}
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		return workflow.SubmissionInput{}, nil, noop, fmt.Errorf("%w: form", workflow.ErrMissingRequired)
	}
	form := r.MultipartForm

	in := workflow.SubmissionInput{
		FirstName:          strings.TrimSpace(r.FormValue("first_name")),
		LastName:           strings.TrimSpace(r.FormValue("last_name")),
		Organization:       strings.TrimSpace(r.FormValue("organization")),
		City:               strings.TrimSpace(r.FormValue("city")),
		Phone:              strings.TrimSpace(r.FormValue("phone")),
		PayerAccountNumber: strings.TrimSpace(r.FormValue("payer_account_number")),
		PayerFullName:      strings.TrimSpace(r.FormValue("payer_full_name")),
		PayerBankName:      strings.TrimSpace(r.FormValue("payer_bank_name")),
	}
	if v := strings.TrimSpace(r.FormValue("tracking_code")); v != "" {
		in.TrackingCode = &v
	}
	if v := r.FormValue("amount"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return in, nil, noop, workflow.ErrInvalidAmount
		}
		in.Amount = n
	}
	if v := r.FormValue("pay_date"); v != "" {
		if day, ok := h.Facade.Parse(v); ok {
			in.PayDate = day
		}
	}

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	var files []receipts.File
	for _, fh := range form.File["receipts"] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return in, nil, noop, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, receipts.File{Name: fh.Filename, Size: fh.Size, Content: f})
	}
	return in, files, closeAll, nil
}

func idParam(r *http.Request) (uint, bool) {
	idStr := r.URL.Query().Get("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
