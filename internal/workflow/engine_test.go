package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/receipts"
)

func setupWorkflowTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.UserProfile{}, &models.Counterparty{}, &models.PaymentRecord{}, &models.PaymentReceipt{}, &models.PaymentActivityLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// memStore keeps saved blobs in memory so engine tests need no filesystem.
type memStore struct {
	saved map[string][]byte
}

func newMemStore() *memStore { return &memStore{saved: make(map[string][]byte)} }

func (s *memStore) Save(name string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	ref := fmt.Sprintf("blob-%d-%s", len(s.saved), name)
	s.saved[ref] = b
	return ref, nil
}

func seedWorkflowUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{Username: username, Password: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("user %s: %v", username, err)
	}
	return u
}

func seedPayment(t *testing.T, db *gorm.DB, owner *uint, status Status, locked bool) models.PaymentRecord {
	t.Helper()
	rec := models.PaymentRecord{
		UserID:          owner,
		FirstName:       "Sara",
		LastName:        "Moradi",
		Amount:          150000,
		PayDate:         time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:          string(status),
		LockedByFinance: locked,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("payment: %v", err)
	}
	return rec
}

func receiptFile(name, content string) receipts.File {
	return receipts.File{Name: name, Size: int64(len(content)), Content: bytes.NewReader([]byte(content))}
}

func statusLogs(t *testing.T, db *gorm.DB, paymentID uint, action string) []models.PaymentActivityLog {
	t.Helper()
	var logs []models.PaymentActivityLog
	if err := db.Where("payment_id = ? AND action = ?", paymentID, action).Order("id asc").Find(&logs).Error; err != nil {
		t.Fatalf("logs: %v", err)
	}
	return logs
}

func TestTransitionCommercialFromPending(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	staff := seedWorkflowUser(t, db, "commercial1")
	rec := seedPayment(t, db, nil, StatusPending, false)
	actor := policy.Actor{UserID: staff.ID, Role: policy.RoleCommercial}

	out, err := eng.Transition(context.Background(), actor, rec.ID, TransitionInput{Target: StatusCommercialReview})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if out.Status != string(StatusCommercialReview) {
		t.Fatalf("status = %s", out.Status)
	}
	logs := statusLogs(t, db, rec.ID, models.ActionStatusChanged)
	if len(logs) != 1 {
		t.Fatalf("expected exactly one log, got %d", len(logs))
	}
	entry := logs[0]
	if entry.FromStatus != string(StatusPending) || entry.ToStatus != string(StatusCommercialReview) {
		t.Fatalf("log %s -> %s", entry.FromStatus, entry.ToStatus)
	}
	if entry.ActorID == nil || *entry.ActorID != staff.ID {
		t.Fatalf("log actor = %v", entry.ActorID)
	}
}

func TestTransitionCustomerDenied(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	rec := seedPayment(t, db, nil, StatusPending, false)

	_, err := eng.Transition(context.Background(), policy.Actor{UserID: 7, Role: policy.RoleCustomer}, rec.ID, TransitionInput{Target: StatusRejected, Note: "no"})
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
}

func TestTransitionCommercialBlockedAfterHandoff(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	rec := seedPayment(t, db, nil, StatusFinanceReview, false)
	actor := policy.Actor{UserID: 1, Role: policy.RoleCommercial}

	_, err := eng.Transition(context.Background(), actor, rec.ID, TransitionInput{Target: StatusIncomplete, Note: "missing doc"})
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied once finance holds the record, got %v", err)
	}
}

func TestTransitionNoteRequired(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	rec := seedPayment(t, db, nil, StatusFinanceReview, false)
	actor := policy.Actor{UserID: 2, Role: policy.RoleFinance}

	for _, target := range []Status{StatusRejected, StatusIncomplete} {
		_, err := eng.Transition(context.Background(), actor, rec.ID, TransitionInput{Target: target, Note: "   "})
		if !errors.Is(err, ErrNoteRequired) {
			t.Fatalf("%s: expected ErrNoteRequired, got %v", target, err)
		}
	}

	// Nothing was written by the failed attempts.
	var reloaded models.PaymentRecord
	if err := db.First(&reloaded, rec.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != string(StatusFinanceReview) {
		t.Fatalf("status changed by failed transition: %s", reloaded.Status)
	}
	if logs := statusLogs(t, db, rec.ID, models.ActionStatusChanged); len(logs) != 0 {
		t.Fatalf("log written on failure: %d entries", len(logs))
	}
}

func TestFinanceLockSetAndBlocks(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	rec := seedPayment(t, db, nil, StatusFinanceReview, false)
	finance := policy.Actor{UserID: 3, Role: policy.RoleFinance}

	out, err := eng.Transition(context.Background(), finance, rec.ID, TransitionInput{Target: StatusFinalApproved})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !out.LockedByFinance {
		t.Fatal("final approval should set the finance lock")
	}

	// Locked: finance itself can no longer move the record.
	if _, err := eng.Transition(context.Background(), finance, rec.ID, TransitionInput{Target: StatusRejected, Note: "oops"}); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied on locked record, got %v", err)
	}

	// Override acts through the lock and clears it.
	override := policy.Actor{UserID: 4, Role: policy.RoleStaff, Override: true}
	out, err = eng.Transition(context.Background(), override, rec.ID, TransitionInput{Target: StatusFinanceReview})
	if err != nil {
		t.Fatalf("override transition: %v", err)
	}
	if out.LockedByFinance {
		t.Fatal("override action should clear the finance lock")
	}
}

func TestFinanceReviewDoesNotLock(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	rec := seedPayment(t, db, nil, StatusCommercialReview, false)
	finance := policy.Actor{UserID: 3, Role: policy.RoleFinance}

	out, err := eng.Transition(context.Background(), finance, rec.ID, TransitionInput{Target: StatusFinanceReview})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if out.LockedByFinance {
		t.Fatal("taking a record into finance review must not lock it")
	}
}

func TestCounterpartyReassignment(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	cp := models.Counterparty{Name: "Head Office"}
	if err := db.Create(&cp).Error; err != nil {
		t.Fatal(err)
	}

	// Commercial may assign.
	rec := seedPayment(t, db, nil, StatusPending, false)
	commercial := policy.Actor{UserID: 5, Role: policy.RoleCommercial}
	out, err := eng.Transition(context.Background(), commercial, rec.ID, TransitionInput{Target: StatusCommercialReview, CounterpartyID: &cp.ID})
	if err != nil {
		t.Fatalf("commercial assign: %v", err)
	}
	if out.CounterpartyID == nil || *out.CounterpartyID != cp.ID {
		t.Fatalf("counterparty not assigned: %v", out.CounterpartyID)
	}

	// Finance may not; the field is silently ignored, the transition succeeds.
	rec2 := seedPayment(t, db, nil, StatusFinanceReview, false)
	finance := policy.Actor{UserID: 6, Role: policy.RoleFinance}
	out, err = eng.Transition(context.Background(), finance, rec2.ID, TransitionInput{Target: StatusReturnedToCommercial, CounterpartyID: &cp.ID})
	if err != nil {
		t.Fatalf("finance transition: %v", err)
	}
	if out.CounterpartyID != nil {
		t.Fatal("finance must not reassign the counterparty")
	}

	// Override reassigns no matter what role its profile carries.
	rec4 := seedPayment(t, db, nil, StatusFinanceReview, false)
	boss := policy.Actor{UserID: 8, Role: policy.RoleFinance, Override: true}
	out, err = eng.Transition(context.Background(), boss, rec4.ID, TransitionInput{Target: StatusFinalApproved, CounterpartyID: &cp.ID})
	if err != nil {
		t.Fatalf("override assign: %v", err)
	}
	if out.CounterpartyID == nil || *out.CounterpartyID != cp.ID {
		t.Fatalf("override did not reassign: %v", out.CounterpartyID)
	}

	// Unknown counterparty rolls the whole transition back.
	rec3 := seedPayment(t, db, nil, StatusPending, false)
	missing := uint(9999)
	if _, err := eng.Transition(context.Background(), commercial, rec3.ID, TransitionInput{Target: StatusCommercialReview, CounterpartyID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var reloaded models.PaymentRecord
	if err := db.First(&reloaded, rec3.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != string(StatusPending) {
		t.Fatalf("status written despite rollback: %s", reloaded.Status)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	rec := seedPayment(t, db, nil, StatusPending, false)
	override := policy.Actor{UserID: 1, Role: policy.RoleStaff, Override: true}

	_, err := eng.Transition(context.Background(), override, rec.ID, TransitionInput{Target: "archived"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestTransitionMissingRecord(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	override := policy.Actor{UserID: 1, Role: policy.RoleStaff, Override: true}

	_, err := eng.Transition(context.Background(), override, 424242, TransitionInput{Target: StatusPending})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateForcesPending(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	owner := seedWorkflowUser(t, db, "customer1")
	actor := policy.Actor{UserID: owner.ID, Role: policy.RoleCustomer}

	in := SubmissionInput{FirstName: "Sara", LastName: "Moradi", Amount: 5000, PayDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}
	rec, err := eng.Create(context.Background(), actor, in, []receipts.File{receiptFile("r.png", "receipt-bytes")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Status != string(StatusPending) {
		t.Fatalf("status = %s", rec.Status)
	}
	if rec.UserID == nil || *rec.UserID != owner.ID {
		t.Fatalf("owner = %v", rec.UserID)
	}
	logs := statusLogs(t, db, rec.ID, models.ActionCreated)
	if len(logs) != 1 || logs[0].FromStatus != "" || logs[0].ToStatus != string(StatusPending) {
		t.Fatalf("created log = %#v", logs)
	}
	var n int64
	db.Model(&models.PaymentReceipt{}).Where("payment_id = ?", rec.ID).Count(&n)
	if n != 1 {
		t.Fatalf("receipts = %d", n)
	}
}

func TestCreateAnonymousHasNoOwner(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())

	in := SubmissionInput{FirstName: "Walk", LastName: "In", Amount: 100, PayDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}
	rec, err := eng.Create(context.Background(), policy.Anonymous, in, []receipts.File{receiptFile("r.pdf", "pdf-bytes")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.UserID != nil {
		t.Fatalf("anonymous record should have no owner, got %v", *rec.UserID)
	}
	logs := statusLogs(t, db, rec.ID, models.ActionCreated)
	if len(logs) != 1 || logs[0].ActorID != nil {
		t.Fatalf("anonymous created log = %#v", logs)
	}
}

func TestCreateValidation(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	ctx := context.Background()
	base := SubmissionInput{FirstName: "A", LastName: "B", Amount: 100, PayDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}
	files := []receipts.File{receiptFile("r.png", "x")}

	noName := base
	noName.FirstName = " "
	if _, err := eng.Create(ctx, policy.Anonymous, noName, files); !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("name: %v", err)
	}
	badAmount := base
	badAmount.Amount = 0
	if _, err := eng.Create(ctx, policy.Anonymous, badAmount, files); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("amount: %v", err)
	}
	noDate := base
	noDate.PayDate = time.Time{}
	if _, err := eng.Create(ctx, policy.Anonymous, noDate, files); !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("date: %v", err)
	}
	if _, err := eng.Create(ctx, policy.Anonymous, base, nil); !errors.Is(err, receipts.ErrNoFiles) {
		t.Fatalf("files: %v", err)
	}
}

func TestEditOwnershipAndStatus(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	owner := seedWorkflowUser(t, db, "owner")
	other := seedWorkflowUser(t, db, "other")
	ctx := context.Background()
	in := SubmissionInput{FirstName: "Sara", LastName: "Moradi", Amount: 700, PayDate: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)}

	rec := seedPayment(t, db, &owner.ID, StatusIncomplete, true)
	db.Create(&models.PaymentReceipt{PaymentID: rec.ID, StoredName: "s", FileName: "old.png", FileHash: "h1"})

	if _, err := eng.Edit(ctx, policy.Actor{UserID: other.ID, Role: policy.RoleCustomer}, rec.ID, in, nil); !errors.Is(err, ErrDenied) {
		t.Fatalf("non-owner: %v", err)
	}
	if _, err := eng.Edit(ctx, policy.Anonymous, rec.ID, in, nil); !errors.Is(err, ErrDenied) {
		t.Fatalf("anonymous: %v", err)
	}

	pending := seedPayment(t, db, &owner.ID, StatusPending, false)
	if _, err := eng.Edit(ctx, policy.Actor{UserID: owner.ID, Role: policy.RoleCustomer}, pending.ID, in, nil); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("non-incomplete: %v", err)
	}

	// Owner edit of an incomplete record resets it to pending and clears the
	// finance lock; retained receipts satisfy the file requirement.
	out, err := eng.Edit(ctx, policy.Actor{UserID: owner.ID, Role: policy.RoleCustomer}, rec.ID, in, nil)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if out.Status != string(StatusPending) || out.LockedByFinance {
		t.Fatalf("edit result status=%s locked=%v", out.Status, out.LockedByFinance)
	}
	logs := statusLogs(t, db, rec.ID, models.ActionEdited)
	if len(logs) != 1 || logs[0].FromStatus != string(StatusIncomplete) || logs[0].ToStatus != string(StatusPending) {
		t.Fatalf("edited log = %#v", logs)
	}
}

func TestEditRequiresSomeReceipt(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	owner := seedWorkflowUser(t, db, "owner")
	rec := seedPayment(t, db, &owner.ID, StatusIncomplete, false)
	in := SubmissionInput{FirstName: "A", LastName: "B", Amount: 10, PayDate: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)}

	_, err := eng.Edit(context.Background(), policy.Actor{UserID: owner.ID, Role: policy.RoleCustomer}, rec.ID, in, nil)
	if !errors.Is(err, receipts.ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles with no stored receipts, got %v", err)
	}
}

func TestEditRejectsDuplicateOfStoredReceipt(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	owner := seedWorkflowUser(t, db, "owner")
	actor := policy.Actor{UserID: owner.ID, Role: policy.RoleCustomer}
	ctx := context.Background()
	in := SubmissionInput{FirstName: "A", LastName: "B", Amount: 10, PayDate: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)}

	rec, err := eng.Create(ctx, actor, in, []receipts.File{receiptFile("proof.png", "same-bytes")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Model(&models.PaymentRecord{}).Where("id = ?", rec.ID).Update("status", string(StatusIncomplete)).Error; err != nil {
		t.Fatal(err)
	}

	// Same bytes under a different name: the content hash catches it.
	_, err = eng.Edit(ctx, actor, rec.ID, in, []receipts.File{receiptFile("renamed.png", "same-bytes")})
	if !errors.Is(err, receipts.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

// TestFullReviewPipeline walks one record through the whole review sequence
// and checks the log trail and lock behavior at each step.
func TestFullReviewPipeline(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	ctx := context.Background()
	owner := seedWorkflowUser(t, db, "customer")
	commercial := policy.Actor{UserID: seedWorkflowUser(t, db, "commercial").ID, Role: policy.RoleCommercial}
	finance := policy.Actor{UserID: seedWorkflowUser(t, db, "finance").ID, Role: policy.RoleFinance}

	in := SubmissionInput{FirstName: "Sara", LastName: "Moradi", Amount: 90000, PayDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)}
	rec, err := eng.Create(ctx, policy.Actor{UserID: owner.ID, Role: policy.RoleCustomer}, in, []receipts.File{receiptFile("r.png", "proof")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Status != string(StatusPending) {
		t.Fatalf("created status = %s", rec.Status)
	}

	// Commercial review needs no note.
	if _, err := eng.Transition(ctx, commercial, rec.ID, TransitionInput{Target: StatusCommercialReview}); err != nil {
		t.Fatalf("commercial review: %v", err)
	}
	// Rejection without a note fails, with a note it succeeds and a
	// commercial rejection leaves the lock off.
	if _, err := eng.Transition(ctx, commercial, rec.ID, TransitionInput{Target: StatusRejected}); !errors.Is(err, ErrNoteRequired) {
		t.Fatalf("noteless rejection: %v", err)
	}
	out, err := eng.Transition(ctx, commercial, rec.ID, TransitionInput{Target: StatusRejected, Note: "missing info"})
	if err != nil {
		t.Fatalf("commercial rejection: %v", err)
	}
	if out.LockedByFinance {
		t.Fatal("commercial rejection must not lock")
	}
	if out.LastStaffNote != "missing info" {
		t.Fatalf("note = %q", out.LastStaffNote)
	}

	// Finance final approval locks the record against everyone below
	// override, commercial included.
	out, err = eng.Transition(ctx, finance, rec.ID, TransitionInput{Target: StatusFinalApproved, Note: "ok"})
	if err != nil {
		t.Fatalf("final approval: %v", err)
	}
	if !out.LockedByFinance {
		t.Fatal("final approval must lock")
	}
	if _, err := eng.Transition(ctx, commercial, rec.ID, TransitionInput{Target: StatusCommercialReview}); !errors.Is(err, ErrDenied) {
		t.Fatalf("commercial after lock: %v", err)
	}

	// Log trail: created plus one entry per successful transition, each
	// FromStatus being the status it actually overwrote.
	logs := statusLogs(t, db, rec.ID, models.ActionStatusChanged)
	if len(logs) != 3 {
		t.Fatalf("status_changed entries = %d", len(logs))
	}
	steps := [][2]string{
		{string(StatusPending), string(StatusCommercialReview)},
		{string(StatusCommercialReview), string(StatusRejected)},
		{string(StatusRejected), string(StatusFinalApproved)},
	}
	for i, want := range steps {
		if logs[i].FromStatus != want[0] || logs[i].ToStatus != want[1] {
			t.Fatalf("step %d: %s -> %s, want %s -> %s", i, logs[i].FromStatus, logs[i].ToStatus, want[0], want[1])
		}
	}
}

func TestRecordViewLogsStaffOnly(t *testing.T) {
	db := setupWorkflowTestDB(t)
	eng := NewEngine(db, newMemStore())
	rec := seedPayment(t, db, nil, StatusCommercialReview, false)
	ctx := context.Background()

	if err := eng.RecordView(ctx, policy.Actor{UserID: 9, Role: policy.RoleCustomer}, rec.ID); err != nil {
		t.Fatalf("customer view: %v", err)
	}
	if logs := statusLogs(t, db, rec.ID, models.ActionViewed); len(logs) != 0 {
		t.Fatalf("customer view logged: %d", len(logs))
	}

	staff := seedWorkflowUser(t, db, "reviewer")
	if err := eng.RecordView(ctx, policy.Actor{UserID: staff.ID, Role: policy.RoleFinance}, rec.ID); err != nil {
		t.Fatalf("staff view: %v", err)
	}
	logs := statusLogs(t, db, rec.ID, models.ActionViewed)
	if len(logs) != 1 {
		t.Fatalf("viewed logs = %d", len(logs))
	}
	if logs[0].FromStatus != string(StatusCommercialReview) || logs[0].ToStatus != string(StatusCommercialReview) {
		t.Fatalf("viewed log statuses = %s -> %s", logs[0].FromStatus, logs[0].ToStatus)
	}
}
