package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/receipts"
)

// Engine owns every mutation of a payment's status, lock flag and activity
// log. No other component writes those fields.
type Engine struct {
	DB    *gorm.DB
	Store receipts.Store
}

func NewEngine(db *gorm.DB, store receipts.Store) *Engine {
	return &Engine{DB: db, Store: store}
}

// TransitionInput is a staff transition request.
type TransitionInput struct {
	Target         Status
	Note           string
	CounterpartyID *uint
}

// Transition validates and applies a staff status change. The status, note,
// lock flag and counterparty persist as one atomic update together with the
// activity-log append; on any validation failure nothing is written.
//
// The payment row is locked for the duration of the transaction so the log's
// FromStatus is always the value actually overwritten, even when two staff
// transitions race. (sqlite has no FOR UPDATE; its single writer gives the
// same guarantee there.)
func (e *Engine) Transition(ctx context.Context, actor policy.Actor, paymentID uint, in TransitionInput) (*models.PaymentRecord, error) {
	if _, ok := ParseStatus(string(in.Target)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Target)
	}

	var rec models.PaymentRecord
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := authorizeTransition(actor, &rec, in.Target); err != nil {
			return err
		}

		note := strings.TrimSpace(in.Note)
		if NoteRequired(in.Target) && note == "" {
			return ErrNoteRequired
		}

		updates := map[string]any{
			"status":          string(in.Target),
			"last_staff_note": note,
		}

		// One-way finance lock; only the override role clears it, and it
		// clears it on every action it performs.
		switch {
		case actor.Override:
			updates["locked_by_finance"] = false
		case actor.Role == policy.RoleFinance && locksWhenSetByFinance(in.Target):
			updates["locked_by_finance"] = true
		}

		if in.CounterpartyID != nil && mayReassignCounterparty(actor) {
			var cp models.Counterparty
			if err := tx.First(&cp, *in.CounterpartyID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: counterparty", ErrNotFound)
				}
				return err
			}
			updates["counterparty_id"] = cp.ID
		}

		prior := rec.Status
		if err := tx.Model(&rec).Updates(updates).Error; err != nil {
			return err
		}
		return appendLog(tx, &rec, actorRef(actor), models.ActionStatusChanged, prior, string(in.Target), note)
	})
	if err != nil {
		return nil, err
	}
	if err := e.DB.WithContext(ctx).Preload("Counterparty").First(&rec, rec.ID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// SubmissionInput carries the customer-supplied payment fields shared by
// create and edit.
type SubmissionInput struct {
	FirstName    string
	LastName     string
	Organization string
	City         string
	Phone        string
	Amount       int64
	PayDate      time.Time
	TrackingCode *string

	PayerAccountNumber string
	PayerFullName      string
	PayerBankName      string
}

func (in *SubmissionInput) validate() error {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("%w: name", ErrMissingRequired)
	}
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	if in.PayDate.IsZero() {
		return fmt.Errorf("%w: pay_date", ErrMissingRequired)
	}
	return nil
}

// Create records a new customer submission. Status is forced to pending no
// matter what was submitted, and at least one admitted receipt is required.
// Anonymous submissions are allowed; the record then has no owning user.
func (e *Engine) Create(ctx context.Context, actor policy.Actor, in SubmissionInput, files []receipts.File) (*models.PaymentRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, receipts.ErrNoFiles
	}
	staged, err := receipts.Admit(files)
	if err != nil {
		return nil, err
	}

	rec := models.PaymentRecord{
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Organization:       in.Organization,
		City:               in.City,
		Phone:              in.Phone,
		Amount:             in.Amount,
		PayDate:            in.PayDate,
		TrackingCode:       in.TrackingCode,
		PayerAccountNumber: in.PayerAccountNumber,
		PayerFullName:      in.PayerFullName,
		PayerBankName:      in.PayerBankName,
		Status:             string(StatusPending),
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		rec.UserID = &uid
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if err := receipts.AttachTx(tx, e.Store, rec.ID, staged); err != nil {
			return err
		}
		return appendLog(tx, &rec, actorRef(actor), models.ActionCreated, "", string(StatusPending), "")
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Edit reopens an incomplete record. Only the owning customer may edit, only
// while the status is incomplete; the edit resets the status to pending and
// clears the finance lock. New uploads are deduplicated against receipts
// already stored; none are required when prior uploads are retained.
func (e *Engine) Edit(ctx context.Context, actor policy.Actor, paymentID uint, in SubmissionInput, files []receipts.File) (*models.PaymentRecord, error) {
	if actor.UserID == 0 {
		return nil, ErrDenied
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	staged, err := receipts.Admit(files)
	if err != nil {
		return nil, err
	}

	var rec models.PaymentRecord
	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if rec.UserID == nil || *rec.UserID != actor.UserID {
			return ErrDenied
		}
		if Status(rec.Status) != StatusIncomplete {
			return ErrNotEditable
		}
		if len(staged) == 0 {
			var kept int64
			if err := tx.Model(&models.PaymentReceipt{}).Where("payment_id = ?", rec.ID).Count(&kept).Error; err != nil {
				return err
			}
			if kept == 0 {
				return receipts.ErrNoFiles
			}
		}

		prior := rec.Status
		updates := map[string]any{
			"first_name":           in.FirstName,
			"last_name":            in.LastName,
			"organization":         in.Organization,
			"city":                 in.City,
			"phone":                in.Phone,
			"amount":               in.Amount,
			"pay_date":             in.PayDate,
			"tracking_code":        in.TrackingCode,
			"payer_account_number": in.PayerAccountNumber,
			"payer_full_name":      in.PayerFullName,
			"payer_bank_name":      in.PayerBankName,
			"status":               string(StatusPending),
			"locked_by_finance":    false,
		}
		if err := tx.Model(&rec).Updates(updates).Error; err != nil {
			return err
		}
		if err := receipts.AttachTx(tx, e.Store, rec.ID, staged); err != nil {
			return err
		}
		return appendLog(tx, &rec, actorRef(actor), models.ActionEdited, prior, string(StatusPending), "")
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordView appends a viewed entry when a staff-equivalent caller opens a
// record's audit timeline. Customer views of their own records are not logged.
func (e *Engine) RecordView(ctx context.Context, actor policy.Actor, paymentID uint) error {
	if !actor.StaffEquivalent() {
		return nil
	}
	var rec models.PaymentRecord
	if err := e.DB.WithContext(ctx).Select("id", "status").First(&rec, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return appendLog(e.DB.WithContext(ctx), &rec, actorRef(actor), models.ActionViewed, rec.Status, rec.Status, "")
}

func actorRef(actor policy.Actor) *uint {
	if actor.UserID == 0 {
		return nil
	}
	uid := actor.UserID
	return &uid
}

func appendLog(tx *gorm.DB, rec *models.PaymentRecord, actorID *uint, action, from, to, note string) error {
	entry := models.PaymentActivityLog{
		PaymentID:  rec.ID,
		ActorID:    actorID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	}
	return tx.Create(&entry).Error
}
