// Package query is the read side: role-scoped listing, filtering and sorting
// of payment records, plus the row shapes handed to presentation and export.
// It never mutates anything.
package query

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/workflow"
)

// DateParser is the calendar-conversion collaborator boundary: it parses the
// fixed textual date pattern or reports failure. Failures never error; the
// façade treats an unparsable date as "no filter".
type DateParser func(text string) (time.Time, bool)

// DefaultDateParser parses the YYYY/MM/DD pattern in the Gregorian calendar.
// Deployments on other calendars plug their converter in instead.
func DefaultDateParser(text string) (time.Time, bool) {
	t, err := time.Parse("2006/01/02", strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Filters are the optional list criteria. Text fields are substring matches,
// Amount and PayDate are exact. Status is an internal status (staff) while
// Bucket is the coarser customer-facing grouping; staff may use either,
// customers only Bucket.
type Filters struct {
	FirstName      string
	LastName       string
	Phone          string
	City           string
	TrackingCode   string
	PayerAccount   string
	PayerName      string
	PayerBank      string
	Amount         *int64
	PayDate        string // raw text, parsed through the DateParser
	Status         string
	Bucket         string
	CounterpartyID *uint
}

// sortColumns is the sort-key allow-list. Anything else silently falls back
// to newest first.
var sortColumns = map[string]string{
	"id":         "id",
	"amount":     "amount",
	"pay_date":   "pay_date",
	"created_at": "created_at",
	"status":     "status",
	"last_name":  "last_name",
}

// Facade builds role-scoped record sets.
type Facade struct {
	DB    *gorm.DB
	Parse DateParser
}

func NewFacade(db *gorm.DB, parse DateParser) *Facade {
	if parse == nil {
		parse = DefaultDateParser
	}
	return &Facade{DB: db, Parse: parse}
}

// List returns the records visible to the actor, filtered and sorted.
// Non-staff callers only ever see their own records and only the restricted
// filter subset (name, tracking code, amount, date, bucket) applies for them.
func (f *Facade) List(ctx context.Context, actor policy.Actor, flt Filters, sortKey, sortDir string) ([]models.PaymentRecord, error) {
	q := f.DB.WithContext(ctx).Model(&models.PaymentRecord{}).Preload("Counterparty")

	if !actor.StaffEquivalent() {
		q = q.Where("user_id = ?", actor.UserID)
	}

	like := func(col, v string) {
		if v = strings.TrimSpace(v); v != "" {
			q = q.Where("lower("+col+") LIKE ?", "%"+strings.ToLower(v)+"%")
		}
	}
	like("first_name", flt.FirstName)
	like("last_name", flt.LastName)
	like("tracking_code", flt.TrackingCode)
	if actor.StaffEquivalent() {
		like("phone", flt.Phone)
		like("city", flt.City)
		like("payer_account_number", flt.PayerAccount)
		like("payer_full_name", flt.PayerName)
		like("payer_bank_name", flt.PayerBank)
		if flt.CounterpartyID != nil {
			q = q.Where("counterparty_id = ?", *flt.CounterpartyID)
		}
		if flt.Status != "" {
			if st, ok := workflow.ParseStatus(flt.Status); ok {
				q = q.Where("status = ?", string(st))
			}
		}
	}
	if flt.Bucket != "" {
		if statuses := workflow.BucketStatuses(flt.Bucket); statuses != nil {
			q = q.Where("status IN ?", statuses)
		}
	}
	if flt.Amount != nil {
		q = q.Where("amount = ?", *flt.Amount)
	}
	if flt.PayDate != "" {
		// Unparsable dates are ignored, not errors.
		if day, ok := f.Parse(flt.PayDate); ok {
			q = q.Where("pay_date = ?", day)
		}
	}

	order := "id desc"
	if col, ok := sortColumns[sortKey]; ok {
		dir := "asc"
		if strings.EqualFold(sortDir, "desc") {
			dir = "desc"
		}
		order = col + " " + dir
	}

	var out []models.PaymentRecord
	if err := q.Order(order).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
