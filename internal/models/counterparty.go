package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrCounterpartyPermanent is returned whenever a counterparty delete is
// attempted, regardless of caller privilege.
var ErrCounterpartyPermanent = errors.New("counterparty records are permanent and cannot be deleted")

// Counterparty is append-only reference data staff can assign to a payment.
// Create and update are allowed; deletion is refused at the data layer so no
// payment ever loses its assigned counterparty.
type Counterparty struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:120;unique;not null"`
	Description string `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BeforeDelete blocks every delete path, including batch deletes routed
// through GORM. Raw SQL is kept off this table by convention.
func (Counterparty) BeforeDelete(*gorm.DB) error {
	return ErrCounterpartyPermanent
}
