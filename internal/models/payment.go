package models

import "time"

// PaymentRecord is one submitted payment claim and the single source of truth
// for its current status. History lives in PaymentActivityLog; only the
// workflow engine writes Status, LockedByFinance or the log.
type PaymentRecord struct {
	ID             uint          `gorm:"primaryKey"`
	UserID         *uint         `gorm:"index"` // nullable: deleting a user must not erase financial history
	User           *User         `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
	CounterpartyID *uint         `gorm:"index"`
	Counterparty   *Counterparty `gorm:"foreignKey:CounterpartyID"`

	FirstName    string `gorm:"size:50;not null"`
	LastName     string `gorm:"size:50;not null"`
	Organization string `gorm:"size:100"`
	City         string `gorm:"size:50"`
	Phone        string `gorm:"size:20"`

	Amount       int64     `gorm:"not null"` // smallest currency unit, > 0
	PayDate      time.Time `gorm:"type:date;not null"`
	TrackingCode *string   `gorm:"size:50"`

	PayerAccountNumber string `gorm:"size:64"`
	PayerFullName      string `gorm:"size:128"`
	PayerBankName      string `gorm:"size:64"`

	// Legacy-optional beneficiary fields: rows migrated from the old system
	// carry the "-" placeholder, which read paths blank out.
	BeneficiaryBankName      string `gorm:"size:64"`
	BeneficiaryAccountNumber string `gorm:"size:64"`
	BeneficiaryAccountOwner  string `gorm:"size:128"`

	Status          string `gorm:"size:20;not null;index"`
	LockedByFinance bool   `gorm:"not null;default:false"`
	LastStaffNote   string

	Receipts     []PaymentReceipt     `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
	ActivityLogs []PaymentActivityLog `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
}

// legacyPlaceholder is the sentinel the data migration left in optional fields.
const legacyPlaceholder = "-"

// CleanPlaceholder blanks the legacy migration sentinel. Applied on read paths
// only; writes are not rejected since old rows legitimately carry it.
func CleanPlaceholder(v string) string {
	if v == legacyPlaceholder {
		return ""
	}
	return v
}
