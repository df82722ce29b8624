package models

import "time"

// PaymentReceipt is one uploaded supporting document. The (payment, hash)
// unique index is the durable guarantee behind upload deduplication: the same
// bytes can never be attached twice to one payment, even across edits.
type PaymentReceipt struct {
	ID         uint   `gorm:"primaryKey"`
	PaymentID  uint   `gorm:"not null;uniqueIndex:uniq_payment_receipt_hash"`
	StoredName string `gorm:"size:255;not null"` // blob store reference
	FileName   string `gorm:"size:255;not null"` // original upload name
	FileHash   string `gorm:"size:64;not null;uniqueIndex:uniq_payment_receipt_hash"`
	CreatedAt  time.Time
}
