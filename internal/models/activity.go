package models

import "time"

// Activity log action kinds.
const (
	ActionCreated       = "created"
	ActionEdited        = "edited"
	ActionStatusChanged = "status_changed"
	ActionViewed        = "viewed"
)

// PaymentActivityLog is one immutable audit entry. Rows are only ever
// inserted; no code path updates or deletes them short of cascading payment
// deletion. Display order is newest first, persisted order is insertion order.
type PaymentActivityLog struct {
	ID         uint      `gorm:"primaryKey"`
	PaymentID  uint      `gorm:"not null;index"`
	ActorID    *uint     // nullable: anonymous/system actions log without an actor
	Actor      *User     `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL"`
	Action     string    `gorm:"size:20;not null"`
	FromStatus string    `gorm:"size:20"`
	ToStatus   string    `gorm:"size:20"`
	Note       string
	CreatedAt  time.Time `gorm:"index"`
}
