package models

import "time"

// User carries credentials plus the two account-level flags the resolver
// consults: IsStaff marks staff-equivalent accounts, IsSuperuser marks the
// override role that bypasses lock and allow-list restrictions.
type User struct {
	ID          uint   `gorm:"primaryKey"`
	Username    string `gorm:"unique;not null;index"`
	Password    string `gorm:"not null"` // bcrypt hash
	IsStaff     bool
	IsSuperuser bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile roles. Stored as strings on UserProfile; the policy package resolves
// them into a closed Role type once per request.
const (
	RoleNameCustomer   = "customer"
	RoleNameCommercial = "commercial"
	RoleNameFinance    = "finance"
	RoleNameStaff      = "staff"
)

// UserProfile holds the contact attributes and assigned role for a user.
// A user without a profile is treated as a customer with empty fields.
type UserProfile struct {
	ID                  uint `gorm:"primaryKey"`
	UserID              uint `gorm:"unique;not null"`
	User                User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Phone               string
	Organization        string
	City                string
	Role                string `gorm:"not null;default:'customer'"`
	ForcePasswordChange bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
