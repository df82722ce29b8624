package models

import "time"

// LoginAdvertisement fills one of the four banner slots on the login page.
// Managed by the override role through the admin surface; the public endpoint
// only reads the currently active set.
type LoginAdvertisement struct {
	ID          uint      `gorm:"primaryKey"`
	Slot        int       `gorm:"unique;not null"` // 1..4
	Title       string    `gorm:"size:120;not null"`
	Description string
	ImagePath   string    `gorm:"size:255"`
	LinkURL     string    `gorm:"size:255"`
	StartDate   time.Time `gorm:"type:date;not null"`
	EndDate     time.Time `gorm:"type:date;not null"`
	IsVisible   bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActiveOn reports whether the ad should show on the given day.
func (a *LoginAdvertisement) ActiveOn(day time.Time) bool {
	d := day.Truncate(24 * time.Hour)
	return a.IsVisible && !a.StartDate.After(d) && !a.EndDate.Before(d)
}
