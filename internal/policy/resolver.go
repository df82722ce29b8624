package policy

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/internal/models"
)

// Resolver turns an authenticated user id into an Actor.
type Resolver interface {
	Resolve(ctx context.Context, userID uint) (Actor, error)
}

// DBResolver classifies callers from the users/user_profiles tables.
//
// Precedence: the superuser flag grants override first, then the staff account
// flag forces the generic staff role, then the profile's role attribute
// applies, and a missing profile means customer. Deterministic given the
// stored user, no side effects.
type DBResolver struct {
	DB *gorm.DB
}

func NewDBResolver(db *gorm.DB) *DBResolver { return &DBResolver{DB: db} }

func (r *DBResolver) Resolve(ctx context.Context, userID uint) (Actor, error) {
	if userID == 0 {
		return Anonymous, nil
	}
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Anonymous, nil
		}
		return Actor{}, err
	}

	actor := Actor{UserID: user.ID, Override: user.IsSuperuser}

	var profile models.UserProfile
	err := r.DB.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error
	switch {
	case err == nil:
		actor.Role = ParseRole(profile.Role)
	case errors.Is(err, gorm.ErrRecordNotFound):
		actor.Role = RoleCustomer
	default:
		return Actor{}, err
	}

	// The staff account flag promotes profile-less or customer-profiled
	// accounts; it never demotes an explicit commercial/finance role.
	if user.IsStaff && actor.Role == RoleCustomer {
		actor.Role = RoleStaff
	}
	if actor.Override && actor.Role == RoleCustomer {
		actor.Role = RoleStaff
	}
	return actor, nil
}
