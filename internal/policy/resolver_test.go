package policy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/internal/models"
)

func setupPolicyTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.UserProfile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, username, role string, isStaff, isSuper bool) models.User {
	t.Helper()
	u := models.User{Username: username, Password: "x", IsStaff: isStaff, IsSuperuser: isSuper}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	if role != "" {
		p := models.UserProfile{UserID: u.ID, Role: role}
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("profile: %v", err)
		}
	}
	return u
}

func TestResolvePrecedence(t *testing.T) {
	db := setupPolicyTestDB(t)
	r := NewDBResolver(db)
	ctx := context.Background()

	cases := []struct {
		name     string
		user     models.User
		wantRole Role
		wantOver bool
	}{
		{"customer profile", seedAccount(t, db, "cust", models.RoleNameCustomer, false, false), RoleCustomer, false},
		{"no profile", seedAccount(t, db, "bare", "", false, false), RoleCustomer, false},
		{"commercial", seedAccount(t, db, "com", models.RoleNameCommercial, false, false), RoleCommercial, false},
		{"finance", seedAccount(t, db, "fin", models.RoleNameFinance, false, false), RoleFinance, false},
		{"staff flag promotes", seedAccount(t, db, "stf", models.RoleNameCustomer, true, false), RoleStaff, false},
		{"staff flag keeps finance", seedAccount(t, db, "finstf", models.RoleNameFinance, true, false), RoleFinance, false},
		{"superuser", seedAccount(t, db, "root", "", false, true), RoleStaff, true},
		{"superuser keeps commercial", seedAccount(t, db, "comroot", models.RoleNameCommercial, false, true), RoleCommercial, true},
		{"unknown role string", seedAccount(t, db, "odd", "auditor", false, false), RoleCustomer, false},
	}
	for _, tc := range cases {
		actor, err := r.Resolve(ctx, tc.user.ID)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if actor.Role != tc.wantRole || actor.Override != tc.wantOver {
			t.Errorf("%s: got role=%s override=%v, want role=%s override=%v", tc.name, actor.Role, actor.Override, tc.wantRole, tc.wantOver)
		}
		if actor.UserID != tc.user.ID {
			t.Errorf("%s: user id %d", tc.name, actor.UserID)
		}
	}
}

func TestResolveUnknownUserIsAnonymous(t *testing.T) {
	db := setupPolicyTestDB(t)
	r := NewDBResolver(db)

	for _, uid := range []uint{0, 424242} {
		actor, err := r.Resolve(context.Background(), uid)
		if err != nil {
			t.Fatalf("uid %d: %v", uid, err)
		}
		if actor != Anonymous {
			t.Fatalf("uid %d: got %#v, want Anonymous", uid, actor)
		}
	}
}

func TestStaffEquivalent(t *testing.T) {
	if (Actor{Role: RoleCustomer}).StaffEquivalent() {
		t.Fatal("customer is not staff-equivalent")
	}
	if (Anonymous).StaffEquivalent() {
		t.Fatal("anonymous is not staff-equivalent")
	}
	for _, role := range []Role{RoleCommercial, RoleFinance, RoleStaff} {
		if !(Actor{Role: role}).StaffEquivalent() {
			t.Fatalf("%s should be staff-equivalent", role)
		}
	}
	if !(Actor{Role: RoleCustomer, Override: true}).StaffEquivalent() {
		t.Fatal("override is always staff-equivalent")
	}
}

// countingResolver records how often the inner resolver is consulted.
type countingResolver struct {
	actor Actor
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, userID uint) (Actor, error) {
	c.calls++
	return c.actor, nil
}

func TestCachedResolverCachesWithinTTL(t *testing.T) {
	inner := &countingResolver{actor: Actor{UserID: 1, Role: RoleFinance}}
	r := NewCachedResolver(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		actor, err := r.Resolve(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if actor.Role != RoleFinance {
			t.Fatalf("role = %s", actor.Role)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner called %d times", inner.calls)
	}
}

func TestCachedResolverInvalidate(t *testing.T) {
	inner := &countingResolver{actor: Actor{UserID: 1, Role: RoleCustomer}}
	r := NewCachedResolver(inner, time.Minute)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, 1); err != nil {
		t.Fatal(err)
	}
	inner.actor.Role = RoleFinance
	if actor, _ := r.Resolve(ctx, 1); actor.Role != RoleCustomer {
		t.Fatal("expected stale cached role before invalidation")
	}

	r.Invalidate(1)
	actor, err := r.Resolve(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if actor.Role != RoleFinance {
		t.Fatalf("role after invalidate = %s", actor.Role)
	}
	if inner.calls != 2 {
		t.Fatalf("inner called %d times", inner.calls)
	}
}

func TestCachedResolverExpiry(t *testing.T) {
	inner := &countingResolver{actor: Actor{UserID: 1, Role: RoleStaff}}
	r := NewCachedResolver(inner, -time.Second) // entries are born expired
	ctx := context.Background()

	r.Resolve(ctx, 1)
	r.Resolve(ctx, 1)
	if inner.calls != 2 {
		t.Fatalf("expired entries must re-resolve, inner called %d times", inner.calls)
	}
}
