// Package middleware carries the cross-cutting request wrappers: panic
// recovery, access logging, and the forced password rotation gate.
package middleware

import (
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/auth"
	"github.com/diewo77/payment-tracker/httpx"
	"github.com/diewo77/payment-tracker/internal/models"
)

// Recover converts panics into a 500 envelope instead of killing the
// connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic: %v (%s %s)", rec, r.Method, r.URL.Path)
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Logging writes one access line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// passwordExempt lists paths reachable while a rotation is pending. The user
// must still be able to log in, rotate, and see the login page assets.
var passwordExempt = map[string]bool{
	"/login":            true,
	"/logout":           true,
	"/signup":           true,
	"/profile/password": true,
	"/login-ads":        true,
	"/health":           true,
	"/healthz":          true,
}

// ForcePasswordChange blocks customer accounts flagged for mandatory rotation
// from every endpoint except the exempt set. The gate applies to the customer
// role only; staff accounts rotate through their own provisioning flow.
func ForcePasswordChange(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordExempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok || uid == 0 {
				next.ServeHTTP(w, r)
				return
			}
			var profile models.UserProfile
			err := db.Where("user_id = ?", uid).First(&profile).Error
			if err == nil && profile.ForcePasswordChange && profile.Role == models.RoleNameCustomer {
				httpx.JSONError(w, http.StatusForbidden, "password_change_required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
