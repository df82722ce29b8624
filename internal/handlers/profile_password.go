package handlers

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/auth"
	"github.com/diewo77/payment-tracker/httpx"
	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
)

type ProfileHandler struct {
	DB    *gorm.DB
	Cache *policy.CachedResolver
}

func NewProfileHandler(db *gorm.DB, cache *policy.CachedResolver) *ProfileHandler {
	return &ProfileHandler{DB: db, Cache: cache}
}

// ChangePassword: POST /profile/password. Clears the force-password-change
// flag so provisioned customers regain full access after rotating.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || uid == 0 {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		Current string `json:"current"`
		New     string `json:"new"`
		Confirm string `json:"confirm"`
	}
	if err := httpx.DecodeJSON(r, &req, 1<<16); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Current)) != nil {
		httpx.JSONError(w, http.StatusBadRequest, "current_password_incorrect", nil)
		return
	}
	if len(req.New) < 8 || req.New != req.Confirm {
		httpx.JSONError(w, http.StatusBadRequest, "password_mismatch", nil)
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(req.New), bcrypt.DefaultCost)
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", string(hash)).Error; err != nil {
			return err
		}
		return tx.Model(&models.UserProfile{}).Where("user_id = ?", uid).
			Update("force_password_change", false).Error
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_save_password", nil)
		return
	}
	if h.Cache != nil {
		h.Cache.Invalidate(uid)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}
