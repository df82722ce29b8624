package handlers

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/httpx"
	"github.com/diewo77/payment-tracker/internal/models"
)

type AdsHandler struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewAdsHandler(db *gorm.DB) *AdsHandler {
	return &AdsHandler{DB: db, Now: time.Now}
}

type adView struct {
	Slot        int    `json:"slot"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImagePath   string `json:"image_path,omitempty"`
	LinkURL     string `json:"link_url,omitempty"`
}

// Active: GET /login-ads. Public; returns the banner set active today keyed
// by slot so the login page can render fixed positions.
func (h *AdsHandler) Active(w http.ResponseWriter, r *http.Request) {
	var ads []models.LoginAdvertisement
	if err := h.DB.Order("slot asc").Find(&ads).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_ads", nil)
		return
	}
	today := h.Now()
	out := make([]adView, 0, len(ads))
	for i := range ads {
		if !ads[i].ActiveOn(today) {
			continue
		}
		out = append(out, adView{
			Slot:        ads[i].Slot,
			Title:       ads[i].Title,
			Description: ads[i].Description,
			ImagePath:   ads[i].ImagePath,
			LinkURL:     ads[i].LinkURL,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}
