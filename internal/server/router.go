// Package server wires handlers, middleware and dependencies into the HTTP
// router.
package server

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/auth"
	"github.com/diewo77/payment-tracker/httpx"
	"github.com/diewo77/payment-tracker/internal/handlers"
	"github.com/diewo77/payment-tracker/internal/middleware"
	"github.com/diewo77/payment-tracker/internal/models"
	"github.com/diewo77/payment-tracker/internal/policy"
	"github.com/diewo77/payment-tracker/internal/query"
	"github.com/diewo77/payment-tracker/internal/receipts"
	"github.com/diewo77/payment-tracker/internal/workflow"
)

const resolverTTL = 5 * time.Minute

// New builds the full application handler around the given database and
// receipt store.
func New(db *gorm.DB, store receipts.Store) http.Handler {
	resolver := policy.NewCachedResolver(policy.NewDBResolver(db), resolverTTL)
	engine := workflow.NewEngine(db, store)
	facade := query.NewFacade(db, query.DefaultDateParser)

	authH := handlers.NewAuthHandler(db)
	paymentH := handlers.NewPaymentHandler(db, engine, facade, resolver)
	statusH := handlers.NewStatusHandler(engine, resolver)
	counterpartyH := handlers.NewCounterpartyHandler(db, resolver)
	exportH := handlers.NewExportHandler(facade, resolver)
	profileH := handlers.NewProfileHandler(db, resolver)
	adsH := handlers.NewAdsHandler(db)

	auth.SetUserVerifier(func(ctx context.Context, uid uint) bool {
		var n int64
		db.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Count(&n)
		return n > 0
	})

	mux := http.NewServeMux()
	authH.Register(mux)

	// Submission is open to anonymous callers; everything else behind a
	// session.
	mux.HandleFunc("/payments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			auth.RequireAuth(http.HandlerFunc(paymentH.List)).ServeHTTP(w, r)
		case http.MethodPost:
			paymentH.Create(w, r)
		default:
			w.Header().Set("Allow", "GET, POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})
	mux.Handle("/payments/edit", requirePost(auth.RequireAuth(http.HandlerFunc(paymentH.Edit))))
	mux.Handle("/payments/status", requirePost(auth.RequireAuth(http.HandlerFunc(statusH.Update))))
	mux.Handle("/payments/timeline", auth.RequireAuth(http.HandlerFunc(paymentH.Timeline)))

	mux.Handle("/counterparties", auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			counterpartyH.List(w, r)
		case http.MethodPost:
			counterpartyH.Create(w, r)
		default:
			w.Header().Set("Allow", "GET, POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})))
	mux.Handle("/counterparties/update", requirePost(auth.RequireAuth(http.HandlerFunc(counterpartyH.Update))))
	mux.Handle("/counterparties/delete", requirePost(auth.RequireAuth(http.HandlerFunc(counterpartyH.Delete))))

	mux.Handle("/export", auth.RequireAuth(http.HandlerFunc(exportH.Export)))
	mux.Handle("/profile/password", requirePost(auth.RequireAuth(http.HandlerFunc(profileH.ChangePassword))))
	mux.HandleFunc("/login-ads", adsH.Active)

	health := healthHandler(db)
	mux.Handle("/health", health)
	mux.Handle("/healthz", health)

	var h http.Handler = mux
	h = middleware.ForcePasswordChange(db)(h)
	h = auth.Middleware(h)
	h = middleware.Logging(h)
	h = middleware.Recover(h)
	return h
}

func requirePost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(db *gorm.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
			httpx.JSONError(w, http.StatusServiceUnavailable, "db_unreachable", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
