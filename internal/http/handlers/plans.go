package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ravelon/internal/domain"
)

// ListPlans returns the catalog in display order.
func (a *App) ListPlans(w http.ResponseWriter, r *http.Request) {
	catalog := a.Ledger.Catalog()
	a.json(w, http.StatusOK, map[string]any{
		"version": catalog.Version(),
		"items":   catalog.List(),
	})
}

// Subscribe moves the caller to the plan in the path. Payment is instant.
func (a *App) Subscribe(w http.ResponseWriter, r *http.Request) {
	acct, err := a.account(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	plan := domain.NormalizePlanID(chi.URLParam(r, "plan_id"))
	profile, err := a.Accounts.Subscribe(r.Context(), acct.ID, plan)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.issue(w, r, profile)
}
