package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ravelon/internal/domain"
	"ravelon/internal/i18n"
)

type principalDTO struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            string    `json:"role"`
	Plan            string    `json:"plan"`
	Credits         int       `json:"credits"`
	LastCreditReset string    `json:"last_credit_reset"`
	LastLogin       time.Time `json:"last_login"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPrincipalDTO(acc domain.Account) principalDTO {
	return principalDTO{
		ID:              acc.ID,
		Email:           acc.Email,
		Name:            acc.Name,
		Role:            string(acc.Role),
		Plan:            string(acc.Plan),
		Credits:         acc.Credits,
		LastCreditReset: acc.LastCreditReset.String(),
		LastLogin:       acc.LastLogin,
		CreatedAt:       acc.CreatedAt,
	}
}

type grantRequest struct {
	Amount int `json:"amount"`
}

// AdminPrincipals lists accounts matching ?q= on name or e-mail.
func (a *App) AdminPrincipals(w http.ResponseWriter, r *http.Request) {
	actor, err := a.account(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.Admin.ListPrincipals(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]principalDTO, 0, len(list))
	for _, acc := range list {
		items = append(items, toPrincipalDTO(acc))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// AdminGrant adds credits to a principal.
func (a *App) AdminGrant(w http.ResponseWriter, r *http.Request) {
	actor, err := a.account(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req grantRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, i18n.CodeInvalidRequest)
		return
	}
	acc, err := a.Admin.GrantCredits(r.Context(), actor, chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPrincipalDTO(*acc))
}

// AdminRemove bans a principal. Removing oneself is a no-op.
func (a *App) AdminRemove(w http.ResponseWriter, r *http.Request) {
	actor, err := a.account(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	removed, err := a.Admin.RemovePrincipal(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"removed": removed})
}

// AdminStats reports the principal count and the latest analytics day.
func (a *App) AdminStats(w http.ResponseWriter, r *http.Request) {
	actor, err := a.account(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.Admin.ListPrincipals(r.Context(), actor, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	body := map[string]any{"total_principals": len(list)}
	if a.Analytics != nil {
		day, err := a.Analytics.GetSummary(r.Context())
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			a.fail(w, r, err)
			return
		default:
			body["day"] = day.Day
			body["enhancements"] = day.Enhancements
			body["guest_actions"] = day.GuestActions
			body["credits_consumed"] = day.CreditsConsumed
			body["ad_rewards"] = day.AdRewards
			body["plan_changes"] = day.PlanChanges
			body["credits_granted"] = day.CreditsGranted
			body["principals_removed"] = day.PrincipalsRemoved
			body["signups"] = day.Signups
		}
	}
	a.json(w, http.StatusOK, body)
}
