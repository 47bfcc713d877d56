package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ravelon/internal/accounts"
	"ravelon/internal/clock"
	"ravelon/internal/i18n"
	"ravelon/internal/middleware"
	"ravelon/internal/plans"
)

type loginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      profileDTO `json:"user"`
}

type profileDTO struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	Plan             plans.Plan `json:"plan"`
	Credits          int        `json:"credits"`
	Allotment        int        `json:"allotment"`
	AdGated          bool       `json:"ad_gated"`
	RewardsRemaining int        `json:"rewards_remaining"`
	LastCreditReset  string     `json:"last_credit_reset"`
	TimeZone         string     `json:"time_zone,omitempty"`
	Day              string     `json:"day"`
}

func toProfileDTO(p *accounts.Profile) profileDTO {
	return profileDTO{
		ID:               p.Account.ID,
		Email:            p.Account.Email,
		Name:             p.Account.Name,
		Role:             string(p.Account.Role),
		Plan:             p.Plan,
		Credits:          p.Balance,
		Allotment:        p.Allotment,
		AdGated:          p.AdGated,
		RewardsRemaining: p.RewardsRemaining,
		LastCreditReset:  p.Account.LastCreditReset.String(),
		TimeZone:         p.Account.TimeZone,
		Day:              p.Day.String(),
	}
}

// Login creates or loads the account registered under the e-mail.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.decode(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		a.error(w, r, http.StatusBadRequest, i18n.CodeInvalidRequest)
		return
	}
	profile, err := a.Accounts.Login(r.Context(), req.Email, req.Name, requestZone(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.issue(w, r, profile)
}

// LoginGoogle exchanges a Google ID token for a session token.
func (a *App) LoginGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := a.decode(r, &req); err != nil || req.IDToken == "" {
		a.error(w, r, http.StatusBadRequest, i18n.CodeInvalidRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	identity, err := a.Google.Verify(ctx, req.IDToken)
	if err != nil {
		a.logger().Warn().Err(err).Msg("google verify failed")
		a.fail(w, r, err)
		return
	}
	if !identity.EmailVerified {
		a.error(w, r, http.StatusUnauthorized, i18n.CodeUnauthorized)
		return
	}
	profile, err := a.Accounts.Login(r.Context(), identity.Email, identity.Name, requestZone(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.issue(w, r, profile)
}

func (a *App) issue(w http.ResponseWriter, r *http.Request, profile *accounts.Profile) {
	token, exp, err := middleware.IssueToken(a.JWTSecret, profile.Account.ID, string(profile.Account.Role), string(profile.Account.Plan), a.JWTTTL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: toProfileDTO(profile)})
}

// Me returns the profile with any pending daily reset applied.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	acct, err := a.account(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	profile, err := a.Accounts.Refresh(r.Context(), acct.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toProfileDTO(profile))
}

type creditsResponse struct {
	Guest     bool   `json:"guest"`
	Balance   int    `json:"balance"`
	Allotment int    `json:"allotment"`
	AdGated   bool   `json:"ad_gated"`
	Day       string `json:"day"`
}

// Credits reports the balance of whoever is asking, guests included.
func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	p, err := a.principal(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if p.IsGuest() {
		today := clock.DayOf(a.now(), p.Zone())
		left, err := a.Ledger.GuestRemaining(r.Context(), p.DeviceID, today)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.json(w, http.StatusOK, creditsResponse{Guest: true, Balance: left, Allotment: plans.GuestDailyLimit, AdGated: true, Day: today.String()})
		return
	}
	profile, err := a.Accounts.Refresh(r.Context(), p.Account.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, creditsResponse{Balance: profile.Balance, Allotment: profile.Allotment, AdGated: profile.AdGated, Day: profile.Day.String()})
}

// requestZone is the zone resolved for the request; new accounts are pinned to it.
func requestZone(r *http.Request) string {
	if name := middleware.ZoneFromContext(r.Context()).String(); name != "Local" {
		return name
	}
	return ""
}
