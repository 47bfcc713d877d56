package handlers

import (
	"net/http"
	"strings"

	"ravelon/internal/i18n"
)

type completeRequest struct {
	Token string `json:"token"`
}

// GateStatus reports whether the caller has a gate showing.
func (a *App) GateStatus(w http.ResponseWriter, r *http.Request) {
	p, err := a.principal(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	state, ticket := a.Orchestrator.GateStatus(p)
	body := map[string]any{
		"state":    state,
		"busy":     a.Orchestrator.Busy(p),
		"ad_gated": a.Orchestrator.Gated(p),
	}
	if ticket != nil {
		body["gate"] = a.toTicketDTO(ticket)
	}
	a.json(w, http.StatusOK, body)
}

// GateComplete finishes the showing gate and runs the held action.
func (a *App) GateComplete(w http.ResponseWriter, r *http.Request) {
	p, err := a.principal(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req completeRequest
	if err := a.decode(r, &req); err != nil || strings.TrimSpace(req.Token) == "" {
		a.error(w, r, http.StatusBadRequest, i18n.CodeInvalidRequest)
		return
	}
	out, err := a.Orchestrator.CompleteGate(r.Context(), p, strings.TrimSpace(req.Token))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toOutcomeDTO(out))
}

// GateCancel drops the showing gate; nothing is charged.
func (a *App) GateCancel(w http.ResponseWriter, r *http.Request) {
	p, err := a.principal(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		a.error(w, r, http.StatusBadRequest, i18n.CodeInvalidRequest)
		return
	}
	if err := a.Orchestrator.CancelGate(p, token); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WatchAd shows the reward gate. Completing it grants the ad reward.
func (a *App) WatchAd(w http.ResponseWriter, r *http.Request) {
	p, err := a.principal(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Orchestrator.WatchAd(r.Context(), p)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeResult(w, res)
}
