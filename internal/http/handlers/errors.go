package handlers

import (
	"context"
	"errors"
	"net/http"

	"ravelon/internal/accounts"
	"ravelon/internal/domain"
	"ravelon/internal/i18n"
	"ravelon/internal/infra/google"
	"ravelon/internal/middleware"
	"ravelon/internal/storage"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInsufficientCredit, http.StatusPaymentRequired, i18n.CodeInsufficientCredit},
	{domain.ErrGuestLimitReached, http.StatusTooManyRequests, i18n.CodeGuestLimitReached},
	{domain.ErrRewardLimitReached, http.StatusTooManyRequests, i18n.CodeRewardLimitReached},
	{domain.ErrExternalActionFailed, http.StatusBadGateway, i18n.CodeExternalActionFailed},
	{domain.ErrPermissionDenied, http.StatusForbidden, i18n.CodePermissionDenied},
	{domain.ErrGateBusy, http.StatusConflict, i18n.CodeGateBusy},
	{domain.ErrGateNotReady, http.StatusTooEarly, i18n.CodeGateNotReady},
	{domain.ErrGateIdle, http.StatusConflict, i18n.CodeGateIdle},
	{domain.ErrAccountRequired, http.StatusUnauthorized, i18n.CodeAccountRequired},
	{domain.ErrUnauthorized, http.StatusUnauthorized, i18n.CodeUnauthorized},
	{domain.ErrInvalidAmount, http.StatusBadRequest, i18n.CodeInvalidAmount},
	{domain.ErrUnsupportedPlan, http.StatusBadRequest, i18n.CodeUnsupportedPlan},
	{domain.ErrSamePlan, http.StatusConflict, i18n.CodeSamePlan},
	{domain.ErrUnknownPrincipal, http.StatusNotFound, i18n.CodeNotFound},
	{domain.ErrNotFound, http.StatusNotFound, i18n.CodeNotFound},
	{storage.ErrNotFound, http.StatusNotFound, i18n.CodeNotFound},
	{google.ErrNotConfigured, http.StatusNotFound, i18n.CodeNotFound},
	{accounts.ErrInvalidEmail, http.StatusBadRequest, i18n.CodeInvalidRequest},
}

// statusFor maps an engine error to its HTTP status and message code.
func statusFor(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, i18n.CodePayloadTooLarge
	}
	return http.StatusInternalServerError, i18n.CodeInternal
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code string) {
	a.json(w, status, errorBody{Error: errorDetail{
		Code:    code,
		Message: i18n.Message(middleware.LocaleFromContext(r.Context()), code),
	}})
}

// fail writes err using statusFor. Unmapped errors are logged.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	switch {
	case errors.Is(err, context.Canceled):
		a.logger().Debug().Err(err).Str("path", r.URL.Path).Msg("request cancelled")
	case status >= http.StatusInternalServerError:
		a.logger().Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	a.error(w, r, status, code)
}
