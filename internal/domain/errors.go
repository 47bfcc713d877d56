package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnsupportedPlan    = errors.New("unsupported plan")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrGuestLimitReached  = errors.New("guest daily limit reached")
	ErrRewardLimitReached = errors.New("daily ad reward limit reached")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrGateBusy           = errors.New("an action is already pending")
	ErrGateNotReady       = errors.New("gate countdown has not finished")
	ErrGateIdle           = errors.New("no pending action")
	ErrAccountRequired    = errors.New("account required")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrUnknownPrincipal   = errors.New("unknown principal")
	ErrSamePlan           = errors.New("already subscribed to plan")

	ErrExternalActionFailed = errors.New("external action failed")
)

// ExternalActionError carries the cause of a failed external action. It
// matches ErrExternalActionFailed under errors.Is.
type ExternalActionError struct {
	Action ActionKind
	Err    error
}

func (e *ExternalActionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Action, ErrExternalActionFailed)
	}
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *ExternalActionError) Unwrap() error { return e.Err }

func (e *ExternalActionError) Is(target error) bool {
	return target == ErrExternalActionFailed
}
