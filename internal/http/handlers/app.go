package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ravelon/internal/accounts"
	"ravelon/internal/admin"
	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/infra"
	"ravelon/internal/infra/google"
	"ravelon/internal/ledger"
	"ravelon/internal/middleware"
	"ravelon/internal/orchestrator"
	"ravelon/internal/providers/image"
	"ravelon/internal/storage"
)

// App carries the dependencies shared by every handler.
type App struct {
	Logger         *infra.Logger
	Clock          clock.Clock
	JWTSecret      string
	JWTTTL         time.Duration
	MaxUploadBytes int64

	Ledger       *ledger.Ledger
	Accounts     *accounts.Service
	Orchestrator *orchestrator.Orchestrator
	Admin        *admin.Controls
	Principals   domain.PrincipalStore
	Records      domain.RecordStore
	Analytics    domain.AnalyticsRepository
	Enhancer     image.Enhancer
	Files        *storage.FileStore
	Google       *google.Verifier

	// Ready reports whether the stores answer; nil skips the check.
	Ready func(context.Context) error
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) logger() *zerolog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	l := zerolog.New(io.Discard)
	return &l
}

func (a *App) now() time.Time {
	if a.Clock != nil {
		return a.Clock.Now()
	}
	return time.Now()
}

func (a *App) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// account loads the authenticated account. A token whose account was
// removed is treated as unauthenticated.
func (a *App) account(ctx context.Context) (*domain.Account, error) {
	id := middleware.UserIDFromContext(ctx)
	if id == "" {
		return nil, domain.ErrUnauthorized
	}
	acct, err := a.Principals.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// principal resolves who is acting: the token's account when present,
// otherwise the guest device.
func (a *App) principal(r *http.Request) (domain.Principal, error) {
	ctx := r.Context()
	p := domain.Principal{
		DeviceID: middleware.DeviceIDFromContext(ctx),
		Location: middleware.ZoneFromContext(ctx),
	}
	if middleware.UserIDFromContext(ctx) == "" {
		return p, nil
	}
	acct, err := a.account(ctx)
	if err != nil {
		return p, err
	}
	p.Account = acct
	return p, nil
}

// owner is the storage namespace of a principal.
func owner(p domain.Principal) string {
	if p.Account != nil {
		return p.Account.ID
	}
	return "guest-" + p.DeviceID
}
