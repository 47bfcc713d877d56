package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"ravelon/internal/accounts"
	"ravelon/internal/admin"
	"ravelon/internal/clock"
	"ravelon/internal/events"
	"ravelon/internal/infra"
	"ravelon/internal/ledger"
	"ravelon/internal/orchestrator"
	"ravelon/internal/plans"
)

// Services are the engine components built on top of Stores.
type Services struct {
	Ledger       *ledger.Ledger
	Orchestrator *orchestrator.Orchestrator
	Accounts     *accounts.Service
	Admin        *admin.Controls
}

// NewServices wires the engine. publisher may be nil.
func NewServices(cfg *infra.Config, stores *Stores, c clock.Clock, publisher events.Publisher, logger *zerolog.Logger) (*Services, error) {
	l, err := ledger.New(ledger.Options{
		Catalog:    plans.Default(),
		Principals: stores.Principals,
		Guests:     stores.Guests,
		Clock:      c,
		Publisher:  publisher,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(orchestrator.Options{
		Ledger:       l,
		Principals:   stores.Principals,
		Records:      stores.Records,
		Clock:        c,
		Publisher:    publisher,
		Logger:       logger,
		GateDuration: cfg.GateDuration,
		RewardDelay:  cfg.RewardDelay,
	})
	if err != nil {
		return nil, err
	}
	acct, err := accounts.New(accounts.Options{
		Ledger:      l,
		Principals:  stores.Principals,
		Clock:       c,
		Publisher:   publisher,
		Logger:      logger,
		AdminEmails: cfg.AdminEmails,
	})
	if err != nil {
		return nil, err
	}
	return &Services{
		Ledger:       l,
		Orchestrator: orch,
		Accounts:     acct,
		Admin:        admin.NewControls(stores.Principals, stores.Records, l, c, publisher, logger),
	}, nil
}

// Publisher returns the AMQP publisher when AMQP_URL is set, otherwise an
// in-process publisher that counts straight into the analytics store. The
// returned close func is never nil.
func Publisher(cfg *infra.Config, stores *Stores, logger zerolog.Logger) (events.Publisher, func()) {
	if cfg.AMQPURL == "" {
		return events.Inline(events.CountInto(stores.Analytics)), func() {}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp unavailable, counting analytics in-process")
		return events.Inline(events.CountInto(stores.Analytics)), func() {}
	}
	return pub, func() { _ = pub.Close() }
}

// Ping verifies the stores answer. Memory stores always do.
func (s *Stores) Ping(ctx context.Context) error {
	_, err := s.Principals.ListAll(ctx)
	return err
}
