package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
	"ravelon/internal/events"
	"ravelon/internal/infra"
)

func testConfig(driver string) *infra.Config {
	return &infra.Config{
		StoreDriver:  driver,
		GateDuration: 5 * time.Second,
		RewardDelay:  3 * time.Second,
		AdminEmails:  []string{"admin@ravelon.com"},
	}
}

func TestMemoryStoresAndServices(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(infra.StoreMemory)
	stores, err := OpenStores(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer stores.Close()
	require.Nil(t, stores.Credentials)
	require.NoError(t, stores.Ping(ctx))

	pub, closePub := Publisher(cfg, stores, zerolog.Nop())
	defer closePub()
	_, ok := pub.(events.Inline)
	require.True(t, ok, "no broker configured should count in-process")

	c := clock.NewManual(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	svc, err := NewServices(cfg, stores, c, pub, nil)
	require.NoError(t, err)

	p, err := svc.Accounts.Login(ctx, "admin@ravelon.com", "", "")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, p.Account.Role)

	sum, err := stores.Analytics.GetSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Signups)
}

func TestSQLiteStores(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(infra.StoreSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "ravelon.db")
	stores, err := OpenStores(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer stores.Close()
	require.NoError(t, stores.Ping(ctx))
}

func TestUnknownDriver(t *testing.T) {
	_, err := OpenStores(context.Background(), testConfig("mongo"), zerolog.Nop())
	require.Error(t, err)
}
