package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ravelon/internal/sqlinline"
)

// fakeTokens answers the integration_tokens queries from a map.
type fakeTokens struct {
	tokens map[string]string
	fail   error
	reads  int
	writes []writeCall
}

type writeCall struct {
	provider string
	token    string
	props    map[string]any
}

func (f *fakeTokens) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if f.fail != nil {
		return pgconn.CommandTag{}, f.fail
	}
	if query != sqlinline.QUpsertIntegrationToken {
		return pgconn.CommandTag{}, errors.New("unexpected statement")
	}
	call := writeCall{provider: args[0].(string), token: args[1].(string)}
	if err := json.Unmarshal(args[2].([]byte), &call.props); err != nil {
		return pgconn.CommandTag{}, err
	}
	f.writes = append(f.writes, call)
	if f.tokens == nil {
		f.tokens = map[string]string{}
	}
	f.tokens[call.provider] = call.token
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTokens) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.reads++
	if f.fail != nil {
		return tokenRow{err: f.fail}
	}
	tok, ok := f.tokens[args[0].(string)]
	if !ok {
		return tokenRow{err: pgx.ErrNoRows}
	}
	return tokenRow{token: tok}
}

func (f *fakeTokens) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeTokens: Query unsupported")
}

type tokenRow struct {
	token string
	err   error
}

func (r tokenRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.token
	return nil
}

func TestGeminiKeyResolution(t *testing.T) {
	cases := []struct {
		name     string
		stored   map[string]string
		fallback string
		want     string
	}{
		{"stored key trimmed", map[string]string{ProviderGemini: " abc123 "}, "env", "abc123"},
		{"nothing stored uses env", nil, " env-key ", "env-key"},
		{"blank stored uses env", map[string]string{ProviderGemini: "  "}, "env-key", "env-key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewStore(&fakeTokens{tokens: tc.stored})
			got, err := store.ResolveGeminiKey(context.Background(), tc.fallback)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	var none *Store
	got, err := none.ResolveGeminiKey(context.Background(), "env")
	require.NoError(t, err)
	assert.Equal(t, "env", got)
}

func TestReadErrorsSurface(t *testing.T) {
	store := NewStore(&fakeTokens{fail: errors.New("connection reset")})
	_, err := store.GeminiAPIKey(context.Background())
	assert.EqualError(t, err, "connection reset")
	_, err = store.ResolveGeminiKey(context.Background(), "env")
	assert.Error(t, err)
}

func TestRotateGeminiKey(t *testing.T) {
	db := &fakeTokens{}
	store := NewStore(db)
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	store.now = func() time.Time { return at }

	require.ErrorIs(t, store.SetGeminiAPIKey(context.Background(), " "), ErrEmptyKey)
	require.NoError(t, store.SetGeminiAPIKey(context.Background(), " secret "))

	require.Len(t, db.writes, 1)
	assert.Equal(t, ProviderGemini, db.writes[0].provider)
	assert.Equal(t, "secret", db.writes[0].token)
	assert.Equal(t, "2026-02-03T04:05:06Z", db.writes[0].props["rotated_at"])

	// The write primes the cache.
	key, err := store.GeminiAPIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", key)
	assert.Zero(t, db.reads)
}

func TestTokensCachedForTTL(t *testing.T) {
	db := &fakeTokens{tokens: map[string]string{ProviderGemini: "abc"}}
	store := NewStore(db)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := store.GeminiAPIKey(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, db.reads)

	now = now.Add(defaultCacheTTL + time.Second)
	_, _ = store.GeminiAPIKey(context.Background())
	assert.Equal(t, 2, db.reads)

	store.WithCacheTTL(0)
	_, _ = store.GeminiAPIKey(context.Background())
	_, _ = store.GeminiAPIKey(context.Background())
	assert.Equal(t, 4, db.reads)
}
