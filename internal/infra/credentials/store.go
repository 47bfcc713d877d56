// Package credentials keeps third-party API keys in the integration_tokens
// table so operators can rotate them without a redeploy.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"ravelon/internal/infra"
	"ravelon/internal/sqlinline"
)

const (
	ProviderGemini = "gemini"

	defaultCacheTTL = time.Minute
)

// ErrEmptyKey is returned when a blank key is stored.
var ErrEmptyKey = errors.New("credentials: api key is required")

type cached struct {
	token   string
	fetched time.Time
}

// Store reads and writes provider tokens. Reads are cached for a short TTL.
type Store struct {
	sql infra.SQLExecutor
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, ttl: defaultCacheTTL, now: time.Now, cache: map[string]cached{}}
}

// WithCacheTTL overrides how long a token is served from memory. Zero disables caching.
func (s *Store) WithCacheTTL(ttl time.Duration) *Store {
	s.ttl = ttl
	return s
}

func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGemini)
}

// ResolveGeminiKey prefers the stored key and falls back to the configured one.
func (s *Store) ResolveGeminiKey(ctx context.Context, fallback string) (string, error) {
	if s == nil || s.sql == nil {
		return strings.TrimSpace(fallback), nil
	}
	key, err := s.GeminiAPIKey(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		return strings.TrimSpace(fallback), nil
	}
	return key, nil
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	if tok, ok := s.cachedToken(provider); ok {
		return tok, nil
	}
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if !infra.IsNoRows(err) {
			return "", err
		}
		token = ""
	}
	token = strings.TrimSpace(token)
	s.remember(provider, token)
	return token, nil
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	return s.upsert(ctx, ProviderGemini, key, map[string]any{"rotated_at": s.now().UTC().Format(time.RFC3339)})
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw); err != nil {
		return err
	}
	s.remember(provider, token)
	return nil
}

func (s *Store) cachedToken(provider string) (string, bool) {
	if s.ttl <= 0 {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cache[provider]
	if !ok || s.now().Sub(c.fetched) > s.ttl {
		return "", false
	}
	return c.token, true
}

func (s *Store) remember(provider, token string) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.cache[provider] = cached{token: token, fetched: s.now()}
	s.mu.Unlock()
}
