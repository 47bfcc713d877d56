// Package redisguest keeps guest usage counters in Redis so they are shared
// by every API replica and expire on their own.
package redisguest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
)

// DefaultTTL keeps a device's usage a little past the longest calendar day
// in any zone.
const DefaultTTL = 50 * time.Hour

// Store implements domain.GuestUsageStore on a Redis hash per device.
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// New builds a Store. An empty prefix defaults to "ravelon:guest:".
func New(client redis.Cmdable, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "ravelon:guest:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(deviceID string) string {
	return s.prefix + deviceID
}

func (s *Store) Get(ctx context.Context, deviceID string) (*domain.GuestUsage, error) {
	vals, err := s.client.HGetAll(ctx, s.key(deviceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis guest get: %w", err)
	}
	day, ok := vals["day"]
	if !ok {
		return nil, domain.ErrNotFound
	}
	count, err := strconv.Atoi(vals["count"])
	if err != nil {
		return nil, fmt.Errorf("redis guest count: %w", err)
	}
	return &domain.GuestUsage{DeviceID: deviceID, Day: clock.Day(day), Count: count}, nil
}

func (s *Store) Put(ctx context.Context, u domain.GuestUsage) error {
	if u.DeviceID == "" {
		return errors.New("redis guest put: empty device id")
	}
	key := s.key(u.DeviceID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "day", string(u.Day), "count", u.Count)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis guest put: %w", err)
	}
	return nil
}

var _ domain.GuestUsageStore = (*Store)(nil)
