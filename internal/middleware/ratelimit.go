package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ravelon/internal/i18n"
)

// RateKey names the caller a request is counted against: the signed-in
// account, else the device cookie, else the client address.
func RateKey(r *http.Request) string {
	ctx := r.Context()
	if id := UserIDFromContext(ctx); id != "" {
		return "acct:" + id
	}
	if id := DeviceIDFromContext(ctx); id != "" {
		return "dev:" + id
	}
	return "ip:" + ClientIP(r)
}

// Limiter counts requests per caller in fixed windows held in memory. It is
// only correct for a single replica; RedisRateLimit covers the rest.
type Limiter struct {
	Limit int
	Per   time.Duration
	Key   func(*http.Request) string
	Now   func() time.Time

	mu      sync.Mutex
	windows map[string]window
	swept   time.Time
}

type window struct {
	count int
	ends  time.Time
}

// RateLimit returns an in-memory limiter keyed by RateKey.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := &Limiter{Limit: limit, Per: per}
	return l.Handler
}

// Allow counts one request for key and reports how many remain in the
// window and when it ends.
func (l *Limiter) Allow(key string) (ok bool, remaining int, ends time.Time) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.windows == nil {
		l.windows = make(map[string]window)
	}
	// Expired windows are dropped at most once per period.
	if now.Sub(l.swept) >= l.Per {
		for k, w := range l.windows {
			if !now.Before(w.ends) {
				delete(l.windows, k)
			}
		}
		l.swept = now
	}

	w, found := l.windows[key]
	if !found || !now.Before(w.ends) {
		w = window{ends: now.Add(l.Per)}
	}
	if w.count >= l.Limit {
		return false, 0, w.ends
	}
	w.count++
	l.windows[key] = w
	return true, l.Limit - w.count, w.ends
}

// Handler wraps next with the limiter.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := RateKey
		if l.Key != nil {
			key = l.Key
		}
		ok, remaining, ends := l.Allow(key(r))
		setLimitHeaders(w, l.Limit, remaining)
		if !ok {
			tooMany(w, r, ends.Sub(l.now()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// RedisRateLimit is the fixed-window limiter shared by every replica. Redis
// errors let the request through.
func RedisRateLimit(rdb redis.Cmdable, limit int, per time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	if per < time.Second {
		per = time.Second
	}
	secs := int64(per / time.Second)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now().Unix()
			slot := now / secs
			key := "ravelon:rl:" + RateKey(r) + ":" + strconv.FormatInt(slot, 10)

			ctx := r.Context()
			pipe := rdb.TxPipeline()
			incr := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, per)
			if _, err := pipe.Exec(ctx); err != nil {
				logger.Warn().Err(err).Str("request_id", RequestIDFromContext(ctx)).Msg("rate limit store unavailable")
				next.ServeHTTP(w, r)
				return
			}

			count := int(incr.Val())
			setLimitHeaders(w, limit, limit-count)
			if count > limit {
				tooMany(w, r, time.Duration((slot+1)*secs-now)*time.Second)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setLimitHeaders(w http.ResponseWriter, limit, remaining int) {
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
}

func tooMany(w http.ResponseWriter, r *http.Request, retry time.Duration) {
	secs := int(retry.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, r, http.StatusTooManyRequests, i18n.CodeRateLimited)
}
