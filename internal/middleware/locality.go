package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"ravelon/internal/clock"
	"ravelon/internal/i18n"
)

type localeContextKey struct{}
type countryContextKey struct{}
type zoneContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
	ZoneKey    = zoneContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// ZoneLookup resolves an IANA time zone name for an IP address.
type ZoneLookup func(ip string) (string, error)

// LocalityOptions configures Locality.
type LocalityOptions struct {
	DefaultZone *time.Location
	Country     CountryLookup
	Zone        ZoneLookup
}

// Locality stores the request's language, country and time zone in the
// context. The zone decides which calendar day a guest's usage counts against.
func Locality(opts LocalityOptions) func(http.Handler) http.Handler {
	if opts.DefaultZone == nil {
		opts.DefaultZone = time.UTC
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LocaleKey, detectLocale(r))
			if country := ResolveCountry(r, opts.Country); country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			ctx = context.WithValue(ctx, ZoneKey, ResolveZone(r, opts.Zone, opts.DefaultZone))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request) language.Tag {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return i18n.Match(v)
	}
	return i18n.Match(r.Header.Get("Accept-Language"))
}

// HeaderTimezone names the client's IANA zone.
const HeaderTimezone = "X-Timezone"

// ResolveZone picks the X-Timezone header when it names a known zone, then
// the IP lookup, then fallback.
func ResolveZone(r *http.Request, lookup ZoneLookup, fallback *time.Location) *time.Location {
	if name := strings.TrimSpace(r.Header.Get(HeaderTimezone)); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if name, err := lookup(ip); err == nil && name != "" {
				return clock.LoadLocation(name)
			}
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// ClientIP returns the first parseable X-Forwarded-For hop, else the host of
// RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(hop); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func LocaleFromContext(ctx context.Context) language.Tag {
	if v, ok := ctx.Value(LocaleKey).(language.Tag); ok {
		return v
	}
	return language.English
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ZoneFromContext returns the request's zone, UTC when unset.
func ZoneFromContext(ctx context.Context) *time.Location {
	if v, ok := ctx.Value(ZoneKey).(*time.Location); ok && v != nil {
		return v
	}
	return time.UTC
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

func localeRegion(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" {
			continue
		}
		if idx := strings.IndexAny(token, "-_"); idx > 0 && idx < len(token)-1 {
			return strings.ToUpper(token[idx+1:])
		}
	}
	return ""
}
