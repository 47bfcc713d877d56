// Package geoip turns client addresses into the country and time zone hints
// used to pick a guest's calendar day.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when no database is loaded.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// Locator resolves coarse location hints from IP addresses.
type Locator interface {
	CountryCode(ip string) (string, error)
	TimeZone(ip string) (string, error)
}

// Location is what one City lookup yields. Both fields may be empty.
type Location struct {
	Country  string
	TimeZone string
}

const defaultCacheSize = 4096

// Resolver answers lookups from a MaxMind City database and remembers recent
// answers, since the country and zone of one request come from the same record.
type Resolver struct {
	reader *geoip2.Reader

	mu    sync.Mutex
	cache map[string]Location
	limit int
}

// NewResolver opens the database at path. An empty path disables lookups and
// returns a nil resolver without error.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader, cache: make(map[string]Location), limit: defaultCacheSize}, nil
}

// Locate looks ip up once. Private, loopback and unspecified addresses have
// no location and are not looked up.
func (r *Resolver) Locate(ip string) (Location, error) {
	if r == nil || r.reader == nil {
		return Location{}, ErrUnavailable
	}
	parsed, err := parseIP(ip)
	if err != nil {
		return Location{}, err
	}
	if !routable(parsed) {
		return Location{}, nil
	}
	key := parsed.String()
	if loc, ok := r.cached(key); ok {
		return loc, nil
	}
	record, err := r.reader.City(parsed)
	if err != nil {
		return Location{}, fmt.Errorf("geoip: lookup %s: %w", key, err)
	}
	var loc Location
	if record != nil {
		loc = Location{Country: record.Country.IsoCode, TimeZone: record.Location.TimeZone}
	}
	r.remember(key, loc)
	return loc, nil
}

// CountryCode returns the ISO country code for ip.
func (r *Resolver) CountryCode(ip string) (string, error) {
	loc, err := r.Locate(ip)
	return loc.Country, err
}

// TimeZone returns the IANA zone name for ip.
func (r *Resolver) TimeZone(ip string) (string, error) {
	loc, err := r.Locate(ip)
	return loc.TimeZone, err
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

func (r *Resolver) cached(key string) (Location, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.cache[key]
	return loc, ok
}

// remember stores loc, starting over once the cache is full.
func (r *Resolver) remember(key string, loc Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil || len(r.cache) >= r.limit {
		r.cache = make(map[string]Location)
	}
	r.cache[key] = loc
}

func routable(ip net.IP) bool {
	return !(ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast())
}

func parseIP(ip string) (net.IP, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return nil, fmt.Errorf("geoip: invalid ip %q", ip)
	}
	return parsed, nil
}

var _ Locator = (*Resolver)(nil)
