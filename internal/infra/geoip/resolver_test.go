package geoip

import (
	"errors"
	"testing"
)

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil {
		t.Fatalf("NewResolver error: %v", err)
	}
	if r != nil {
		t.Fatal("expected nil resolver for empty path")
	}
}

func TestNilResolverUnavailable(t *testing.T) {
	var r *Resolver
	if _, err := r.CountryCode("1.1.1.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CountryCode err = %v", err)
	}
	if _, err := r.TimeZone("1.1.1.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("TimeZone err = %v", err)
	}
	if _, err := r.Locate("1.1.1.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Locate err = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close err = %v", err)
	}
}

func TestParseIP(t *testing.T) {
	if _, err := parseIP("not-an-ip"); err == nil {
		t.Fatal("expected error")
	}
	if ip, err := parseIP(" 10.0.0.1 "); err != nil || ip.String() != "10.0.0.1" {
		t.Fatalf("parseIP = %v, %v", ip, err)
	}
}

func TestRoutable(t *testing.T) {
	cases := map[string]bool{
		"8.8.8.8":     true,
		"2001:4860::": true,
		"10.0.0.1":    false,
		"192.168.1.9": false,
		"127.0.0.1":   false,
		"::1":         false,
		"0.0.0.0":     false,
		"169.254.1.1": false,
	}
	for ip, want := range cases {
		parsed, err := parseIP(ip)
		if err != nil {
			t.Fatalf("parseIP(%q): %v", ip, err)
		}
		if got := routable(parsed); got != want {
			t.Fatalf("routable(%s) = %v, want %v", ip, got, want)
		}
	}
}

func TestCacheStartsOverWhenFull(t *testing.T) {
	r := &Resolver{limit: 2}
	r.remember("a", Location{Country: "ZA"})
	r.remember("b", Location{Country: "ID"})
	if loc, ok := r.cached("a"); !ok || loc.Country != "ZA" {
		t.Fatalf("cached(a) = %v, %v", loc, ok)
	}
	r.remember("c", Location{Country: "NL"})
	if _, ok := r.cached("a"); ok {
		t.Fatal("expected cache reset once full")
	}
	if loc, ok := r.cached("c"); !ok || loc.Country != "NL" {
		t.Fatalf("cached(c) = %v, %v", loc, ok)
	}
}
