package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDevice(t *testing.T) {
	var seen string
	h := Device(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = DeviceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Device-ID", "device-abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "device-abc-123" {
		t.Fatalf("header device = %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookie, Value: "cookie-device-1"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "cookie-device-1" {
		t.Fatalf("cookie device = %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Device-ID", "bad id!")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen == "" || seen == "bad id!" {
		t.Fatalf("expected minted device, got %q", seen)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != seen {
		t.Fatalf("expected device cookie, got %#v", cookies)
	}
}
