package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DeviceCookie carries the guest device identifier between requests.
	DeviceCookie = "ravelon_device"
	// HeaderDeviceID lets non-browser clients send the device id directly.
	HeaderDeviceID = "X-Device-ID"
)

type deviceKey struct{}

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// Device makes sure every request carries a device id. It reads X-Device-ID,
// then the device cookie, and mints a new one for first-time guests.
func Device(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderDeviceID))
			if !deviceIDPattern.MatchString(id) {
				id = ""
				if c, err := r.Cookie(DeviceCookie); err == nil && deviceIDPattern.MatchString(c.Value) {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     DeviceCookie,
					Value:    id,
					Path:     "/",
					Expires:  time.Now().Add(365 * 24 * time.Hour),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(HeaderDeviceID, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), deviceKey{}, id)))
		})
	}
}

func DeviceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(deviceKey{}).(string); ok {
		return v
	}
	return ""
}
