package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	stdimage "image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ravelon/internal/accounts"
	"ravelon/internal/adapter/memory"
	"ravelon/internal/admin"
	"ravelon/internal/clock"
	"ravelon/internal/http/handlers"
	"ravelon/internal/ledger"
	"ravelon/internal/orchestrator"
	"ravelon/internal/plans"
	"ravelon/internal/providers/image"
	"ravelon/internal/storage"
)

const secret = "test-secret"

var start = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type stubEnhancer struct {
	err   error
	calls int
}

func (s *stubEnhancer) Enhance(_ context.Context, src image.Source) (*image.Enhanced, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &image.Enhanced{Data: append([]byte("enhanced:"), src.Data[:4]...), MIME: "image/png", Provider: "stub"}, nil
}

type env struct {
	app      *handlers.App
	handler  http.Handler
	clock    *clock.Manual
	enhancer *stubEnhancer
	records  *memory.RecordStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{clock: clock.NewManual(start), enhancer: &stubEnhancer{}, records: memory.NewRecordStore()}
	principals := memory.NewPrincipalStore()
	l, err := ledger.New(ledger.Options{
		Catalog:    plans.Default(),
		Principals: principals,
		Guests:     memory.NewGuestUsageStore(),
		Clock:      e.clock,
	})
	require.NoError(t, err)
	orch, err := orchestrator.New(orchestrator.Options{Ledger: l, Principals: principals, Records: e.records, Clock: e.clock})
	require.NoError(t, err)
	acct, err := accounts.New(accounts.Options{Ledger: l, Principals: principals, Clock: e.clock, AdminEmails: []string{"admin@ravelon.com"}})
	require.NoError(t, err)
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	app := &handlers.App{
		Clock:          e.clock,
		JWTSecret:      secret,
		JWTTTL:         time.Hour,
		MaxUploadBytes: 1 << 10,
		Ledger:         l,
		Accounts:       acct,
		Orchestrator:   orch,
		Admin:          admin.NewControls(principals, e.records, l, e.clock, nil, nil),
		Principals:     principals,
		Records:        e.records,
		Analytics:      memory.NewAnalyticsRepository(),
		Enhancer:       e.enhancer,
		Files:          files,
	}
	e.app = app
	e.handler = NewRouter(app, Options{Logger: zerolog.Nop(), JWTSecret: secret, CORSOrigins: []string{"*"}})
	return e
}

type call struct {
	method, path string
	body         any
	token        string
	device       string
	raw          []byte
	contentType  string
}

func (e *env) do(t *testing.T, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var body []byte
	switch {
	case c.raw != nil:
		body = c.raw
	case c.body != nil:
		var err error
		body, err = json.Marshal(c.body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(c.method, c.path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.device != "" {
		req.Header.Set("X-Device-ID", c.device)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	var out map[string]any
	if bytes.HasPrefix(bytes.TrimSpace(rr.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	}
	return rr, out
}

func (e *env) login(t *testing.T, email string) (string, map[string]any) {
	t.Helper()
	rr, body := e.do(t, call{method: http.MethodPost, path: "/v1/auth/login", body: map[string]string{"email": email}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return body["token"].(string), body["user"].(map[string]any)
}

func photo(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, stdimage.NewGray(stdimage.Rect(0, 0, 2, 2))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// enhanceThroughGate runs one enhancement for a gated principal.
func (e *env) enhanceThroughGate(t *testing.T, token, device string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr, body := e.do(t, call{method: http.MethodPost, path: "/v1/actions/enhance", token: token, device: device, body: map[string]string{"image": photo(t)}})
	if rr.Code != http.StatusAccepted {
		return rr, body
	}
	ticket := body["gate"].(map[string]any)["token"].(string)
	e.clock.Advance(orchestrator.DefaultGateDuration)
	return e.do(t, call{method: http.MethodPost, path: "/v1/gate/complete", token: token, device: device, body: map[string]string{"token": ticket}})
}

func errorCode(body map[string]any) string {
	if e, ok := body["error"].(map[string]any); ok {
		return e["code"].(string)
	}
	return ""
}

func TestHealthAndPlans(t *testing.T) {
	e := newEnv(t)
	rr, body := e.do(t, call{method: http.MethodGet, path: "/v1/healthz"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", body["status"])

	rr, body = e.do(t, call{method: http.MethodGet, path: "/v1/plans"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, body["items"], 3)

	rr, _ = e.do(t, call{method: http.MethodGet, path: "/v1/openapi.json"})
	require.Equal(t, http.StatusOK, rr.Code)
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotModified, rec.Code)
}

func TestHealthReportsUnreadyStores(t *testing.T) {
	e := newEnv(t)
	e.app.Ready = func(context.Context) error { return errors.New("connection refused") }

	rr, body := e.do(t, call{method: http.MethodGet, path: "/v1/healthz"})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "degraded", body["status"])
	require.Equal(t, plans.Default().Version(), body["plans_version"])
}

func TestLoginAndProfile(t *testing.T) {
	e := newEnv(t)
	token, user := e.login(t, "Ayu@Example.com")
	require.Equal(t, "ayu@example.com", user["email"])
	require.EqualValues(t, 3, user["credits"])
	require.Equal(t, true, user["ad_gated"])

	rr, body := e.do(t, call{method: http.MethodGet, path: "/v1/me", token: token})
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 3, body["credits"])

	rr, body = e.do(t, call{method: http.MethodGet, path: "/v1/me"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthorized", errorCode(body))

	rr, _ = e.do(t, call{method: http.MethodPost, path: "/v1/auth/login", body: map[string]string{"email": "not-an-email"}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFreeAccountEnhancementGoesThroughGate(t *testing.T) {
	e := newEnv(t)
	token, _ := e.login(t, "ayu@example.com")

	rr, body := e.do(t, call{method: http.MethodPost, path: "/v1/actions/enhance", token: token, body: map[string]string{"image": photo(t)}})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	ticket := body["gate"].(map[string]any)["token"].(string)

	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/gate/complete", token: token, body: map[string]string{"token": ticket}})
	require.Equal(t, http.StatusTooEarly, rr.Code)
	require.Equal(t, "gate_not_ready", errorCode(body))
	require.Zero(t, e.enhancer.calls)

	e.clock.Advance(orchestrator.DefaultGateDuration)
	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/gate/complete", token: token, body: map[string]string{"token": ticket}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.EqualValues(t, 2, body["balance"])
	require.NotEmpty(t, body["record_id"])
	require.Contains(t, body["image"], "data:image/png;base64,")

	rr, body = e.do(t, call{method: http.MethodGet, path: "/v1/me/records", token: token})
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 1, body["total"])

	rr, _ = e.do(t, call{method: http.MethodGet, path: "/v1/me/records/export", token: token})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/zip", rr.Header().Get("Content-Type"))
}

func TestGuestDailyLimit(t *testing.T) {
	e := newEnv(t)
	const device = "device-0001"
	for i := 0; i < plans.GuestDailyLimit; i++ {
		rr, body := e.enhanceThroughGate(t, "", device)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		require.EqualValues(t, plans.GuestDailyLimit-i-1, body["balance"])
		require.Nil(t, body["record_id"])
	}
	rr, body := e.do(t, call{method: http.MethodPost, path: "/v1/actions/enhance", device: device, body: map[string]string{"image": photo(t)}})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "guest_limit_reached", errorCode(body))

	rr, body = e.do(t, call{method: http.MethodGet, path: "/v1/credits", device: device})
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 0, body["balance"])
	require.Equal(t, true, body["guest"])

	e.clock.Advance(24 * time.Hour)
	rr, body = e.do(t, call{method: http.MethodGet, path: "/v1/credits", device: device})
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, plans.GuestDailyLimit, body["balance"])
}

func TestPremiumSkipsGate(t *testing.T) {
	e := newEnv(t)
	token, _ := e.login(t, "ayu@example.com")

	rr, body := e.do(t, call{method: http.MethodPost, path: "/v1/plans/premium_monthly/subscribe", token: token})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	token = body["token"].(string)
	require.EqualValues(t, plans.UnlimitedAllotment, body["user"].(map[string]any)["credits"])

	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/plans/PREMIUM_MONTHLY/subscribe", token: token})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "same_plan", errorCode(body))

	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/plans/GOLD/subscribe", token: token})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "unsupported_plan", errorCode(body))

	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/actions/enhance", token: token, body: map[string]string{"image": photo(t)}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.EqualValues(t, plans.UnlimitedAllotment-1, body["balance"])
}

func TestFailedEnhancementCostsNothing(t *testing.T) {
	e := newEnv(t)
	token, _ := e.login(t, "ayu@example.com")
	e.enhancer.err = errors.New("model unavailable")

	rr, body := e.enhanceThroughGate(t, token, "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Equal(t, "external_action_failed", errorCode(body))

	_, body = e.do(t, call{method: http.MethodGet, path: "/v1/credits", token: token})
	require.EqualValues(t, 3, body["balance"])
}

func TestGateBusyAndCancel(t *testing.T) {
	e := newEnv(t)
	const device = "device-0002"
	rr, body := e.do(t, call{method: http.MethodPost, path: "/v1/actions/enhance", device: device, body: map[string]string{"image": photo(t)}})
	require.Equal(t, http.StatusAccepted, rr.Code)
	ticket := body["gate"].(map[string]any)["token"].(string)

	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/actions/enhance", device: device, body: map[string]string{"image": photo(t)}})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "gate_busy", errorCode(body))

	rr, body = e.do(t, call{method: http.MethodGet, path: "/v1/gate", device: device})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "showing", body["state"])

	rr, _ = e.do(t, call{method: http.MethodDelete, path: "/v1/gate?token=" + ticket, device: device})
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/gate/complete", device: device, body: map[string]string{"token": ticket}})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "gate_idle", errorCode(body))
	require.Zero(t, e.enhancer.calls)
}

func TestRewardAd(t *testing.T) {
	e := newEnv(t)
	token, _ := e.login(t, "ayu@example.com")

	rr, body := e.do(t, call{method: http.MethodPost, path: "/v1/rewards/ad", token: token})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	ticket := body["gate"].(map[string]any)["token"].(string)

	e.clock.Advance(orchestrator.DefaultRewardDelay)
	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/gate/complete", token: token, body: map[string]string{"token": ticket}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.EqualValues(t, 4, body["balance"])

	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/rewards/ad", device: "device-0003"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "account_required", errorCode(body))
}

func TestUploadValidation(t *testing.T) {
	e := newEnv(t)
	token, _ := e.login(t, "ayu@example.com")

	rr, body := e.do(t, call{method: http.MethodPost, path: "/v1/actions/enhance", token: token, body: map[string]string{"image": base64.StdEncoding.EncodeToString([]byte("plain text, not a photo"))}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_request", errorCode(body))

	big := bytes.Repeat([]byte{0x89}, 4<<10)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "big.png")
	require.NoError(t, err)
	_, _ = fw.Write(big)
	require.NoError(t, mw.Close())
	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/actions/enhance", token: token, raw: buf.Bytes(), contentType: mw.FormDataContentType()})
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
	require.Equal(t, "payload_too_large", errorCode(body))
	require.Zero(t, e.enhancer.calls)
}

func TestAdminSurface(t *testing.T) {
	e := newEnv(t)
	adminToken, adminUser := e.login(t, "admin@ravelon.com")
	require.Equal(t, "ADMIN", adminUser["role"])
	userToken, user := e.login(t, "ayu@example.com")
	userID := user["id"].(string)

	rr, body := e.do(t, call{method: http.MethodGet, path: "/v1/admin/principals?q=AYU", token: adminToken})
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 1, body["total"])

	rr, _ = e.do(t, call{method: http.MethodGet, path: "/v1/admin/principals", token: userToken})
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr, body = e.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/v1/admin/principals/%s/credits", userID), token: adminToken, body: map[string]int{"amount": 5}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.EqualValues(t, 8, body["credits"])

	rr, body = e.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/v1/admin/principals/%s/credits", userID), token: adminToken, body: map[string]int{"amount": 0}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_amount", errorCode(body))

	rr, body = e.do(t, call{method: http.MethodPost, path: "/v1/admin/principals/missing/credits", token: adminToken, body: map[string]int{"amount": 1}})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr, body = e.do(t, call{method: http.MethodDelete, path: "/v1/admin/principals/" + adminUser["id"].(string), token: adminToken})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, false, body["removed"])

	rr, body = e.do(t, call{method: http.MethodDelete, path: "/v1/admin/principals/" + userID, token: adminToken})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, true, body["removed"])

	rr, _ = e.do(t, call{method: http.MethodGet, path: "/v1/me", token: userToken})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, body = e.do(t, call{method: http.MethodGet, path: "/v1/admin/stats", token: adminToken})
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 1, body["total_principals"])
}
