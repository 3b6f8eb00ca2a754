package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"food-admin/internal/repository"
	"food-admin/internal/service"
)

type fakeSender struct {
	mu       sync.Mutex
	lastCode string
	otpErr   error
}

func (f *fakeSender) SendPasswordResetOTP(_ context.Context, _ string, code string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCode = code
	return f.otpErr
}

func (f *fakeSender) SendWelcome(context.Context, string, string) error {
	return nil
}

func (f *fakeSender) code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCode
}

type testEnv struct {
	router *gin.Engine
	repo   *repository.SQLiteAdminRepository
	sender *fakeSender
	jwtSvc *service.JWTService
}

func newTestEnv(t *testing.T, opts ...service.AuthOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := repository.NewSQLiteAdminRepository("")
	if err != nil {
		t.Fatalf("sqlite repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	sender := &fakeSender{}
	base := []service.AuthOption{
		service.WithDispatchBackoff(func() retry.Backoff {
			return retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))
		}),
	}
	logger := zap.NewNop()
	authSvc := service.NewAuthService(logger, repo, service.NewBcryptHasher(bcrypt.MinCost), sender, append(base, opts...)...)
	jwtSvc := service.NewJWTService("secret", 0)
	adminH := NewAdminHandler(logger, authSvc, jwtSvc, CookieConfig{})

	return &testEnv{
		router: NewRouter(logger, adminH, jwtSvc, repo.Ping),
		repo:   repo,
		sender: sender,
		jwtSvc: jwtSvc,
	}
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return resp
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, success bool, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	if resp.Success != success || resp.Message != message {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatalf("expected %s cookie", sessionCookieName)
	return nil
}

var adminBody = gin.H{"name": "admin", "email": "a@x.com", "password": "p1"}

func TestAdminHandler_Register(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/register", adminBody)
	expect(t, rec, http.StatusCreated, true, "Admin registered successfully")

	cookie := sessionCookie(t, rec)
	if !cookie.HttpOnly || cookie.Path != "/" || cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}
	if cookie.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("expected 7 day max age, got %d", cookie.MaxAge)
	}
	if _, err := env.jwtSvc.Verify(context.Background(), cookie.Value); err != nil {
		t.Fatalf("cookie must carry a valid session: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/register", gin.H{"name": "admin2", "email": "b@x.com", "password": "p2"})
	expect(t, rec, http.StatusBadRequest, false, "Admin already exists")
}

func TestAdminHandler_RegisterMissingFields(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []gin.H{
		{"email": "a@x.com", "password": "p1"},
		{"name": "admin", "password": "p1"},
		{"name": "admin", "email": "a@x.com"},
		{"name": " ", "email": "a@x.com", "password": "p1"},
	} {
		rec := env.do(t, http.MethodPost, "/api/admin/register", body)
		expect(t, rec, http.StatusBadRequest, false, "Missing details")
	}
}

func TestAdminHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/admin/register", adminBody)

	rec := env.do(t, http.MethodPost, "/api/admin/login", gin.H{"email": "a@x.com", "password": "p1"})
	expect(t, rec, http.StatusOK, true, "Login successful")
	sessionCookie(t, rec)

	rec = env.do(t, http.MethodPost, "/api/admin/login", gin.H{"email": "a@x.com", "password": "nope"})
	expect(t, rec, http.StatusUnauthorized, false, "Invalid email or password")

	rec = env.do(t, http.MethodPost, "/api/admin/login", gin.H{"email": "other@x.com", "password": "p1"})
	expect(t, rec, http.StatusUnauthorized, false, "Invalid email or password")

	rec = env.do(t, http.MethodPost, "/api/admin/login", gin.H{"email": "a@x.com"})
	expect(t, rec, http.StatusBadRequest, false, "Missing details")
}

func TestAdminHandler_LogoutIdempotent(t *testing.T) {
	env := newTestEnv(t)
	cookie := sessionCookie(t, env.do(t, http.MethodPost, "/api/admin/register", adminBody))

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/admin/logout", nil, cookie)
		expect(t, rec, http.StatusOK, true, "Logged out")
		cleared := sessionCookie(t, rec)
		if cleared.Value != "" || cleared.MaxAge >= 0 {
			t.Fatalf("expected cleared cookie, got %+v", cleared)
		}
	}

	rec := env.do(t, http.MethodPost, "/api/admin/logout", nil)
	expect(t, rec, http.StatusOK, true, "Logged out")

	// El token revocado ya no abre el dashboard.
	rec = env.do(t, http.MethodGet, "/api/admin/dashboard", nil, cookie)
	expect(t, rec, http.StatusUnauthorized, false, "Unauthorized")
}

func TestAuthGateway(t *testing.T) {
	env := newTestEnv(t)
	cookie := sessionCookie(t, env.do(t, http.MethodPost, "/api/admin/register", adminBody))

	rec := env.do(t, http.MethodGet, "/api/admin/dashboard", nil, cookie)
	expect(t, rec, http.StatusOK, true, "You are in the dashboard")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	bearer := httptest.NewRecorder()
	env.router.ServeHTTP(bearer, req)
	if bearer.Code != http.StatusOK {
		t.Fatalf("expected bearer token to be accepted, got %d", bearer.Code)
	}

	other := service.NewJWTService("other-secret", 0)
	foreign, err := other.Issue("a1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for name, cookies := range map[string][]*http.Cookie{
		"absent":       nil,
		"malformed":    {{Name: sessionCookieName, Value: "garbage"}},
		"wrong secret": {{Name: sessionCookieName, Value: foreign.Value}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/admin/dashboard", nil, cookies...)
			expect(t, rec, http.StatusUnauthorized, false, "Unauthorized")
		})
	}
}

func TestAdminHandler_Me(t *testing.T) {
	env := newTestEnv(t)
	cookie := sessionCookie(t, env.do(t, http.MethodPost, "/api/admin/register", adminBody))

	rec := env.do(t, http.MethodGet, "/api/admin/dashboard/me", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Success bool           `json:"success"`
		Admin   map[string]any `json:"admin"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Admin["email"] != "a@x.com" || resp.Admin["role"] != "admin" {
		t.Fatalf("unexpected profile: %+v", resp)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Fatalf("profile must not expose the password digest")
	}
}

func TestAdminHandler_ResetFlow(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/admin/register", adminBody)

	rec := env.do(t, http.MethodPost, "/api/admin/send-reset-otp", gin.H{"email": "nobody@x.com"})
	expect(t, rec, http.StatusNotFound, false, "Admin not found")

	rec = env.do(t, http.MethodPost, "/api/admin/send-reset-otp", gin.H{})
	expect(t, rec, http.StatusBadRequest, false, "Missing details")

	rec = env.do(t, http.MethodPost, "/api/admin/send-reset-otp", gin.H{"email": "a@x.com"})
	expect(t, rec, http.StatusOK, true, "OTP sent to your email")
	code := env.sender.code()

	account, err := env.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !account.HasActiveReset() {
		t.Fatalf("expected active reset")
	}

	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}
	rec = env.do(t, http.MethodPost, "/api/admin/reset-password", gin.H{"email": "a@x.com", "otp": wrong, "newPassword": "p3"})
	expect(t, rec, http.StatusBadRequest, false, "Invalid OTP")

	rec = env.do(t, http.MethodPost, "/api/admin/reset-password", gin.H{"email": "nobody@x.com", "otp": code, "newPassword": "p3"})
	expect(t, rec, http.StatusNotFound, false, "Admin not found")

	rec = env.do(t, http.MethodPost, "/api/admin/reset-password", gin.H{"email": "a@x.com", "otp": code})
	expect(t, rec, http.StatusBadRequest, false, "Missing details")

	rec = env.do(t, http.MethodPost, "/api/admin/reset-password", gin.H{"email": "a@x.com", "otp": code, "newPassword": "p3"})
	expect(t, rec, http.StatusOK, true, "Password has been reset successfully")

	rec = env.do(t, http.MethodPost, "/api/admin/login", gin.H{"email": "a@x.com", "password": "p1"})
	expect(t, rec, http.StatusUnauthorized, false, "Invalid email or password")
	rec = env.do(t, http.MethodPost, "/api/admin/login", gin.H{"email": "a@x.com", "password": "p3"})
	expect(t, rec, http.StatusOK, true, "Login successful")
}

func TestAdminHandler_ResetExpired(t *testing.T) {
	now := time.Now().UTC()
	env := newTestEnv(t, service.WithClock(func() time.Time { return now }))
	env.do(t, http.MethodPost, "/api/admin/register", adminBody)

	rec := env.do(t, http.MethodPost, "/api/admin/send-reset-otp", gin.H{"email": "a@x.com"})
	expect(t, rec, http.StatusOK, true, "OTP sent to your email")

	now = now.Add(16 * time.Minute)
	rec = env.do(t, http.MethodPost, "/api/admin/reset-password", gin.H{"email": "a@x.com", "otp": env.sender.code(), "newPassword": "p3"})
	expect(t, rec, http.StatusBadRequest, false, "OTP expired")
}

func TestAdminHandler_ResetDispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/admin/register", adminBody)
	env.sender.otpErr = errors.New("smtp down")

	rec := env.do(t, http.MethodPost, "/api/admin/send-reset-otp", gin.H{"email": "a@x.com"})
	expect(t, rec, http.StatusInternalServerError, false, "Internal server error")
	if bytes.Contains(rec.Body.Bytes(), []byte("smtp")) {
		t.Fatalf("internal error detail leaked: %s", rec.Body.String())
	}

	account, err := env.repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.HasActiveReset() {
		t.Fatalf("expected otp rolled back after dispatch failure")
	}
}

func TestAdminHandler_ResetRequestsLimited(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/admin/register", adminBody)

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/admin/send-reset-otp", gin.H{"email": "a@x.com"})
		expect(t, rec, http.StatusOK, true, "OTP sent to your email")
	}
	rec := env.do(t, http.MethodPost, "/api/admin/send-reset-otp", gin.H{"email": "a@x.com"})
	expect(t, rec, http.StatusTooManyRequests, false, "Too many requests")
}

func TestWithRateLimit(t *testing.T) {
	env := newTestEnv(t)
	h := WithRateLimit(env.router, 2)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if i == 2 {
			expect(t, rec, http.StatusTooManyRequests, false, "Too many requests")
		}
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}

	env.do(t, http.MethodPost, "/api/admin/register", adminBody)
	rec = env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("food_admin_auth_registrations_total")) {
		t.Fatalf("expected auth counters in metrics output")
	}
}

func TestRouter_HealthUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc := service.NewJWTService("secret", 0)
	r := NewRouter(zap.NewNop(), nil, jwtSvc, func(context.Context) error { return errors.New("down") })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
