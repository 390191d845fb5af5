package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"productive-cloud/internal/config"
	"productive-cloud/internal/metrics"
	"productive-cloud/pkg/jwt"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret"

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := jwt.GenerateToken("user-1", time.Hour, testSecret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	foreign, _ := jwt.GenerateToken("user-1", time.Hour, "other")

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized, wantError: "Access token required"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantError: "Access token required"},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantError: "Access token required"},
		{name: "bad signature", header: "Bearer " + foreign, wantStatus: http.StatusForbidden, wantError: "Invalid token"},
		{name: "garbage token", header: "Bearer not.a.jwt", wantStatus: http.StatusForbidden, wantError: "Invalid token"},
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser, gotDevice string
			h := AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r)
				gotDevice = GetDeviceID(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req.Header.Set(DeviceIDHeader, "laptop")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantError != "" {
				if got := decodeError(t, rec); got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
				return
			}
			if gotUser != "user-1" {
				t.Errorf("user id = %q, want user-1", gotUser)
			}
			if gotDevice != "laptop" {
				t.Errorf("device id = %q, want laptop", gotDevice)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware(config.CORSConfig{
		AllowedOrigins: "https://app.example.com, https://other.example.com",
		AllowedMethods: "GET,POST",
		AllowedHeaders: "Content-Type,Authorization,X-Device-ID",
	})(http.HandlerFunc(okHandler))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://other.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://other.example.com" {
			t.Errorf("allow origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization, X-Device-ID" {
			t.Errorf("allow headers = %q", got)
		}
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("allow origin = %q, want empty", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/data", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}

func TestLoggerMiddlewareRecordsAuthenticatedUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	token, _ := jwt.GenerateToken("user-9", time.Hour, testSecret)

	h := LoggerMiddleware(zap.New(core))(AuthMiddleware(testSecret)(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["user"] != "user-9" {
		t.Errorf("user field = %v, want user-9", fields["user"])
	}
	if fields["status"] != int64(http.StatusOK) {
		t.Errorf("status field = %v", fields["status"])
	}
}

func TestLoggerMiddlewareLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	h := LoggerMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zap.WarnLevel {
		t.Fatalf("entries = %+v, want one warn entry", entries)
	}
	if entries[0].ContextMap()["user"] != "anonymous" {
		t.Errorf("user field = %v, want anonymous", entries[0].ContextMap()["user"])
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Requests: 2, Window: time.Minute, Enabled: true})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Middleware()(http.HandlerFunc(okHandler))
	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := call("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first request = %d", got)
	}
	if got := call("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("second request = %d", got)
	}
	if got := call("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", got)
	}
	if got := call("10.0.0.2"); got != http.StatusOK {
		t.Errorf("other ip = %d, want 200", got)
	}

	// Tokens refill at two per minute.
	now = now.Add(45 * time.Second)
	if got := call("10.0.0.1"); got != http.StatusOK {
		t.Errorf("after refill = %d, want 200", got)
	}

	now = now.Add(2 * time.Minute)
	rl.Cleanup()
	if len(rl.visitors) != 0 {
		t.Errorf("visitors after cleanup = %d, want 0", len(rl.visitors))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:5555"
	if got := clientIP(req); got != "192.168.1.5" {
		t.Errorf("clientIP() = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("clientIP() with XFF = %q", got)
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	m := metrics.New()
	r := mux.NewRouter()
	r.Use(MetricsMiddleware(m))
	r.HandleFunc("/api/data/{dataType}", okHandler).Methods(http.MethodGet)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/data/habits", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/data/crm", nil))

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/api/data/{dataType}", "200"))
	if got != 2 {
		t.Errorf("requests counter = %v, want 2", got)
	}
}
