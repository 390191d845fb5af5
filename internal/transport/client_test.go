package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"productive-cloud/internal/domain"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func newTestClient(t *testing.T, token string, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", DeviceID: "laptop"}, staticToken(token)), srv
}

func TestDoWithoutTokenSendsNothing(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	_, err := c.Sync(context.Background(), domain.DataTypeHabits, json.RawMessage(`{}`), nil)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Sync() error = %v, want ErrUnauthenticated", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("server received %d requests, want 0", hits)
	}
}

func TestSyncSendsHeadersAndBody(t *testing.T) {
	lastSync := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ts := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/data/sync" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Device-ID"); got != "laptop" {
			t.Errorf("X-Device-ID = %q", got)
		}

		var req domain.SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.DataType != domain.DataTypeCRM || string(req.Data) != `{"projects":[]}` {
			t.Errorf("body = %+v", req)
		}
		if req.LastSync == nil || !req.LastSync.Equal(lastSync) {
			t.Errorf("lastSync = %v", req.LastSync)
		}

		json.NewEncoder(w).Encode(domain.SyncResponse{
			Action: domain.ActionSynced, Data: req.Data, Timestamp: ts, Version: 4,
		})
	})

	resp, err := c.Sync(context.Background(), domain.DataTypeCRM, json.RawMessage(`{"projects":[]}`), &lastSync)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if resp.Action != domain.ActionSynced || resp.Version != 4 || !resp.Timestamp.Equal(ts) {
		t.Errorf("Sync() = %+v", resp)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error field", http.StatusBadRequest, `{"error":"Invalid data type"}`, "Invalid data type"},
		{"no body", http.StatusInternalServerError, ``, "HTTP 500"},
		{"html body", http.StatusBadGateway, `<html>bad gateway</html>`, "HTTP 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := c.Delete(context.Background(), domain.DataTypeCalendar)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Delete() error = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.wantMsg {
				t.Errorf("APIError = %+v", apiErr)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, staticToken("tok"))
	_, err := c.FetchAll(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("FetchAll() error = %v, want ErrTimeout", err)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url}, staticToken("tok"))
	_, err := c.FetchAll(context.Background())

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("FetchAll() error = %v, want *NetworkError", err)
	}
	if netErr.Op != "send" {
		t.Errorf("Op = %q", netErr.Op)
	}
}

func TestGetMissingDataset(t *testing.T) {
	c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"message":"No data found"}`))
	})

	entry, ok, err := c.Get(context.Background(), domain.DataTypeSettings)
	if err != nil || ok || entry != nil {
		t.Errorf("Get() = %v, %v, %v; want absent", entry, ok, err)
	}
}

func TestLoginIsUnauthenticated(t *testing.T) {
	c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("login sent an Authorization header")
		}
		w.Write([]byte(`{"message":"Login successful","token":"new-token","user":{"id":"u1","username":"ana"}}`))
	})

	resp, err := c.Login(context.Background(), "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token != "new-token" || resp.User.ID != "u1" {
		t.Errorf("Login() = %+v", resp)
	}
}

func TestIsAuthRejected(t *testing.T) {
	if !IsAuthRejected(&APIError{Status: 403}) {
		t.Error("403 not treated as rejected")
	}
	if IsAuthRejected(&APIError{Status: 500}) || IsAuthRejected(ErrTimeout) {
		t.Error("non-auth error treated as rejected")
	}
}

func TestProfile(t *testing.T) {
	c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/auth/profile" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":"u1","username":"ana","email":"ana@example.com"}}`))
	})

	user, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if user == nil || user.Username != "ana" || user.Email != "ana@example.com" {
		t.Errorf("Profile() = %+v", user)
	}
}
