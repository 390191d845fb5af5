package localstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetPut(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, ok, err := s.Get(ctx, "habits"); err != nil || ok {
		t.Fatalf("Get() on empty store = ok %v, err %v", ok, err)
	}

	if err := s.Put(ctx, "habits", json.RawMessage(`{"habits":[1]}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(ctx, "habits", json.RawMessage(`{"habits":[1,2]}`)); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}

	got, ok, err := s.Get(ctx, "habits")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if string(got) != `{"habits":[1,2]}` {
		t.Errorf("Get() = %s", got)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if _, ok := keys["habits"]; !ok || len(keys) != 1 {
		t.Errorf("Keys() = %v", keys)
	}

	if err := s.Delete(ctx, "habits"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "habits"); ok {
		t.Error("Get() after Delete still present")
	}
}

func TestGetMalformedIsAbsent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Put(ctx, "crm", json.RawMessage(`{"projects":[`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := s.Get(ctx, "crm")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || got != nil {
		t.Errorf("Get() malformed = %s, ok %v; want absent", got, ok)
	}
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if tok, err := s.Token(ctx); err != nil || tok != "" {
		t.Fatalf("Token() logged out = %q, %v", tok, err)
	}

	if err := s.SaveLogin(ctx, "tok-1", json.RawMessage(`{"id":"u1"}`)); err != nil {
		t.Fatalf("SaveLogin() error = %v", err)
	}
	if err := s.SetLastSync(ctx, "habits", time.Now()); err != nil {
		t.Fatalf("SetLastSync() error = %v", err)
	}

	if tok, _ := s.Token(ctx); tok != "tok-1" {
		t.Errorf("Token() = %q", tok)
	}
	if u, _ := s.User(ctx); string(u) != `{"id":"u1"}` {
		t.Errorf("User() = %s", u)
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if tok, _ := s.Token(ctx); tok != "" {
		t.Errorf("Token() after logout = %q", tok)
	}
	if ts, _ := s.LastSync(ctx, "habits"); ts != nil {
		t.Errorf("LastSync() after logout = %v", ts)
	}
}

func TestLastSyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ts := time.Date(2024, 7, 4, 12, 30, 15, 123_000_000, time.FixedZone("X", 3600))
	if err := s.SetLastSync(ctx, "crm", ts); err != nil {
		t.Fatalf("SetLastSync() error = %v", err)
	}

	got, err := s.LastSync(ctx, "crm")
	if err != nil || got == nil {
		t.Fatalf("LastSync() = %v, %v", got, err)
	}
	if !got.Equal(ts) {
		t.Errorf("LastSync() = %v, want %v", got, ts)
	}

	all, err := s.LastSyncs(ctx)
	if err != nil {
		t.Fatalf("LastSyncs() error = %v", err)
	}
	if !all["crm"].Equal(ts) || len(all) != 1 {
		t.Errorf("LastSyncs() = %v", all)
	}

	if got, _ := s.LastSync(ctx, "habits"); got != nil {
		t.Errorf("LastSync(never) = %v, want nil", got)
	}
}

func TestDeviceIDIsStable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	calls := 0
	gen := func() string { calls++; return "device-xyz" }

	first, err := s.DeviceID(ctx, gen)
	if err != nil {
		t.Fatalf("DeviceID() error = %v", err)
	}
	second, _ := s.DeviceID(ctx, gen)
	if first != "device-xyz" || second != first || calls != 1 {
		t.Errorf("DeviceID() = %q, %q after %d generations", first, second, calls)
	}
}

func TestOpenFilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "local.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Put(ctx, "settings", json.RawMessage(`{"theme":"dark"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "settings")
	if err != nil || !ok || string(got) != `{"theme":"dark"}` {
		t.Errorf("Get() after reopen = %s, %v, %v", got, ok, err)
	}
}
