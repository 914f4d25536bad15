package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeKLine struct {
	Date  string
	Close float64
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), 16, zap.NewNop())
}

func TestDeriveKeyOrderIndependent(t *testing.T) {
	a := DeriveKey("screen", map[string]interface{}{"pe_max": 20.0, "market_cap_min": 50.0})
	b := DeriveKey("screen", map[string]interface{}{"market_cap_min": 50.0, "pe_max": 20.0})
	if a != b {
		t.Errorf("key should not depend on field order: %s vs %s", a, b)
	}

	c := DeriveKey("screen", map[string]interface{}{"pe_max": 30.0, "market_cap_min": 50.0})
	if a == c {
		t.Errorf("different params produced the same key %s", a)
	}

	// prefix_12hex
	if len(a) != len("screen_")+12 {
		t.Errorf("unexpected key format: %s", a)
	}
}

func TestSetGetJSON(t *testing.T) {
	s := newTestStore(t)

	s.Set("screen_abc123def456", map[string]interface{}{"total": 3.0}, FormatJSON)

	v, ok := s.Get("screen_abc123def456", TTLScreening)
	if !ok {
		t.Fatal("expected a fresh hit right after set")
	}
	m, ok := v.(map[string]interface{})
	if !ok || m["total"] != 3.0 {
		t.Errorf("unexpected cached value: %#v", v)
	}
}

func TestSetGetBinary(t *testing.T) {
	RegisterType([]fakeKLine{})
	s := newTestStore(t)

	klines := []fakeKLine{{Date: "2026-08-21", Close: 10.5}, {Date: "2026-08-22", Close: 10.8}}
	s.Set("history_000000000001", klines, FormatBinary)

	// bypass the memory tier so the gob file itself is exercised
	s.mem.Purge()

	v, ok := s.Get("history_000000000001", TTLHistorical)
	if !ok {
		t.Fatal("expected a binary hit")
	}
	got, ok := v.([]fakeKLine)
	if !ok || len(got) != 2 || got[1].Close != 10.8 {
		t.Errorf("unexpected binary value: %#v", v)
	}
}

func TestGetExpired(t *testing.T) {
	s := newTestStore(t)
	s.Set("quote_0123456789ab", map[string]interface{}{"price": 12.3}, FormatJSON)

	// jump the clock past the TTL
	s.now = func() time.Time { return time.Now().Add(TTLRealtime + time.Minute) }

	if _, ok := s.Get("quote_0123456789ab", TTLRealtime); ok {
		t.Error("expired entry should be treated as absent")
	}
}

func TestGetCorruptFileIsMiss(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.jsonDir, "bad_000000000000.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Get("bad_000000000000", TTLStatic); ok {
		t.Error("corrupt entry should be a miss, not an error")
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	s.Set("k_000000000000", "v", FormatJSON)
	s.Delete("k_000000000000")

	if _, ok := s.Get("k_000000000000", TTLStatic); ok {
		t.Error("deleted entry should be absent")
	}
	// deleting again must be a no-op
	s.Delete("k_000000000000")
}

func TestClearOldEntries(t *testing.T) {
	s := newTestStore(t)
	s.Set("old_000000000000", "v1", FormatJSON)
	s.Set("new_000000000000", "v2", FormatJSON)

	// age the first file by ten days via mtime
	old := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(filepath.Join(s.jsonDir, "old_000000000000.json"), old, old); err != nil {
		t.Fatal(err)
	}

	if n := s.Clear(7); n != 1 {
		t.Errorf("Clear(7) removed %d files, want 1", n)
	}
	s.mem.Purge()
	if _, ok := s.Get("new_000000000000", TTLStatic); !ok {
		t.Error("recent entry should survive Clear")
	}
}

func TestStoreDegradesWithoutDisk(t *testing.T) {
	// point the store at a path that cannot exist
	s := NewStore(filepath.Join(string(os.PathSeparator), "dev", "null", "nope"), 4, zap.NewNop())

	s.Set("k_000000000000", "v", FormatJSON) // must not panic
	s.mem.Purge()
	if _, ok := s.Get("k_000000000000", TTLStatic); ok {
		t.Error("broken disk should degrade to always-miss")
	}
	if n := s.Clear(0); n != 0 {
		t.Errorf("Clear on broken disk removed %d", n)
	}
}

func TestTTLForIntent(t *testing.T) {
	cases := map[string]time.Duration{
		"realtime":  TTLRealtime,
		"quote":     TTLRealtime,
		"price":     TTLRealtime,
		"history":   TTLHistorical,
		"kline":     TTLHistorical,
		"financial": TTLHistorical,
		"screen":    TTLScreening,
		"filter":    TTLScreening,
		"whatever":  TTLStatic,
	}
	for intent, want := range cases {
		if got := TTLForIntent(intent); got != want {
			t.Errorf("TTLForIntent(%q) = %v, want %v", intent, got, want)
		}
	}
}
