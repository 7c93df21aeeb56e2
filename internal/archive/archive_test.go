package archive

import (
	"encoding/json"
	"sync"
	"testing"
)

func entries() []Entry {
	return []Entry{
		{RunID: "b", CreatedAt: 2_000, Digest: "sha256:02", OrderCount: 2, Report: json.RawMessage(`{"order_count":2}`)},
		{RunID: "a", CreatedAt: 1_000, Digest: "sha256:01", OrderCount: 1, Report: json.RawMessage(`{"order_count":1}`)},
		{RunID: "c", CreatedAt: 30_000, Digest: "sha256:03", OrderCount: 3, Dropped: 1, Report: json.RawMessage(`{"order_count":3}`)},
	}
}

func exercise(t *testing.T, s Store) {
	t.Helper()
	if _, ok := s.Latest(); ok {
		t.Fatal("empty store should have no latest")
	}
	for _, e := range entries() {
		if err := s.Put(e); err != nil {
			t.Fatalf("put %s: %v", e.RunID, err)
		}
	}
	if err := s.Put(Entry{}); err == nil {
		t.Fatal("expected error for empty run id")
	}

	got, ok := s.Get("c")
	if !ok || got.Digest != "sha256:03" || got.Dropped != 1 || string(got.Report) != `{"order_count":3}` {
		t.Fatalf("bad get: %+v ok=%v", got, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Fatal("unexpected entry for missing id")
	}

	var order []string
	if err := s.Range(func(e Entry) error { order = append(order, e.RunID); return nil }); err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("range not chronological: %v", order)
	}

	if ok, err := s.Has("a"); err != nil || !ok {
		t.Fatalf("has a: %v %v", ok, err)
	}
	if ok, err := s.Has("zzz"); err != nil || ok {
		t.Fatalf("has zzz: %v %v", ok, err)
	}

	latest, ok := s.Latest()
	if !ok || latest.RunID != "c" {
		t.Fatalf("bad latest: %+v", latest)
	}
}

func TestInMemoryStore(t *testing.T) {
	exercise(t, NewInMemoryStore())
}

func TestPebbleStore(t *testing.T) {
	st, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	exercise(t, st)
}

func TestPebbleStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	if err := st.Put(entries()[0]); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	st, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if e, ok := st.Get("b"); !ok || e.OrderCount != 2 {
		t.Fatalf("entry lost across reopen: %+v", e)
	}
}

func TestInMemoryStore_ConcurrentPuts(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Put(Entry{RunID: string(rune('A' + i)), CreatedAt: int64(i)}); err != nil {
				t.Errorf("put: %v", err)
			}
		}(i)
	}
	wg.Wait()
	n := 0
	_ = s.Range(func(Entry) error { n++; return nil })
	if n != 50 {
		t.Fatalf("want 50 entries, got %d", n)
	}
}
