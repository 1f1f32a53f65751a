package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecentFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	entries := []Entry{
		{Action: "list", Filter: "+READY", At: base},
		{Action: "list", Filter: "project:home", At: base.Add(time.Minute)},
		{Action: "list", Filter: "+READY", At: base.Add(2 * time.Minute)},
		{Action: "done", UUID: "aaaa1111", Description: "Buy milk", At: base.Add(3 * time.Minute)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	filters, err := s.RecentFilters(ctx, 5)
	if err != nil {
		t.Fatalf("RecentFilters failed: %v", err)
	}
	if len(filters) != 2 {
		t.Fatalf("filters = %v", filters)
	}
	// "+READY" was used most recently, then "project:home". Entries without
	// a filter do not appear.
	if filters[0] != "+READY" || filters[1] != "project:home" {
		t.Errorf("filters = %v", filters)
	}
}

func TestRecentFiltersLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, f := range []string{"a", "b", "c", "d"} {
		e := Entry{Action: "list", Filter: f, At: time.Now().Add(time.Duration(i) * time.Second)}
		if err := s.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	filters, err := s.RecentFilters(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(filters) != 2 || filters[0] != "d" {
		t.Errorf("filters = %v", filters)
	}
}

func TestBoost(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recent := time.Now().Add(-time.Hour)
	stale := time.Now().Add(-30 * 24 * time.Hour)

	for _, e := range []Entry{
		{Action: "done", UUID: "u1", At: recent},
		{Action: "toggle", UUID: "u1", At: recent.Add(time.Minute)},
		{Action: "done", UUID: "u2", At: recent},
		{Action: "done", UUID: "u3", At: stale},
		{Action: "list", Filter: "+READY", At: recent},
	} {
		if err := s.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := s.Boost(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Boost failed: %v", err)
	}
	if counts["u1"] != 2 || counts["u2"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if _, ok := counts["u3"]; ok {
		t.Error("stale selection should be outside the window")
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Entry{Action: "done", UUID: "old", At: time.Now().Add(-48 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, Entry{Action: "done", UUID: "new"}); err != nil {
		t.Fatal(err)
	}

	if err := s.Prune(ctx, 24*time.Hour); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	counts, err := s.Boost(ctx, 365*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := counts["old"]; ok {
		t.Error("pruned entry still present")
	}
	if _, ok := counts["new"]; !ok {
		t.Error("fresh entry should survive pruning")
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Record(context.Background(), Entry{Action: "list", Filter: "+READY"}); err != nil {
		t.Errorf("Record failed: %v", err)
	}
}
