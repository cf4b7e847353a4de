package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecentActivity(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []Activity{
		{At: base, Kind: "load", Detail: "page 1", OK: true},
		{At: base.Add(time.Minute), Kind: "delete", Detail: "ids 3,4", OK: true},
		{At: base.Add(2 * time.Minute), Kind: "load", Detail: "page 2", OK: false},
	}
	for _, a := range entries {
		if err := s.Record(ctx, a); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.RecentActivity(ctx, 10, "")
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	if got[0].Detail != "page 2" || got[0].OK {
		t.Errorf("newest entry = %+v", got[0])
	}
	if !got[2].At.Equal(base) {
		t.Errorf("oldest At = %v; want %v", got[2].At, base)
	}

	loads, err := s.RecentActivity(ctx, 1, "load")
	if err != nil {
		t.Fatalf("RecentActivity kind: %v", err)
	}
	if len(loads) != 1 || loads[0].Detail != "page 2" {
		t.Errorf("filtered = %+v", loads)
	}
}

func TestRecordStampsTime(t *testing.T) {
	s := testStore(t)
	fixed := time.Date(2024, 12, 24, 18, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	if err := s.Record(ctx, Activity{Kind: "stats", OK: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, _ := s.RecentActivity(ctx, 1, "")
	if len(got) != 1 || !got[0].At.Equal(fixed) {
		t.Fatalf("got %+v", got)
	}
}

func TestPruneActivity(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Record(ctx, Activity{Kind: "load", Detail: string(rune('a' + i)), OK: true})
	}
	if err := s.PruneActivity(ctx, 2); err != nil {
		t.Fatalf("PruneActivity: %v", err)
	}
	got, _ := s.RecentActivity(ctx, 0, "")
	if len(got) != 2 {
		t.Fatalf("expected 2 after prune, got %d", len(got))
	}
	if got[0].Detail != "e" || got[1].Detail != "d" {
		t.Errorf("kept %q, %q", got[0].Detail, got[1].Detail)
	}
}

func TestPrefs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, ok, err := s.Pref(ctx, PrefPageSize)
	if err != nil {
		t.Fatalf("Pref: %v", err)
	}
	if ok {
		t.Fatal("expected unset pref")
	}

	if err := s.SetPref(ctx, PrefPageSize, "10"); err != nil {
		t.Fatalf("SetPref: %v", err)
	}
	if err := s.SetPref(ctx, PrefPageSize, "20"); err != nil {
		t.Fatalf("SetPref overwrite: %v", err)
	}
	val, ok, err := s.Pref(ctx, PrefPageSize)
	if err != nil || !ok || val != "20" {
		t.Fatalf("Pref = %q, %v, %v; want 20", val, ok, err)
	}
}

func TestImports(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, ok, _ := s.ImportedSubmission(ctx, "abc"); ok {
		t.Fatal("expected no import yet")
	}
	if err := s.RecordImport(ctx, "abc", 7); err != nil {
		t.Fatalf("RecordImport: %v", err)
	}
	if err := s.RecordImport(ctx, "abc", 9); err != nil {
		t.Fatalf("RecordImport again: %v", err)
	}
	id, ok, err := s.ImportedSubmission(ctx, "abc")
	if err != nil || !ok || id != 9 {
		t.Fatalf("ImportedSubmission = %d, %v, %v", id, ok, err)
	}
}
