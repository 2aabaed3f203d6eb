package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hikfetch/internal/catalog"
)

func openStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "state", "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, job := range []string{"job-a", "job-a", "job-b"} {
		entry := catalog.Entry{
			JobID:       job,
			DisplayCode: "CODE0001",
			Path:        filepath.Join("/archive", base.Add(time.Duration(i)*time.Minute).Format("2006-01-02_15-04-05")+".mp4"),
			PlaybackURI: "rtsp://device/Streaming/tracks/101/",
			Start:       base.Add(time.Duration(i) * time.Minute),
			End:         base.Add(time.Duration(i+1) * time.Minute),
			SizeBytes:   1024,
		}
		if err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	all, err := store.List(ctx, catalog.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if !all[0].Start.After(all[1].Start) {
		t.Fatalf("expected newest first, got %v then %v", all[0].Start, all[1].Start)
	}
	if all[0].Media != "video" || all[0].Channel != 1 {
		t.Fatalf("expected defaults applied, got %+v", all[0])
	}

	jobA, err := store.List(ctx, catalog.Filter{JobID: "job-a", Limit: 1})
	if err != nil {
		t.Fatalf("List job-a: %v", err)
	}
	if len(jobA) != 1 || jobA[0].JobID != "job-a" {
		t.Fatalf("unexpected filtered entries %+v", jobA)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Files != 3 || stats.Bytes != 3072 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRecordReplacesSamePath(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	entry := catalog.Entry{JobID: "first", Path: "/archive/a.mp4", PlaybackURI: "rtsp://x", SizeBytes: 1}
	if err := store.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	entry.JobID = "second"
	entry.SizeBytes = 2
	if err := store.Record(ctx, entry); err != nil {
		t.Fatalf("Record again: %v", err)
	}
	entries, err := store.List(ctx, catalog.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].JobID != "second" || entries[0].SizeBytes != 2 {
		t.Fatalf("expected replaced entry, got %+v", entries)
	}
}

func TestRecordRequiresPath(t *testing.T) {
	store := openStore(t)
	if err := store.Record(context.Background(), catalog.Entry{JobID: "x"}); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Record(context.Background(), catalog.Entry{JobID: "j", Path: "/a.mp4", PlaybackURI: "u"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file: %v", err)
	}

	reopened, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.List(context.Background(), catalog.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", len(entries))
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump user_version: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	if _, err := catalog.Open(path); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
