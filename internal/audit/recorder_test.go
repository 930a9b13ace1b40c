package audit

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestEmbeddedMigrationsHaveMatchingDownFiles(t *testing.T) {
	versions, err := upMigrations()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, version := range versions {
		down := strings.TrimSuffix(version, ".up.sql") + ".down.sql"
		if _, err := migrationFiles.ReadFile("migrations/" + down); err != nil {
			t.Fatalf("missing down migration for %s: %v", version, err)
		}
	}
}

func TestRecorderPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("VITRINE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("VITRINE_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	if err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations twice: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE content_commits`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	recorder := NewRecorder(db)
	empty, err := recorder.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent on empty table: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil entries, got %#v", empty)
	}

	if err := recorder.Record(ctx, Entry{
		RequestID: "req-1",
		Transport: "api",
		Action:    "update",
		Path:      "gallery.json",
		CommitSHA: "abc123",
		Message:   "Add category",
		Additions: 3,
		Outcome:   OutcomeCommitted,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := recorder.Record(ctx, Entry{Transport: "api", Action: "update", Path: "contact.json", Outcome: OutcomeFailed, ErrorKind: "conflict"}); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	entries, err := recorder.Recent(ctx, "gallery.json", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 || entries[0].CommitSHA != "abc123" || entries[0].Additions != 3 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	all, err := recorder.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent all: %v", err)
	}
	if len(all) != 2 || all[0].Outcome != OutcomeFailed {
		t.Fatalf("unexpected entries: %+v", all)
	}
}
