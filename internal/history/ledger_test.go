package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/unisonhq/unison/internal/storage"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "unison.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewLedger(db)
}

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()
	ledger := openLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, jobID := range []string{"unison-a", "unison-b", "unison-c"} {
		_, err := ledger.RecordLaunch(ctx, Entry{
			JobID:       jobID,
			RunID:       "run-" + jobID,
			DataKind:    "databricks",
			ComputeKind: "databricks",
			Status:      "launched",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := ledger.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].JobID != "unison-c" || entries[1].JobID != "unison-b" {
		t.Fatalf("wrong order: %s, %s", entries[0].JobID, entries[1].JobID)
	}
}

func TestFindByJob(t *testing.T) {
	t.Parallel()
	ledger := openLedger(t)
	ctx := context.Background()

	if _, err := ledger.RecordLaunch(ctx, Entry{
		JobID: "unison-x", DataKind: "aws_redshift", ComputeKind: "aws_emr",
		Status: "failed", Error: "cluster not in a runnable state",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	e, err := ledger.FindByJob(ctx, "unison-x")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if e == nil || e.Error == "" {
		t.Fatalf("expected failed entry, got %+v", e)
	}

	missing, err := ledger.FindByJob(ctx, "unison-nope")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown job, got %+v", missing)
	}
}
