package jobstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"romkeep/internal/jobstore"
	"romkeep/internal/services"
	"romkeep/internal/testsupport"
)

func openStore(t *testing.T) *jobstore.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := jobstore.Record{
		JobID:       "job-1",
		Status:      "completed",
		Processed:   3,
		Total:       3,
		Errors:      []string{"corrupt.nes: below minimum size"},
		CreatedAt:   now,
		StartedAt:   now.Add(time.Second),
		CompletedAt: now.Add(5 * time.Second),
	}
	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "completed" || got.Processed != 3 || got.Total != 3 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Errors) != 1 || got.Errors[0] != rec.Errors[0] {
		t.Fatalf("errors not preserved: %v", got.Errors)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestGetUnknownJob(t *testing.T) {
	store := openStore(t)
	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestRecordOverwritesSameID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := jobstore.Record{JobID: "job-2", Status: "failed", Processed: 1, Total: 3, CreatedAt: now}
	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("Record: %v", err)
	}
	first.Status = "completed"
	first.Processed = 3
	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("Record again: %v", err)
	}

	got, err := store.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "completed" || got.Processed != 3 {
		t.Fatalf("expected overwrite, got %+v", got)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, id := range []string{"old", "mid", "new"} {
		rec := jobstore.Record{
			JobID:     id,
			Status:    "completed",
			Total:     1,
			Processed: 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 || records[0].JobID != "new" || records[1].JobID != "mid" {
		t.Fatalf("unexpected order: %+v", records)
	}
}

func TestPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	stale := jobstore.Record{JobID: "stale", Status: "completed", Total: 1, Processed: 1,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := jobstore.Record{JobID: "fresh", Status: "completed", Total: 1, Processed: 1,
		CreatedAt: time.Now().UTC()}
	for _, rec := range []jobstore.Record{stale, fresh} {
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s): %v", rec.JobID, err)
		}
	}

	pruned, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Fatalf("fresh entry lost: %v", err)
	}
}
