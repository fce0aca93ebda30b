package persistence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/taskflow/internal/report"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func sampleReport(runID string) report.Report {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return report.Report{
		RunID:  runID,
		Policy: "PRIORITY",
		Title:  "Task Processing Report - Priority Scheduling",
		Mode:   "single-pass",
		Total:  4,
		Rows: []report.Row{
			{Position: 1, Name: "Library Study", Seconds: 3, Priority: 8, Category: "Study"},
			{Position: 2, Name: "Research Project", Seconds: 6, Priority: 6, Category: "Research"},
		},
		Blocked: []report.BlockedNotice{
			{Task: "Graduation", Missing: []string{"Thesis", "Fees, Late"}},
		},
		Shortfalls: []report.ShortfallNotice{
			{Task: "Library Study", Resource: "study_spaces", Requested: 2, Available: 1, Known: true},
			{Task: "Research Project", Resource: "lab", Requested: 1, Known: false},
		},
		Failed: []report.FailedNotice{
			{Task: "Enrolment", Error: "portal down"},
		},
		Rejected: []report.RejectedNotice{
			{Task: "Thesis", Error: `invalid task "Thesis": duration must not be negative`},
		},
		StartedAt:  started,
		FinishedAt: started.Add(9 * time.Second),
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	want := sampleReport("run-1")
	if err := store.SaveRun(ctx, want); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if got.Policy != want.Policy || got.Title != want.Title || got.Mode != want.Mode || got.Total != want.Total {
		t.Errorf("metadata mismatch: got %+v", got)
	}
	if !got.StartedAt.Equal(want.StartedAt) || !got.FinishedAt.Equal(want.FinishedAt) {
		t.Errorf("timestamps mismatch: got %v..%v", got.StartedAt, got.FinishedAt)
	}

	if len(got.Rows) != len(want.Rows) {
		t.Fatalf("Rows length mismatch: got %d, want %d", len(got.Rows), len(want.Rows))
	}
	for i := range want.Rows {
		if got.Rows[i] != want.Rows[i] {
			t.Errorf("Rows[%d] mismatch: got %+v, want %+v", i, got.Rows[i], want.Rows[i])
		}
	}

	if len(got.Blocked) != 1 || len(got.Blocked[0].Missing) != 2 || got.Blocked[0].Missing[1] != "Fees, Late" {
		t.Errorf("Blocked mismatch: %+v", got.Blocked)
	}
	if len(got.Shortfalls) != 2 {
		t.Fatalf("Shortfalls length mismatch: got %d", len(got.Shortfalls))
	}
	for i := range want.Shortfalls {
		if got.Shortfalls[i] != want.Shortfalls[i] {
			t.Errorf("Shortfalls[%d] mismatch: got %+v, want %+v", i, got.Shortfalls[i], want.Shortfalls[i])
		}
	}
	if len(got.Failed) != 1 || got.Failed[0] != want.Failed[0] {
		t.Errorf("Failed mismatch: %+v", got.Failed)
	}
	if len(got.Rejected) != 1 || got.Rejected[0] != want.Rejected[0] {
		t.Errorf("Rejected mismatch: %+v", got.Rejected)
	}
}

func TestSaveRunDuplicate(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveRun(ctx, sampleReport("dup")); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if err := store.SaveRun(ctx, sampleReport("dup")); err == nil {
		t.Error("expected error saving the same run twice")
	}

	// The failed second save must not leave partial rows behind.
	got, err := store.GetRun(ctx, "dup")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if len(got.Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(got.Rows))
	}
}

func TestSaveRunRequiresID(t *testing.T) {
	store := testStore(t)
	if err := store.SaveRun(context.Background(), report.Report{}); err == nil {
		t.Error("expected error for report without run ID")
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestGetRunEmptyReport(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	empty := report.Report{RunID: "empty", Policy: "SHORTEST", Title: "Task Processing Report - Shortest Duration First"}
	if err := store.SaveRun(ctx, empty); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	got, err := store.GetRun(ctx, "empty")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if len(got.Rows) != 0 || len(got.Blocked) != 0 || !got.StartedAt.IsZero() {
		t.Errorf("expected empty report, got %+v", got)
	}
}

func TestListRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := store.SaveRun(ctx, sampleReport(fmt.Sprintf("run-%d", i))); err != nil {
			t.Fatalf("failed to save run %d: %v", i, err)
		}
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-3" {
		t.Errorf("expected newest run first, got %s", runs[0].RunID)
	}

	sum := runs[0]
	if sum.Completed != 2 || sum.Blocked != 1 || sum.Shortfalls != 2 || sum.Failed != 1 || sum.Rejected != 1 {
		t.Errorf("summary counts wrong: %+v", sum)
	}
	if sum.ArchivedAt.IsZero() {
		t.Error("ArchivedAt should be set")
	}

	limited, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs with limit, got %d", len(limited))
	}
}

func TestDeleteRunCascades(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveRun(ctx, sampleReport("gone")); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if err := store.DeleteRun(ctx, "gone"); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	var n int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_records WHERE run_id = ?`, "gone").Scan(&n); err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if n != 0 {
		t.Errorf("expected records to cascade, %d remain", n)
	}

	if err := store.DeleteRun(ctx, "gone"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound on second delete, got %v", err)
	}
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	a := testStore(t)
	b := testStore(t)
	ctx := context.Background()

	if err := a.SaveRun(ctx, sampleReport("only-in-a")); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if _, err := b.GetRun(ctx, "only-in-a"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected store b not to see store a's run, got %v", err)
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.SaveRun(ctx, sampleReport("persisted")); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, "persisted")
	if err != nil {
		t.Fatalf("failed to get run after reopen: %v", err)
	}
	if len(got.Rows) != 2 {
		t.Errorf("expected 2 rows after reopen, got %d", len(got.Rows))
	}
}
