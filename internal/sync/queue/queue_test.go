package queue

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/semsproject/sems-client/internal/db"
	"github.com/semsproject/sems-client/internal/models"
)

func newTestQueue(t *testing.T) (*Queue, *db.Repository) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.InitSchema(sqlDB); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	repo := db.NewRepository(sqlDB)
	return New(repo), repo
}

func addDispense(t *testing.T, repo *db.Repository) *models.DispenseRecord {
	t.Helper()
	rec := &models.DispenseRecord{
		PharmacistID: "ph-1",
		DrugID:       "amox",
		DrugName:     "Amoxicillin",
		IsActive:     true,
	}
	if err := repo.PutDispense(rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestEnqueueIdempotent(t *testing.T) {
	q, repo := newTestQueue(t)
	rec := addDispense(t, repo)

	if err := q.Enqueue(models.FamilyDispense, rec.LocalID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Bump retry state, then enqueue again. The entry must survive intact.
	entry, err := repo.QueueEntryForRecord(models.FamilyDispense, rec.LocalID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.RecordAttemptFailure(entry.ID, "timeout"); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(models.FamilyDispense, rec.LocalID); err != nil {
		t.Fatal(err)
	}

	n, err := q.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("len = %d, want 1", n)
	}
	entry, err = repo.QueueEntryForRecord(models.FamilyDispense, rec.LocalID)
	if err != nil {
		t.Fatal(err)
	}
	if entry.RetryCount != 1 {
		t.Errorf("retry count reset to %d", entry.RetryCount)
	}
}

func TestEnqueueRejectsUnknownFamily(t *testing.T) {
	q, _ := newTestQueue(t)
	if err := q.Enqueue("bogus", "id"); err == nil {
		t.Error("unknown family accepted")
	}
}

func TestListPendingPurgesSyncedAndMissing(t *testing.T) {
	q, repo := newTestQueue(t)

	live := addDispense(t, repo)
	syncedRec := addDispense(t, repo)
	if err := q.Enqueue(models.FamilyDispense, live.LocalID); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(models.FamilyDispense, syncedRec.LocalID); err != nil {
		t.Fatal(err)
	}
	// A third entry points at a record that never existed.
	if err := q.Enqueue(models.FamilyDispense, "ghost"); err != nil {
		t.Fatal(err)
	}

	if err := repo.MarkSynced(models.FamilyDispense, syncedRec.LocalID, 5, time.Now()); err != nil {
		t.Fatal(err)
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].RecordID != live.LocalID {
		t.Errorf("pending = %+v, want only the live record", pending)
	}

	// Purge is durable, not just filtered from the result.
	n, err := q.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("len after purge = %d, want 1", n)
	}
}

func TestListPendingExcludesExhaustedEntries(t *testing.T) {
	q, repo := newTestQueue(t)
	rec := addDispense(t, repo)
	if err := q.Enqueue(models.FamilyDispense, rec.LocalID); err != nil {
		t.Fatal(err)
	}
	entry, err := repo.QueueEntryForRecord(models.FamilyDispense, rec.LocalID)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= MaxRetries; i++ {
		count, err := q.RecordAttemptFailure(entry.ID, "500 from server")
		if err != nil {
			t.Fatal(err)
		}
		if count != i {
			t.Errorf("count = %d, want %d", count, i)
		}
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("exhausted entry still pending: %+v", pending)
	}
}

func TestRequeueFailed(t *testing.T) {
	q, repo := newTestQueue(t)

	// Unsynced without an entry: requeued.
	orphaned := addDispense(t, repo)
	// Unsynced with a live entry: left alone.
	queued := addDispense(t, repo)
	if err := q.Enqueue(models.FamilyDispense, queued.LocalID); err != nil {
		t.Fatal(err)
	}
	// Synced: ignored.
	done := addDispense(t, repo)
	if err := repo.MarkSynced(models.FamilyDispense, done.LocalID, 9, time.Now()); err != nil {
		t.Fatal(err)
	}

	n, err := q.RequeueFailed()
	if err != nil {
		t.Fatalf("RequeueFailed: %v", err)
	}
	if n != 1 {
		t.Errorf("requeued = %d, want 1", n)
	}

	entry, err := repo.QueueEntryForRecord(models.FamilyDispense, orphaned.LocalID)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("orphaned record not requeued")
	}
	if entry.RetryCount != 0 {
		t.Errorf("fresh entry retry count = %d", entry.RetryCount)
	}

	if entry, _ := repo.QueueEntryForRecord(models.FamilyDispense, done.LocalID); entry != nil {
		t.Error("synced record requeued")
	}
}

func TestRemove(t *testing.T) {
	q, repo := newTestQueue(t)
	rec := addDispense(t, repo)
	if err := q.Enqueue(models.FamilyDispense, rec.LocalID); err != nil {
		t.Fatal(err)
	}
	entry, err := repo.QueueEntryForRecord(models.FamilyDispense, rec.LocalID)
	if err != nil {
		t.Fatal(err)
	}

	if err := q.Remove(entry.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	n, _ := q.Len()
	if n != 0 {
		t.Errorf("len = %d after remove", n)
	}
}
