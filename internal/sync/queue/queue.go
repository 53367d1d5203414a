// Package queue manages the durable outbound queue backing the sync engine.
// Each entry points at one unsynced record and carries its retry budget;
// the record data itself stays in the family tables.
package queue

import (
	"time"

	"github.com/semsproject/sems-client/internal/db"
	"github.com/semsproject/sems-client/internal/errors"
	"github.com/semsproject/sems-client/internal/logging"
	"github.com/semsproject/sems-client/internal/models"
)

// MaxRetries is the attempt budget per record. Once exhausted the entry is
// dropped and the record stays unsynced until a manual sync requeues it.
const MaxRetries = 3

// Queue is the durable outbound queue.
type Queue struct {
	repo *db.Repository
}

// New creates a Queue over the repository.
func New(repo *db.Repository) *Queue {
	return &Queue{repo: repo}
}

// Enqueue registers a record for sync. Enqueueing an already-queued record
// is a no-op; the existing entry keeps its retry state.
func (q *Queue) Enqueue(family models.Family, recordID models.UUID) error {
	if !family.Valid() {
		return errors.New(errors.ErrInvalid, "unknown record family")
	}
	entry := &models.QueueEntry{Family: family, RecordID: recordID}
	if err := q.repo.InsertQueueEntry(entry); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to enqueue record", err)
	}
	return nil
}

// ListPending returns queue entries eligible for a sync attempt, oldest
// first. Entries whose record is gone or already synced are purged on the
// way through, as are entries that somehow persisted past their retry
// budget.
func (q *Queue) ListPending() ([]*models.QueueEntry, error) {
	all, err := q.repo.ListQueueEntries()
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list queue", err)
	}

	pending := make([]*models.QueueEntry, 0, len(all))
	for _, e := range all {
		exists, synced, err := q.repo.SyncState(e.Family, e.RecordID)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to check record state", err)
		}
		if !exists || synced || e.RetryCount >= MaxRetries {
			if err := q.repo.DeleteQueueEntry(e.ID); err != nil {
				return nil, errors.Wrap(errors.ErrDatabase, "failed to purge queue entry", err)
			}
			logging.Debug("purged stale queue entry", map[string]interface{}{
				"family":    string(e.Family),
				"record_id": string(e.RecordID),
				"exists":    exists,
				"synced":    synced,
			})
			continue
		}
		pending = append(pending, e)
	}
	return pending, nil
}

// RecordAttemptFailure increments an entry's retry count and stores the
// failure message. It returns the updated count so the caller can decide
// whether the budget is spent.
func (q *Queue) RecordAttemptFailure(id models.UUID, errMsg string) (int, error) {
	if err := q.repo.BumpQueueRetry(id, errMsg, time.Now()); err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to record attempt", err)
	}
	entry, err := q.repo.GetQueueEntry(id)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to reload queue entry", err)
	}
	return entry.RetryCount, nil
}

// Remove deletes a queue entry, after success or permanent failure.
func (q *Queue) Remove(id models.UUID) error {
	if err := q.repo.DeleteQueueEntry(id); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to remove queue entry", err)
	}
	return nil
}

// RequeueFailed gives every unsynced record without a queue entry a fresh
// entry with a full retry budget. Manual sync triggers call this so records
// that exhausted their retries get another chance. Returns the number of
// records requeued.
func (q *Queue) RequeueFailed() (int, error) {
	requeued := 0
	for _, family := range models.SyncOrder {
		ids, err := q.repo.UnsyncedIDs(family)
		if err != nil {
			return requeued, errors.Wrap(errors.ErrDatabase, "failed to list unsynced records", err)
		}
		for _, id := range ids {
			existing, err := q.repo.QueueEntryForRecord(family, id)
			if err != nil {
				return requeued, errors.Wrap(errors.ErrDatabase, "failed to check queue entry", err)
			}
			if existing != nil {
				continue
			}
			if err := q.repo.InsertQueueEntry(&models.QueueEntry{Family: family, RecordID: id}); err != nil {
				return requeued, errors.Wrap(errors.ErrDatabase, "failed to requeue record", err)
			}
			requeued++
		}
	}
	if requeued > 0 {
		logging.Info("requeued records for retry", map[string]interface{}{"count": requeued})
	}
	return requeued, nil
}

// Len returns the number of entries in the queue, stale ones included.
func (q *Queue) Len() (int, error) {
	n, err := q.repo.QueueLength()
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to count queue", err)
	}
	return n, nil
}
