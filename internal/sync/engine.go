package sync

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/semsproject/sems-client/internal/db"
	"github.com/semsproject/sems-client/internal/errors"
	"github.com/semsproject/sems-client/internal/logging"
	"github.com/semsproject/sems-client/internal/models"
	"github.com/semsproject/sems-client/internal/sync/queue"
)

// Result summarizes one sync pass.
type Result struct {
	Attempted  int  `json:"attempted"`
	Synced     int  `json:"synced"`
	Reconciled int  `json:"reconciled"`
	Failed     int  `json:"failed"`
	Skipped    int  `json:"skipped"`
	AuthFailed bool `json:"auth_failed,omitempty"`
}

// Engine drives sync passes over the outbound queue. At most one pass runs
// at a time; concurrent triggers are rejected rather than queued.
type Engine struct {
	repo   *db.Repository
	queue  *queue.Queue
	rec    *Reconciler
	status *StatusPublisher

	syncing atomic.Bool
}

// NewEngine wires the engine over its collaborators.
func NewEngine(repo *db.Repository, q *queue.Queue, client *Client, status *StatusPublisher) *Engine {
	return &Engine{
		repo:   repo,
		queue:  q,
		rec:    NewReconciler(client),
		status: status,
	}
}

// Syncing reports whether a pass is currently running.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// RunManual resets the retry budget of records that exhausted theirs, then
// runs a pass. This is the handler behind the user-facing sync button.
func (e *Engine) RunManual(ctx context.Context, creds Credentials) (Result, error) {
	if _, err := e.queue.RequeueFailed(); err != nil {
		return Result{}, err
	}
	return e.RunPass(ctx, creds)
}

// RunPass processes the queue in family dependency order: dispenses first,
// then ticket notes, tickets, pending drugs, and dose regimens last so a
// regimen's parent drug has a server id by the time the regimen is sent.
// Credentials are taken per call so a rotated token reaches the server on
// the very next trigger.
func (e *Engine) RunPass(ctx context.Context, creds Credentials) (Result, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		return Result{}, errors.New(errors.ErrSyncInProgress, "a sync pass is already running")
	}
	defer e.syncing.Store(false)

	e.status.SetSyncing(true)
	defer e.status.SetSyncing(false)

	pending, err := e.queue.ListPending()
	if err != nil {
		return Result{}, err
	}

	logging.Info("sync pass started", map[string]interface{}{"pending": len(pending)})

	var result Result
	// Remote ids resolved in this pass, keyed by local id. Lets a dose
	// regimen reference a parent drug created moments earlier.
	ids := make(map[models.UUID]int64)

	for _, family := range models.SyncOrder {
		for _, entry := range pending {
			if entry.Family != family {
				continue
			}
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			abort, err := e.processEntry(ctx, creds, entry, ids, &result)
			if err != nil {
				return result, err
			}
			if abort {
				e.status.Notify()
				return result, nil
			}
		}
	}

	if err := e.repo.SetLastSyncAt(time.Now()); err != nil {
		logging.Error("failed to record sync completion time", err)
	}
	e.status.Notify()

	logging.Info("sync pass complete", map[string]interface{}{
		"attempted":  result.Attempted,
		"synced":     result.Synced,
		"reconciled": result.Reconciled,
		"failed":     result.Failed,
		"skipped":    result.Skipped,
	})
	return result, nil
}

// processEntry reconciles one queue entry. A true return aborts the pass.
func (e *Engine) processEntry(ctx context.Context, creds Credentials, entry *models.QueueEntry, ids map[models.UUID]int64, result *Result) (bool, error) {
	view, disposition, err := e.viewFor(entry, ids)
	if err == sql.ErrNoRows {
		// Record deleted after it was queued.
		return false, e.queue.Remove(entry.ID)
	}
	if err != nil {
		// Local store trouble affects this record only.
		logging.Error("failed to load record for sync", err, map[string]interface{}{
			"family":    string(entry.Family),
			"record_id": string(entry.RecordID),
		})
		result.Skipped++
		return false, nil
	}
	switch disposition {
	case dispositionSkip:
		result.Skipped++
		return false, nil
	case dispositionDrop:
		if err := e.queue.Remove(entry.ID); err != nil {
			return false, err
		}
		result.Skipped++
		return false, nil
	}

	result.Attempted++

	remaining := queue.MaxRetries - entry.RetryCount
	if remaining <= 0 {
		// ListPending purges these, but guard anyway.
		return false, e.queue.Remove(entry.ID)
	}

	notify := func(attemptErr error, _ time.Duration) {
		if _, err := e.queue.RecordAttemptFailure(entry.ID, attemptErr.Error()); err != nil {
			logging.Error("failed to record sync attempt", err, map[string]interface{}{
				"record_id": string(entry.RecordID),
			})
		}
	}

	remoteID, outcome, recErr := e.rec.Reconcile(ctx, creds, view, uint(remaining), notify)
	switch outcome {
	case OutcomeConfirmed, OutcomeReconciled:
		if err := e.repo.MarkSynced(entry.Family, entry.RecordID, remoteID, time.Now()); err != nil {
			return false, err
		}
		if err := e.queue.Remove(entry.ID); err != nil {
			return false, err
		}
		ids[entry.RecordID] = remoteID
		if outcome == OutcomeReconciled {
			result.Reconciled++
		} else {
			result.Synced++
		}
		logging.Info("record synced", map[string]interface{}{
			"family":     string(entry.Family),
			"record_id":  string(entry.RecordID),
			"remote_id":  remoteID,
			"reconciled": outcome == OutcomeReconciled,
		})
		return false, nil

	case OutcomeAuthFailed:
		// Credentials are bad for every remaining record too. Leave all
		// entries untouched, retry budgets included.
		result.AuthFailed = true
		logging.ErrorWithCode("sync halted, authentication failed",
			string(errors.ErrSyncAuthFailed), recErr)
		return true, nil

	case OutcomePermanent:
		if err := e.failPermanently(entry, recErr.Error()); err != nil {
			return false, err
		}
		result.Failed++
		return false, nil

	default: // OutcomeRetryable
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		count, err := e.queue.RecordAttemptFailure(entry.ID, recErr.Error())
		if err != nil {
			return false, err
		}
		if count >= queue.MaxRetries {
			msg := fmt.Sprintf("gave up after %d attempts: %v", count, recErr)
			if err := e.failPermanently(entry, msg); err != nil {
				return false, err
			}
			logging.ErrorWithCode("record exhausted retry budget",
				string(errors.ErrRetriesExhausted), recErr, map[string]interface{}{
					"family":    string(entry.Family),
					"record_id": string(entry.RecordID),
				})
		}
		result.Failed++
		return false, nil
	}
}

// failPermanently drops the queue entry and stamps the record with the
// failure so the UI can surface it. The record stays unsynced.
func (e *Engine) failPermanently(entry *models.QueueEntry, msg string) error {
	if err := e.repo.SetLastError(entry.Family, entry.RecordID, msg); err != nil {
		return err
	}
	return e.queue.Remove(entry.ID)
}

type disposition int

const (
	dispositionSend disposition = iota
	dispositionSkip // leave queued, try again next pass
	dispositionDrop // entry can never sync, remove it
)

// viewFor loads a queue entry's record and builds its wire view.
func (e *Engine) viewFor(entry *models.QueueEntry, ids map[models.UUID]int64) (recordView, disposition, error) {
	switch entry.Family {
	case models.FamilyDispense:
		d, err := e.repo.GetDispense(entry.RecordID)
		if err != nil {
			return recordView{}, dispositionSend, err
		}
		return recordView{
			family:     entry.Family,
			localID:    d.LocalID,
			everSynced: d.EverSynced(),
			remoteID:   d.RemoteID,
			isActive:   d.IsActive,
			payload:    buildDispensePayload(d),
			update: func(id int64) interface{} {
				return &dispenseUpdate{ID: id, IsActive: d.IsActive}
			},
		}, dispositionSend, nil

	case models.FamilyTicketNote:
		n, err := e.repo.GetTicketNote(entry.RecordID)
		if err != nil {
			return recordView{}, dispositionSend, err
		}
		return recordView{
			family:     entry.Family,
			localID:    n.LocalID,
			everSynced: n.EverSynced(),
			remoteID:   n.RemoteID,
			isActive:   true,
			payload:    buildTicketNotePayload(n),
			update: func(id int64) interface{} {
				return &ticketNoteUpdate{ID: id, Content: n.Content}
			},
		}, dispositionSend, nil

	case models.FamilyTicket:
		t, err := e.repo.GetTicket(entry.RecordID)
		if err != nil {
			return recordView{}, dispositionSend, err
		}
		return recordView{
			family:     entry.Family,
			localID:    t.LocalID,
			everSynced: t.EverSynced(),
			remoteID:   t.RemoteID,
			isActive:   true,
			payload:    buildTicketPayload(t),
			update: func(id int64) interface{} {
				return &ticketUpdate{ID: id, Status: t.Status}
			},
		}, dispositionSend, nil

	case models.FamilyPendingDrug:
		d, err := e.repo.GetPendingDrug(entry.RecordID)
		if err != nil {
			return recordView{}, dispositionSend, err
		}
		return recordView{
			family:     entry.Family,
			localID:    d.LocalID,
			everSynced: d.EverSynced(),
			remoteID:   d.RemoteID,
			isActive:   true,
			payload:    buildPendingDrugPayload(d),
			update: func(id int64) interface{} {
				return &pendingDrugUpdate{ID: id, Status: d.Status}
			},
		}, dispositionSend, nil

	case models.FamilyDoseRegimen:
		g, err := e.repo.GetDoseRegimen(entry.RecordID)
		if err != nil {
			return recordView{}, dispositionSend, err
		}
		parentID, disp, err := e.resolveParentDrug(g.DrugLocalID, ids)
		if err != nil || disp != dispositionSend {
			return recordView{}, disp, err
		}
		return recordView{
			family:     entry.Family,
			localID:    g.LocalID,
			everSynced: g.EverSynced(),
			remoteID:   g.RemoteID,
			isActive:   true,
			payload:    buildDoseRegimenPayload(g, parentID),
			update: func(id int64) interface{} {
				return &doseRegimenUpdate{ID: id, Status: g.Status}
			},
		}, dispositionSend, nil
	}
	return recordView{}, dispositionDrop, nil
}

// resolveParentDrug finds the server id for a regimen's parent drug: from
// this pass's identity map, or from the drug row if it synced earlier. An
// unsynced parent defers the regimen; a missing parent orphans it.
func (e *Engine) resolveParentDrug(drugLocalID models.UUID, ids map[models.UUID]int64) (int64, disposition, error) {
	if id, ok := ids[drugLocalID]; ok {
		return id, dispositionSend, nil
	}
	drug, err := e.repo.GetPendingDrug(drugLocalID)
	if err == sql.ErrNoRows {
		logging.Warn("dropping dose regimen, parent drug no longer exists", map[string]interface{}{
			"drug_local_id": string(drugLocalID),
		})
		return 0, dispositionDrop, nil
	}
	if err != nil {
		return 0, dispositionSend, err
	}
	if drug.RemoteID == nil {
		// Parent not on the server yet; the regimen waits for a pass where
		// the drug makes it up first.
		return 0, dispositionSkip, nil
	}
	return *drug.RemoteID, dispositionSend, nil
}

// Stats summarizes store and queue state for the UI.
func (e *Engine) Stats() (models.SyncStats, error) {
	total, synced, err := e.repo.CountRecords()
	if err != nil {
		return models.SyncStats{}, err
	}
	qlen, err := e.queue.Len()
	if err != nil {
		return models.SyncStats{}, err
	}
	return models.SyncStats{
		Total:       total,
		Synced:      synced,
		Unsynced:    total - synced,
		QueueLength: qlen,
	}, nil
}
