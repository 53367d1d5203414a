package sync

import (
	"context"

	"github.com/cenkalti/backoff/v5"

	"github.com/semsproject/sems-client/internal/errors"
	"github.com/semsproject/sems-client/internal/logging"
	"github.com/semsproject/sems-client/internal/models"
)

// Outcome classifies the result of reconciling one record with the server.
type Outcome int

const (
	// OutcomeConfirmed means the server accepted the record as new.
	OutcomeConfirmed Outcome = iota
	// OutcomeReconciled means the server already held the record; local and
	// server copies now agree.
	OutcomeReconciled
	// OutcomeRetryable means all attempts failed with transient errors.
	OutcomeRetryable
	// OutcomePermanent means the server rejected the record; retrying the
	// same payload cannot succeed.
	OutcomePermanent
	// OutcomeAuthFailed means credentials were refused. The caller should
	// stop the pass; no other record will fare better.
	OutcomeAuthFailed
)

// recordView is the family-independent slice of a record the reconciler
// needs: how to reach the server's copy and the local active flag used for
// conflict convergence. payload is the full create body; update builds the
// slim convergence body once the server id is known.
type recordView struct {
	family     models.Family
	localID    models.UUID
	everSynced bool
	remoteID   *int64
	isActive   bool
	payload    interface{}
	update     func(remoteID int64) interface{}
}

// Reconciler pushes a single record to the server and converges on the
// server's copy when the record turns out to already exist there.
type Reconciler struct {
	client *Client
}

// NewReconciler creates a Reconciler over the given client.
func NewReconciler(client *Client) *Reconciler {
	return &Reconciler{client: client}
}

// Reconcile submits one record, retrying transient failures up to
// maxAttempts total calls. notify fires after each failed attempt that will
// be retried. On success the returned remote id is the server's id for this
// record.
func (r *Reconciler) Reconcile(ctx context.Context, creds Credentials, v recordView, maxAttempts uint, notify backoff.Notify) (int64, Outcome, error) {
	op := func() (*Response, error) {
		var resp *Response
		var err error
		if v.everSynced && v.remoteID != nil {
			resp, err = r.client.Update(ctx, creds, v.family, v.update(*v.remoteID))
		} else {
			resp, err = r.client.Create(ctx, creds, v.family, v.payload)
		}
		if err != nil && !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}

	resp, err := withRetry(ctx, op, maxAttempts, notify)
	if err != nil {
		switch errors.Code(err) {
		case errors.ErrSyncAuthFailed:
			return 0, OutcomeAuthFailed, err
		case errors.ErrSyncRejected:
			return 0, OutcomePermanent, err
		default:
			return 0, OutcomeRetryable, err
		}
	}

	// Conflict is signalled by the message, not the success flag; the
	// server reports already-exists as success=false on some routes.
	if IsAlreadyExists(resp.Message) && resp.Record != nil {
		return r.converge(ctx, creds, v, resp.Record)
	}
	if !resp.Success {
		return 0, OutcomePermanent,
			errors.New(errors.ErrSyncRejected, "server reported failure: "+resp.Message)
	}

	remoteID, err := remoteIDFrom(v, resp)
	if err != nil {
		return 0, OutcomePermanent, err
	}
	return remoteID, OutcomeConfirmed, nil
}

// converge handles the duplicate-submission reply. The server's copy wins
// the id; if the active flags disagree, one follow-up update pushes the
// local flag so a record deactivated offline does not resurrect.
func (r *Reconciler) converge(ctx context.Context, creds Credentials, v recordView, remote *RemoteRecord) (int64, Outcome, error) {
	if remote.IsActive != nil && *remote.IsActive != v.isActive {
		logging.Info("record exists on server with differing active flag, updating", map[string]interface{}{
			"family":    string(v.family),
			"record_id": string(v.localID),
			"remote_id": remote.ID,
		})
		if _, err := r.client.Update(ctx, creds, v.family, v.update(remote.ID)); err != nil {
			if errors.Code(err) == errors.ErrSyncAuthFailed {
				return 0, OutcomeAuthFailed, err
			}
			if !IsRetryable(err) {
				return 0, OutcomePermanent, err
			}
			return 0, OutcomeRetryable, err
		}
	}
	return remote.ID, OutcomeReconciled, nil
}

// remoteIDFrom extracts the server id from a success response. Updates may
// omit the record echo; creates may not.
func remoteIDFrom(v recordView, resp *Response) (int64, error) {
	if resp.Record != nil {
		return resp.Record.ID, nil
	}
	if v.remoteID != nil {
		return *v.remoteID, nil
	}
	return 0, errors.New(errors.ErrSyncRejected, "server response missing record id")
}
