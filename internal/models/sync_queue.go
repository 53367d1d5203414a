package models

// QueueEntry tracks retry state for one pending record. An entry exists only
// while its record is unsynced and still has retry budget; entries are
// removed on success, on permanent failure, and lazily when the referenced
// record is gone or already synced.
type QueueEntry struct {
	ID            UUID   `db:"id" json:"id"`
	Family        Family `db:"family" json:"family"`
	RecordID      UUID   `db:"record_id" json:"record_id"`
	RetryCount    int    `db:"retry_count" json:"retry_count"`
	LastAttemptAt int64  `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	Error         string `db:"error" json:"error,omitempty"`
	CreatedAt     int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for QueueEntry.
func (QueueEntry) TableName() string {
	return "sync_queue"
}

// SyncStatus is a derived snapshot of sync health, recomputed on demand.
// PendingCount counts unsynced records in the local store, not queue
// entries, so it stays correct even when queue bookkeeping lags.
type SyncStatus struct {
	IsOnline     bool   `json:"is_online"`
	IsSyncing    bool   `json:"is_syncing"`
	PendingCount int    `json:"pending_count"`
	LastSyncAt   *int64 `json:"last_sync_at,omitempty"`
	ErrorCount   int    `json:"error_count"`
}

// SyncStats summarizes local store sync state for the UI.
type SyncStats struct {
	Total       int `json:"total"`
	Synced      int `json:"synced"`
	Unsynced    int `json:"unsynced"`
	QueueLength int `json:"queue_length"`
}
