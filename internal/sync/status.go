package sync

import (
	gosync "sync"

	"github.com/semsproject/sems-client/internal/db"
	"github.com/semsproject/sems-client/internal/logging"
	"github.com/semsproject/sems-client/internal/models"
)

// StatusPublisher derives sync status snapshots and fans them out to
// subscribers. Pending counts come from the record store, not the queue, so
// a record that exhausted its retries still shows as pending.
type StatusPublisher struct {
	repo *db.Repository

	mu      gosync.Mutex
	online  bool
	syncing bool
	subs    map[int]chan models.SyncStatus
	nextID  int
}

// NewStatusPublisher creates a publisher. The client starts out assumed
// online; connectivity reports adjust the flag.
func NewStatusPublisher(repo *db.Repository) *StatusPublisher {
	return &StatusPublisher{
		repo:   repo,
		online: true,
		subs:   make(map[int]chan models.SyncStatus),
	}
}

// Snapshot computes the current status from the store.
func (p *StatusPublisher) Snapshot() (models.SyncStatus, error) {
	total, synced, err := p.repo.CountRecords()
	if err != nil {
		return models.SyncStatus{}, err
	}
	errCount, err := p.repo.QueueErrorCount()
	if err != nil {
		return models.SyncStatus{}, err
	}
	lastSync, err := p.repo.LastSyncAt()
	if err != nil {
		return models.SyncStatus{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return models.SyncStatus{
		IsOnline:     p.online,
		IsSyncing:    p.syncing,
		PendingCount: total - synced,
		LastSyncAt:   lastSync,
		ErrorCount:   errCount,
	}, nil
}

// SetOnline records a connectivity change and notifies subscribers.
func (p *StatusPublisher) SetOnline(online bool) {
	p.mu.Lock()
	changed := p.online != online
	p.online = online
	p.mu.Unlock()
	if changed {
		p.Notify()
	}
}

// Online reports the current connectivity flag.
func (p *StatusPublisher) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// SetSyncing flags a pass as running and notifies subscribers.
func (p *StatusPublisher) SetSyncing(syncing bool) {
	p.mu.Lock()
	p.syncing = syncing
	p.mu.Unlock()
	p.Notify()
}

// Subscribe registers for status updates. The returned cancel function must
// be called to release the subscription.
func (p *StatusPublisher) Subscribe() (<-chan models.SyncStatus, func()) {
	ch := make(chan models.SyncStatus, 8)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Notify pushes a fresh snapshot to all subscribers. Slow subscribers miss
// updates rather than blocking the engine.
func (p *StatusPublisher) Notify() {
	status, err := p.Snapshot()
	if err != nil {
		logging.Error("failed to compute sync status", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- status:
		default:
		}
	}
}
