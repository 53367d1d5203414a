package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/semsproject/sems-client/internal/db"
	"github.com/semsproject/sems-client/internal/errors"
	"github.com/semsproject/sems-client/internal/models"
	"github.com/semsproject/sems-client/internal/sync"
	"github.com/semsproject/sems-client/internal/sync/queue"
	"github.com/semsproject/sems-client/internal/sync/scheduler"
	"github.com/semsproject/sems-client/internal/uuid"
)

// server exposes the daemon's local API to the UI shell.
type server struct {
	repo   *db.Repository
	queue  *queue.Queue
	engine *sync.Engine
	status *sync.StatusPublisher
	sched  *scheduler.Scheduler
	http   *http.Server
}

func newServer(repo *db.Repository, q *queue.Queue, engine *sync.Engine, status *sync.StatusPublisher, sched *scheduler.Scheduler) *server {
	s := &server{
		repo:   repo,
		queue:  q,
		engine: engine,
		status: status,
		sched:  sched,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/sync", s.handleManualSync)
	mux.HandleFunc("POST /api/connectivity", s.handleConnectivity)
	mux.HandleFunc("PUT /api/sync/interval", s.handleInterval)

	mux.HandleFunc("POST /api/records/dispenses", s.handleCreateDispense)
	mux.HandleFunc("POST /api/records/tickets", s.handleCreateTicket)
	mux.HandleFunc("POST /api/records/ticket-notes", s.handleCreateTicketNote)
	mux.HandleFunc("POST /api/records/pending-drugs", s.handleCreatePendingDrug)
	mux.HandleFunc("POST /api/records/dose-regimens", s.handleCreateDoseRegimen)

	mux.HandleFunc("GET /api/records/dispenses/pending", s.handlePendingDispenses)
	mux.HandleFunc("GET /api/records/tickets/pending", s.handlePendingTickets)
	mux.HandleFunc("GET /api/records/ticket-notes/pending", s.handlePendingTicketNotes)
	mux.HandleFunc("GET /api/records/pending-drugs/pending", s.handlePendingPendingDrugs)
	mux.HandleFunc("GET /api/records/dose-regimens/pending", s.handlePendingDoseRegimens)

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.http = &http.Server{Handler: mux}
	return s
}

func (s *server) ListenAndServe(addr string) error {
	s.http.Addr = addr
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  string(errors.Code(err)),
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "semsd"})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.status.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// bearerToken extracts a caller-supplied token so the UI shell can hand
// fresh credentials to a manual sync right after a token rotation.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return ""
}

// handleManualSync runs a pass synchronously, first restoring the retry
// budget of records that exhausted theirs.
func (s *server) handleManualSync(w http.ResponseWriter, r *http.Request) {
	creds := sync.Credentials{Token: viper.GetString("auth_token")}
	if t := bearerToken(r); t != "" {
		creds.Token = t
	}
	result, err := s.engine.RunManual(r.Context(), creds)
	if err != nil {
		if errors.Is(err, errors.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Online bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalid, "bad connectivity payload", err))
		return
	}

	wasOnline := s.status.Online()
	s.status.SetOnline(body.Online)
	if body.Online && !wasOnline {
		s.sched.OnReconnect()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"online": body.Online})
}

func (s *server) handleInterval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalid, "bad interval payload", err))
		return
	}
	s.sched.UpdateInterval(body.Seconds)
	writeJSON(w, http.StatusOK, map[string]int{
		"interval_seconds": int(scheduler.ClampInterval(body.Seconds).Seconds()),
	})
}

// checkLocalID validates a caller-supplied local id. Empty is fine, the
// store assigns one.
func checkLocalID(id models.UUID) error {
	if id == "" {
		return nil
	}
	if err := uuid.Validate(string(id)); err != nil {
		return errors.Wrap(errors.ErrValidation, "bad local_id", err)
	}
	return nil
}

// createRecord persists a record and queues it for sync in one motion.
func (s *server) createRecord(w http.ResponseWriter, family models.Family, localID models.UUID, putErr error) {
	if putErr != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrDatabase, "failed to store record", putErr))
		return
	}
	if err := s.queue.Enqueue(family, localID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.status.Notify()
	writeJSON(w, http.StatusCreated, map[string]string{"local_id": string(localID)})
}

func (s *server) handleCreateDispense(w http.ResponseWriter, r *http.Request) {
	var rec models.DispenseRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalid, "bad dispense payload", err))
		return
	}
	if rec.PharmacistID == "" || rec.DrugID == "" {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrValidation, "pharmacist_id and drug_id are required"))
		return
	}
	if err := checkLocalID(rec.LocalID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec.Synced = false
	rec.SyncedAt = nil
	err := s.repo.PutDispense(&rec)
	s.createRecord(w, models.FamilyDispense, rec.LocalID, err)
}

func (s *server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var t models.Ticket
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalid, "bad ticket payload", err))
		return
	}
	if t.TicketNumber == "" || t.Title == "" {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrValidation, "ticket_number and title are required"))
		return
	}
	if err := checkLocalID(t.LocalID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if t.Status == "" {
		t.Status = "open"
	}
	t.Synced = false
	t.SyncedAt = nil
	err := s.repo.PutTicket(&t)
	s.createRecord(w, models.FamilyTicket, t.LocalID, err)
}

func (s *server) handleCreateTicketNote(w http.ResponseWriter, r *http.Request) {
	var n models.TicketNote
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalid, "bad note payload", err))
		return
	}
	if n.TicketNumber == "" || n.Content == "" {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrValidation, "ticket_number and content are required"))
		return
	}
	if err := checkLocalID(n.LocalID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n.Synced = false
	n.SyncedAt = nil
	err := s.repo.PutTicketNote(&n)
	s.createRecord(w, models.FamilyTicketNote, n.LocalID, err)
}

func (s *server) handleCreatePendingDrug(w http.ResponseWriter, r *http.Request) {
	var d models.PendingDrug
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalid, "bad drug payload", err))
		return
	}
	if d.GenericName == "" {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrValidation, "generic_name is required"))
		return
	}
	if err := checkLocalID(d.LocalID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d.Synced = false
	d.SyncedAt = nil
	err := s.repo.PutPendingDrug(&d)
	s.createRecord(w, models.FamilyPendingDrug, d.LocalID, err)
}

func (s *server) handleCreateDoseRegimen(w http.ResponseWriter, r *http.Request) {
	var g models.PendingDoseRegimen
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalid, "bad regimen payload", err))
		return
	}
	if g.DrugLocalID == "" {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrValidation, "drug_local_id is required"))
		return
	}
	if err := checkLocalID(g.LocalID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// The parent must at least exist locally; it may still be unsynced.
	exists, _, err := s.repo.SyncState(models.FamilyPendingDrug, g.DrugLocalID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrDatabase, "failed to check parent drug", err))
		return
	}
	if !exists {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrRecordNotFound, "parent drug not found"))
		return
	}
	g.Synced = false
	g.SyncedAt = nil
	err = s.repo.PutDoseRegimen(&g)
	s.createRecord(w, models.FamilyDoseRegimen, g.LocalID, err)
}

// The pending listings back the UI's "waiting to sync" views, one per
// family so each screen gets its own record shape.

func writePending(w http.ResponseWriter, count int, records interface{}, err error) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrDatabase, "failed to list pending records", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   count,
		"records": records,
	})
}

func (s *server) handlePendingDispenses(w http.ResponseWriter, r *http.Request) {
	recs, err := s.repo.ListUnsyncedDispenses()
	writePending(w, len(recs), recs, err)
}

func (s *server) handlePendingTickets(w http.ResponseWriter, r *http.Request) {
	recs, err := s.repo.ListUnsyncedTickets()
	writePending(w, len(recs), recs, err)
}

func (s *server) handlePendingTicketNotes(w http.ResponseWriter, r *http.Request) {
	recs, err := s.repo.ListUnsyncedTicketNotes()
	writePending(w, len(recs), recs, err)
}

func (s *server) handlePendingPendingDrugs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.repo.ListUnsyncedPendingDrugs()
	writePending(w, len(recs), recs, err)
}

func (s *server) handlePendingDoseRegimens(w http.ResponseWriter, r *http.Request) {
	recs, err := s.repo.ListUnsyncedDoseRegimens()
	writePending(w, len(recs), recs, err)
}
