// Package db provides CRUD repository operations for the SEMS record families.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/semsproject/sems-client/internal/models"
	"github.com/semsproject/sems-client/internal/uuid"
)

// Repository provides typed access to the local record store. One instance
// is constructed per process and shared by the sync engine, the outbound
// queue, and the status publisher.
type Repository struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate.
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		if err := value.(*sql.Stmt).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func unmarshalStrings(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{}
	}
	return out
}

// =====================================================
// DispenseRecord Operations
// =====================================================

// PutDispense inserts or replaces a dispense record.
func (r *Repository) PutDispense(rec *models.DispenseRecord) error {
	if rec.LocalID == "" {
		rec.LocalID = models.UUID(uuid.New())
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	dose := rec.Dose
	if len(dose) == 0 {
		dose = json.RawMessage("{}")
	}

	query := `
	INSERT OR REPLACE INTO dispense_records (local_id, remote_id, timestamp, pharmacist_id,
		pharmacist_name, patient_name, patient_age, patient_weight, drug_id, drug_name,
		dose, safety_acknowledgements, device_id, printed_at, is_active, synced, synced_at, last_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, rec.LocalID, rec.RemoteID, rec.Timestamp, rec.PharmacistID,
		rec.PharmacistName, rec.PatientName, rec.PatientAge, rec.PatientWeight, rec.DrugID,
		rec.DrugName, string(dose), marshalStrings(rec.SafetyAcknowledgements), rec.DeviceID,
		rec.PrintedAt, rec.IsActive, rec.Synced, rec.SyncedAt, rec.LastError)
	return err
}

const dispenseColumns = `local_id, remote_id, timestamp, pharmacist_id, pharmacist_name,
	patient_name, patient_age, patient_weight, drug_id, drug_name, dose,
	safety_acknowledgements, device_id, printed_at, is_active, synced, synced_at, last_error`

func scanDispense(row interface{ Scan(...interface{}) error }) (*models.DispenseRecord, error) {
	var rec models.DispenseRecord
	var dose, acks string
	err := row.Scan(&rec.LocalID, &rec.RemoteID, &rec.Timestamp, &rec.PharmacistID,
		&rec.PharmacistName, &rec.PatientName, &rec.PatientAge, &rec.PatientWeight,
		&rec.DrugID, &rec.DrugName, &dose, &acks, &rec.DeviceID, &rec.PrintedAt,
		&rec.IsActive, &rec.Synced, &rec.SyncedAt, &rec.LastError)
	if err != nil {
		return nil, err
	}
	rec.Dose = json.RawMessage(dose)
	rec.SafetyAcknowledgements = unmarshalStrings(acks)
	return &rec, nil
}

// GetDispense retrieves a dispense record by local id.
func (r *Repository) GetDispense(localID models.UUID) (*models.DispenseRecord, error) {
	stmt, err := r.PrepareStmt(`SELECT ` + dispenseColumns + ` FROM dispense_records WHERE local_id = ?`)
	if err != nil {
		return nil, err
	}
	return scanDispense(stmt.QueryRow(localID))
}

// ListUnsyncedDispenses returns unsynced dispense records, oldest first.
func (r *Repository) ListUnsyncedDispenses() ([]*models.DispenseRecord, error) {
	rows, err := r.db.Query(`SELECT ` + dispenseColumns + ` FROM dispense_records WHERE synced = 0 ORDER BY timestamp ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DispenseRecord
	for rows.Next() {
		rec, err := scanDispense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =====================================================
// Ticket Operations
// =====================================================

// PutTicket inserts or replaces a ticket.
func (r *Repository) PutTicket(t *models.Ticket) error {
	if t.LocalID == "" {
		t.LocalID = models.UUID(uuid.New())
	}
	now := time.Now().Unix()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	if t.UpdatedAt == 0 {
		t.UpdatedAt = now
	}

	query := `
	INSERT OR REPLACE INTO tickets (local_id, remote_id, ticket_number, user_id, user_name,
		user_email, title, description, category, priority, status, created_at, updated_at,
		synced, synced_at, last_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, t.LocalID, t.RemoteID, t.TicketNumber, t.UserID, t.UserName,
		t.UserEmail, t.Title, t.Description, t.Category, t.Priority, t.Status,
		t.CreatedAt, t.UpdatedAt, t.Synced, t.SyncedAt, t.LastError)
	return err
}

const ticketColumns = `local_id, remote_id, ticket_number, user_id, user_name, user_email,
	title, description, category, priority, status, created_at, updated_at, synced, synced_at, last_error`

func scanTicket(row interface{ Scan(...interface{}) error }) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(&t.LocalID, &t.RemoteID, &t.TicketNumber, &t.UserID, &t.UserName,
		&t.UserEmail, &t.Title, &t.Description, &t.Category, &t.Priority, &t.Status,
		&t.CreatedAt, &t.UpdatedAt, &t.Synced, &t.SyncedAt, &t.LastError)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTicket retrieves a ticket by local id.
func (r *Repository) GetTicket(localID models.UUID) (*models.Ticket, error) {
	stmt, err := r.PrepareStmt(`SELECT ` + ticketColumns + ` FROM tickets WHERE local_id = ?`)
	if err != nil {
		return nil, err
	}
	return scanTicket(stmt.QueryRow(localID))
}

// ListUnsyncedTickets returns unsynced tickets, oldest first.
func (r *Repository) ListUnsyncedTickets() ([]*models.Ticket, error) {
	rows, err := r.db.Query(`SELECT ` + ticketColumns + ` FROM tickets WHERE synced = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =====================================================
// TicketNote Operations
// =====================================================

// PutTicketNote inserts or replaces a ticket note.
func (r *Repository) PutTicketNote(n *models.TicketNote) error {
	if n.LocalID == "" {
		n.LocalID = models.UUID(uuid.New())
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().Unix()
	}

	query := `
	INSERT OR REPLACE INTO ticket_notes (local_id, remote_id, ticket_number, author_id,
		author_name, content, is_admin_note, created_at, synced, synced_at, last_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, n.LocalID, n.RemoteID, n.TicketNumber, n.AuthorID,
		n.AuthorName, n.Content, n.IsAdminNote, n.CreatedAt, n.Synced, n.SyncedAt, n.LastError)
	return err
}

const noteColumns = `local_id, remote_id, ticket_number, author_id, author_name, content,
	is_admin_note, created_at, synced, synced_at, last_error`

func scanNote(row interface{ Scan(...interface{}) error }) (*models.TicketNote, error) {
	var n models.TicketNote
	err := row.Scan(&n.LocalID, &n.RemoteID, &n.TicketNumber, &n.AuthorID, &n.AuthorName,
		&n.Content, &n.IsAdminNote, &n.CreatedAt, &n.Synced, &n.SyncedAt, &n.LastError)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetTicketNote retrieves a ticket note by local id.
func (r *Repository) GetTicketNote(localID models.UUID) (*models.TicketNote, error) {
	stmt, err := r.PrepareStmt(`SELECT ` + noteColumns + ` FROM ticket_notes WHERE local_id = ?`)
	if err != nil {
		return nil, err
	}
	return scanNote(stmt.QueryRow(localID))
}

// ListUnsyncedTicketNotes returns unsynced notes, oldest first.
func (r *Repository) ListUnsyncedTicketNotes() ([]*models.TicketNote, error) {
	rows, err := r.db.Query(`SELECT ` + noteColumns + ` FROM ticket_notes WHERE synced = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TicketNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// =====================================================
// PendingDrug Operations
// =====================================================

// PutPendingDrug inserts or replaces a pending drug submission.
func (r *Repository) PutPendingDrug(d *models.PendingDrug) error {
	if d.LocalID == "" {
		d.LocalID = models.UUID(uuid.New())
	}
	now := time.Now().Unix()
	if d.CreatedAt == 0 {
		d.CreatedAt = now
	}
	if d.UpdatedAt == 0 {
		d.UpdatedAt = now
	}
	if d.Status == "" {
		d.Status = models.ApprovalPending
	}

	query := `
	INSERT OR REPLACE INTO pending_drugs (local_id, remote_id, generic_name, trade_names,
		strength, route, category, stg_reference, contraindications, warnings, created_by,
		status, created_at, updated_at, synced, synced_at, last_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, d.LocalID, d.RemoteID, d.GenericName, marshalStrings(d.TradeNames),
		d.Strength, d.Route, d.Category, d.STGReference, marshalStrings(d.Contraindications),
		marshalStrings(d.Warnings), d.CreatedBy, d.Status, d.CreatedAt, d.UpdatedAt,
		d.Synced, d.SyncedAt, d.LastError)
	return err
}

const drugColumns = `local_id, remote_id, generic_name, trade_names, strength, route, category,
	stg_reference, contraindications, warnings, created_by, status, created_at, updated_at,
	synced, synced_at, last_error`

func scanDrug(row interface{ Scan(...interface{}) error }) (*models.PendingDrug, error) {
	var d models.PendingDrug
	var trades, contras, warns string
	err := row.Scan(&d.LocalID, &d.RemoteID, &d.GenericName, &trades, &d.Strength, &d.Route,
		&d.Category, &d.STGReference, &contras, &warns, &d.CreatedBy, &d.Status,
		&d.CreatedAt, &d.UpdatedAt, &d.Synced, &d.SyncedAt, &d.LastError)
	if err != nil {
		return nil, err
	}
	d.TradeNames = unmarshalStrings(trades)
	d.Contraindications = unmarshalStrings(contras)
	d.Warnings = unmarshalStrings(warns)
	return &d, nil
}

// GetPendingDrug retrieves a pending drug by local id.
func (r *Repository) GetPendingDrug(localID models.UUID) (*models.PendingDrug, error) {
	stmt, err := r.PrepareStmt(`SELECT ` + drugColumns + ` FROM pending_drugs WHERE local_id = ?`)
	if err != nil {
		return nil, err
	}
	return scanDrug(stmt.QueryRow(localID))
}

// ListUnsyncedPendingDrugs returns unsynced drug submissions, oldest first.
func (r *Repository) ListUnsyncedPendingDrugs() ([]*models.PendingDrug, error) {
	rows, err := r.db.Query(`SELECT ` + drugColumns + ` FROM pending_drugs WHERE synced = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PendingDrug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// =====================================================
// PendingDoseRegimen Operations
// =====================================================

// PutDoseRegimen inserts or replaces a pending dose regimen.
func (r *Repository) PutDoseRegimen(g *models.PendingDoseRegimen) error {
	if g.LocalID == "" {
		g.LocalID = models.UUID(uuid.New())
	}
	if g.CreatedAt == 0 {
		g.CreatedAt = time.Now().Unix()
	}
	if g.Status == "" {
		g.Status = models.ApprovalPending
	}

	query := `
	INSERT OR REPLACE INTO pending_dose_regimens (local_id, remote_id, drug_local_id, age_group,
		age_min, age_max, weight_min, weight_max, dose_mg, frequency, duration, max_dose_mg_day,
		route, instructions, created_by, status, created_at, synced, synced_at, last_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, g.LocalID, g.RemoteID, g.DrugLocalID, g.AgeGroup,
		g.AgeMin, g.AgeMax, g.WeightMin, g.WeightMax, g.DoseMg, g.Frequency, g.Duration,
		g.MaxDoseMgDay, g.Route, g.Instructions, g.CreatedBy, g.Status, g.CreatedAt,
		g.Synced, g.SyncedAt, g.LastError)
	return err
}

const regimenColumns = `local_id, remote_id, drug_local_id, age_group, age_min, age_max,
	weight_min, weight_max, dose_mg, frequency, duration, max_dose_mg_day, route,
	instructions, created_by, status, created_at, synced, synced_at, last_error`

func scanRegimen(row interface{ Scan(...interface{}) error }) (*models.PendingDoseRegimen, error) {
	var g models.PendingDoseRegimen
	err := row.Scan(&g.LocalID, &g.RemoteID, &g.DrugLocalID, &g.AgeGroup, &g.AgeMin, &g.AgeMax,
		&g.WeightMin, &g.WeightMax, &g.DoseMg, &g.Frequency, &g.Duration, &g.MaxDoseMgDay,
		&g.Route, &g.Instructions, &g.CreatedBy, &g.Status, &g.CreatedAt,
		&g.Synced, &g.SyncedAt, &g.LastError)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetDoseRegimen retrieves a pending dose regimen by local id.
func (r *Repository) GetDoseRegimen(localID models.UUID) (*models.PendingDoseRegimen, error) {
	stmt, err := r.PrepareStmt(`SELECT ` + regimenColumns + ` FROM pending_dose_regimens WHERE local_id = ?`)
	if err != nil {
		return nil, err
	}
	return scanRegimen(stmt.QueryRow(localID))
}

// ListUnsyncedDoseRegimens returns unsynced regimens, oldest first.
func (r *Repository) ListUnsyncedDoseRegimens() ([]*models.PendingDoseRegimen, error) {
	rows, err := r.db.Query(`SELECT ` + regimenColumns + ` FROM pending_dose_regimens WHERE synced = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PendingDoseRegimen
	for rows.Next() {
		g, err := scanRegimen(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// =====================================================
// Cross-family Sync Bookkeeping
// =====================================================

// SyncState reports whether a record exists and whether it is synced.
// Used by the outbound queue to purge orphaned entries.
func (r *Repository) SyncState(family models.Family, localID models.UUID) (exists, synced bool, err error) {
	if !family.Valid() {
		return false, false, fmt.Errorf("unknown family %q", family)
	}
	query := fmt.Sprintf(`SELECT synced FROM %s WHERE local_id = ?`, family.TableName())
	err = r.db.QueryRow(query, localID).Scan(&synced)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, synced, nil
}

// MarkSynced flags a record as synced, storing the server-assigned id and
// the sync timestamp.
func (r *Repository) MarkSynced(family models.Family, localID models.UUID, remoteID int64, at time.Time) error {
	if !family.Valid() {
		return fmt.Errorf("unknown family %q", family)
	}
	query := fmt.Sprintf(
		`UPDATE %s SET synced = 1, synced_at = ?, remote_id = ?, last_error = '' WHERE local_id = ?`,
		family.TableName())
	_, err := r.db.Exec(query, at.Unix(), remoteID, localID)
	return err
}

// SetLastError attaches an error message to a record for operator visibility.
func (r *Repository) SetLastError(family models.Family, localID models.UUID, msg string) error {
	if !family.Valid() {
		return fmt.Errorf("unknown family %q", family)
	}
	query := fmt.Sprintf(`UPDATE %s SET last_error = ? WHERE local_id = ?`, family.TableName())
	_, err := r.db.Exec(query, msg, localID)
	return err
}

// UnsyncedIDs returns local ids of unsynced records for one family, oldest first.
func (r *Repository) UnsyncedIDs(family models.Family) ([]models.UUID, error) {
	if !family.Valid() {
		return nil, fmt.Errorf("unknown family %q", family)
	}
	orderCol := "created_at"
	if family == models.FamilyDispense {
		orderCol = "timestamp"
	}
	query := fmt.Sprintf(`SELECT local_id FROM %s WHERE synced = 0 ORDER BY %s ASC`, family.TableName(), orderCol)
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []models.UUID
	for rows.Next() {
		var id models.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountRecords returns total and synced record counts across all families.
func (r *Repository) CountRecords() (total, synced int, err error) {
	for _, f := range models.SyncOrder {
		var t, s int
		query := fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(synced), 0) FROM %s`, f.TableName())
		if err := r.db.QueryRow(query).Scan(&t, &s); err != nil {
			return 0, 0, err
		}
		total += t
		synced += s
	}
	return total, synced, nil
}

// =====================================================
// Queue Entry Operations
// =====================================================

// InsertQueueEntry adds a queue entry unless one already exists for the
// record. Existing entries keep their retry state.
func (r *Repository) InsertQueueEntry(e *models.QueueEntry) error {
	if e.ID == "" {
		e.ID = models.UUID(uuid.New())
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	query := `
	INSERT OR IGNORE INTO sync_queue (id, family, record_id, retry_count, last_attempt_at, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, e.ID, e.Family, e.RecordID, e.RetryCount, e.LastAttemptAt, e.Error, e.CreatedAt)
	return err
}

const queueColumns = `id, family, record_id, retry_count, last_attempt_at, error, created_at`

func scanQueueEntry(row interface{ Scan(...interface{}) error }) (*models.QueueEntry, error) {
	var e models.QueueEntry
	err := row.Scan(&e.ID, &e.Family, &e.RecordID, &e.RetryCount, &e.LastAttemptAt, &e.Error, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetQueueEntry retrieves a queue entry by id.
func (r *Repository) GetQueueEntry(id models.UUID) (*models.QueueEntry, error) {
	stmt, err := r.PrepareStmt(`SELECT ` + queueColumns + ` FROM sync_queue WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	return scanQueueEntry(stmt.QueryRow(id))
}

// QueueEntryForRecord retrieves the entry referencing a record, if any.
func (r *Repository) QueueEntryForRecord(family models.Family, recordID models.UUID) (*models.QueueEntry, error) {
	stmt, err := r.PrepareStmt(`SELECT ` + queueColumns + ` FROM sync_queue WHERE family = ? AND record_id = ?`)
	if err != nil {
		return nil, err
	}
	e, err := scanQueueEntry(stmt.QueryRow(family, recordID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// ListQueueEntries returns all entries, oldest first.
func (r *Repository) ListQueueEntries() ([]*models.QueueEntry, error) {
	rows, err := r.db.Query(`SELECT ` + queueColumns + ` FROM sync_queue ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BumpQueueRetry increments an entry's retry count and stores the failure.
func (r *Repository) BumpQueueRetry(id models.UUID, errMsg string, at time.Time) error {
	_, err := r.db.Exec(
		`UPDATE sync_queue SET retry_count = retry_count + 1, last_attempt_at = ?, error = ? WHERE id = ?`,
		at.Unix(), errMsg, id)
	return err
}

// DeleteQueueEntry removes a queue entry.
func (r *Repository) DeleteQueueEntry(id models.UUID) error {
	_, err := r.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

// QueueLength returns the number of queue entries.
func (r *Repository) QueueLength() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&n)
	return n, err
}

// QueueErrorCount returns the number of entries carrying an error.
func (r *Repository) QueueErrorCount() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sync_queue WHERE error <> ''`).Scan(&n)
	return n, err
}

// =====================================================
// Sync Metadata
// =====================================================

// LastSyncAt returns the unix timestamp of the last completed pass, or nil.
func (r *Repository) LastSyncAt() (*int64, error) {
	var v string
	err := r.db.QueryRow(`SELECT v FROM sync_metadata WHERE k = 'last_sync_at'`).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ts int64
	if _, err := fmt.Sscanf(v, "%d", &ts); err != nil {
		return nil, nil
	}
	return &ts, nil
}

// SetLastSyncAt stores the timestamp of the last completed pass.
func (r *Repository) SetLastSyncAt(at time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO sync_metadata (k, v) VALUES ('last_sync_at', ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		fmt.Sprintf("%d", at.Unix()))
	return err
}
