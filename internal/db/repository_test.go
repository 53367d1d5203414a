package db

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/semsproject/sems-client/internal/models"
)

// newTestRepo creates an in-memory database with the full schema.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := InitSchema(sqlDB); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return NewRepository(sqlDB)
}

func testDispense(pharmacist string) *models.DispenseRecord {
	age := 34
	return &models.DispenseRecord{
		PharmacistID:           pharmacist,
		PharmacistName:         "A. Okonkwo",
		PatientName:            "J. Doe",
		PatientAge:             &age,
		DrugID:                 "amoxicillin-500",
		DrugName:               "Amoxicillin",
		Dose:                   json.RawMessage(`{"amount":"500mg","frequency":"tds"}`),
		SafetyAcknowledgements: []string{"allergy-check"},
		DeviceID:               "workstation-1",
		IsActive:               true,
	}
}

func TestDispenseRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	rec := testDispense("ph-1")
	if err := repo.PutDispense(rec); err != nil {
		t.Fatalf("PutDispense: %v", err)
	}
	if rec.LocalID == "" {
		t.Fatal("PutDispense did not assign a local id")
	}
	if rec.Timestamp == 0 {
		t.Fatal("PutDispense did not assign a timestamp")
	}

	got, err := repo.GetDispense(rec.LocalID)
	if err != nil {
		t.Fatalf("GetDispense: %v", err)
	}
	if got.DrugName != "Amoxicillin" {
		t.Errorf("DrugName = %q", got.DrugName)
	}
	if got.PatientAge == nil || *got.PatientAge != 34 {
		t.Errorf("PatientAge = %v", got.PatientAge)
	}
	if len(got.SafetyAcknowledgements) != 1 || got.SafetyAcknowledgements[0] != "allergy-check" {
		t.Errorf("SafetyAcknowledgements = %v", got.SafetyAcknowledgements)
	}
	if got.Synced {
		t.Error("new record should not be synced")
	}
	if got.RemoteID != nil {
		t.Errorf("RemoteID = %v, want nil", got.RemoteID)
	}
}

func TestListUnsyncedDispensesOrder(t *testing.T) {
	repo := newTestRepo(t)

	older := testDispense("ph-1")
	older.Timestamp = 1000
	newer := testDispense("ph-2")
	newer.Timestamp = 2000
	if err := repo.PutDispense(newer); err != nil {
		t.Fatal(err)
	}
	if err := repo.PutDispense(older); err != nil {
		t.Fatal(err)
	}

	list, err := repo.ListUnsyncedDispenses()
	if err != nil {
		t.Fatalf("ListUnsyncedDispenses: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d records, want 2", len(list))
	}
	if list[0].LocalID != older.LocalID {
		t.Error("unsynced records not ordered oldest first")
	}
}

func TestListUnsyncedPerFamily(t *testing.T) {
	repo := newTestRepo(t)

	ticket := &models.Ticket{TicketNumber: "TKT-001", UserID: "u1", Title: "Printer jam"}
	note := &models.TicketNote{TicketNumber: "TKT-001", AuthorID: "u1", Content: "still jammed"}
	drug := &models.PendingDrug{GenericName: "Ceftriaxone", CreatedBy: "ph-1"}
	if err := repo.PutTicket(ticket); err != nil {
		t.Fatal(err)
	}
	if err := repo.PutTicketNote(note); err != nil {
		t.Fatal(err)
	}
	if err := repo.PutPendingDrug(drug); err != nil {
		t.Fatal(err)
	}
	regimen := &models.PendingDoseRegimen{DrugLocalID: drug.LocalID, AgeGroup: "adult", DoseMg: "500", CreatedBy: "ph-1"}
	if err := repo.PutDoseRegimen(regimen); err != nil {
		t.Fatal(err)
	}

	tickets, err := repo.ListUnsyncedTickets()
	if err != nil || len(tickets) != 1 || tickets[0].LocalID != ticket.LocalID {
		t.Errorf("tickets = %v (%v)", tickets, err)
	}
	notes, err := repo.ListUnsyncedTicketNotes()
	if err != nil || len(notes) != 1 || notes[0].LocalID != note.LocalID {
		t.Errorf("notes = %v (%v)", notes, err)
	}
	drugs, err := repo.ListUnsyncedPendingDrugs()
	if err != nil || len(drugs) != 1 || drugs[0].LocalID != drug.LocalID {
		t.Errorf("drugs = %v (%v)", drugs, err)
	}
	regimens, err := repo.ListUnsyncedDoseRegimens()
	if err != nil || len(regimens) != 1 || regimens[0].LocalID != regimen.LocalID {
		t.Errorf("regimens = %v (%v)", regimens, err)
	}

	if err := repo.MarkSynced(models.FamilyTicket, ticket.LocalID, 7, time.Now()); err != nil {
		t.Fatal(err)
	}
	tickets, err = repo.ListUnsyncedTickets()
	if err != nil || len(tickets) != 0 {
		t.Errorf("synced ticket still listed: %v (%v)", tickets, err)
	}
}

func TestMarkSynced(t *testing.T) {
	repo := newTestRepo(t)

	rec := testDispense("ph-1")
	rec.LastError = "previous failure"
	if err := repo.PutDispense(rec); err != nil {
		t.Fatal(err)
	}

	at := time.Unix(1700000000, 0)
	if err := repo.MarkSynced(models.FamilyDispense, rec.LocalID, 42, at); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	got, err := repo.GetDispense(rec.LocalID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Synced {
		t.Error("record not marked synced")
	}
	if got.RemoteID == nil || *got.RemoteID != 42 {
		t.Errorf("RemoteID = %v, want 42", got.RemoteID)
	}
	if got.SyncedAt == nil || *got.SyncedAt != 1700000000 {
		t.Errorf("SyncedAt = %v", got.SyncedAt)
	}
	if got.LastError != "" {
		t.Errorf("LastError not cleared: %q", got.LastError)
	}

	list, err := repo.ListUnsyncedDispenses()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("synced record still listed as unsynced")
	}
}

func TestSyncState(t *testing.T) {
	repo := newTestRepo(t)

	exists, synced, err := repo.SyncState(models.FamilyTicket, "missing")
	if err != nil {
		t.Fatalf("SyncState: %v", err)
	}
	if exists || synced {
		t.Error("missing record reported as existing")
	}

	tk := &models.Ticket{
		TicketNumber: "TKT-001",
		UserID:       "u1",
		Title:        "Printer offline",
	}
	if err := repo.PutTicket(tk); err != nil {
		t.Fatal(err)
	}

	exists, synced, err = repo.SyncState(models.FamilyTicket, tk.LocalID)
	if err != nil {
		t.Fatal(err)
	}
	if !exists || synced {
		t.Errorf("exists=%v synced=%v, want true false", exists, synced)
	}

	if err := repo.MarkSynced(models.FamilyTicket, tk.LocalID, 7, time.Now()); err != nil {
		t.Fatal(err)
	}
	_, synced, err = repo.SyncState(models.FamilyTicket, tk.LocalID)
	if err != nil {
		t.Fatal(err)
	}
	if !synced {
		t.Error("record not reported synced")
	}
}

func TestSetLastError(t *testing.T) {
	repo := newTestRepo(t)

	d := &models.PendingDrug{
		GenericName: "Ceftriaxone",
		CreatedBy:   "ph-1",
	}
	if err := repo.PutPendingDrug(d); err != nil {
		t.Fatal(err)
	}
	if d.Status != models.ApprovalPending {
		t.Errorf("default status = %q", d.Status)
	}

	if err := repo.SetLastError(models.FamilyPendingDrug, d.LocalID, "server rejected payload"); err != nil {
		t.Fatalf("SetLastError: %v", err)
	}
	got, err := repo.GetPendingDrug(d.LocalID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastError != "server rejected payload" {
		t.Errorf("LastError = %q", got.LastError)
	}
}

func TestRegimenRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	drug := &models.PendingDrug{GenericName: "Ceftriaxone", CreatedBy: "ph-1"}
	if err := repo.PutPendingDrug(drug); err != nil {
		t.Fatal(err)
	}

	g := &models.PendingDoseRegimen{
		DrugLocalID: drug.LocalID,
		AgeGroup:    "adult",
		DoseMg:      "1000",
		Frequency:   "od",
		Duration:    "7 days",
		CreatedBy:   "ph-1",
	}
	if err := repo.PutDoseRegimen(g); err != nil {
		t.Fatalf("PutDoseRegimen: %v", err)
	}

	got, err := repo.GetDoseRegimen(g.LocalID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DrugLocalID != drug.LocalID {
		t.Errorf("DrugLocalID = %q, want %q", got.DrugLocalID, drug.LocalID)
	}
	if got.AgeMin != nil {
		t.Errorf("AgeMin = %v, want nil", got.AgeMin)
	}
}

func TestCountRecords(t *testing.T) {
	repo := newTestRepo(t)

	a := testDispense("ph-1")
	b := testDispense("ph-2")
	if err := repo.PutDispense(a); err != nil {
		t.Fatal(err)
	}
	if err := repo.PutDispense(b); err != nil {
		t.Fatal(err)
	}
	if err := repo.PutTicketNote(&models.TicketNote{TicketNumber: "TKT-001", AuthorID: "u1", Content: "note"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkSynced(models.FamilyDispense, a.LocalID, 1, time.Now()); err != nil {
		t.Fatal(err)
	}

	total, synced, err := repo.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if total != 3 || synced != 1 {
		t.Errorf("total=%d synced=%d, want 3 1", total, synced)
	}
}

func TestQueueEntryLifecycle(t *testing.T) {
	repo := newTestRepo(t)

	e := &models.QueueEntry{Family: models.FamilyDispense, RecordID: "rec-1"}
	if err := repo.InsertQueueEntry(e); err != nil {
		t.Fatalf("InsertQueueEntry: %v", err)
	}
	if e.ID == "" {
		t.Fatal("no id assigned")
	}

	// Duplicate insert for the same record must not create a second entry
	// or reset retry state.
	if err := repo.BumpQueueRetry(e.ID, "timeout", time.Unix(500, 0)); err != nil {
		t.Fatal(err)
	}
	dup := &models.QueueEntry{Family: models.FamilyDispense, RecordID: "rec-1"}
	if err := repo.InsertQueueEntry(dup); err != nil {
		t.Fatalf("duplicate InsertQueueEntry: %v", err)
	}

	n, err := repo.QueueLength()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("queue length = %d, want 1", n)
	}

	got, err := repo.QueueEntryForRecord(models.FamilyDispense, "rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("entry not found for record")
	}
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1 (duplicate insert reset it)", got.RetryCount)
	}
	if got.Error != "timeout" {
		t.Errorf("Error = %q", got.Error)
	}
	if got.LastAttemptAt != 500 {
		t.Errorf("LastAttemptAt = %d", got.LastAttemptAt)
	}

	errCount, err := repo.QueueErrorCount()
	if err != nil {
		t.Fatal(err)
	}
	if errCount != 1 {
		t.Errorf("QueueErrorCount = %d, want 1", errCount)
	}

	if err := repo.DeleteQueueEntry(got.ID); err != nil {
		t.Fatal(err)
	}
	n, err = repo.QueueLength()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("queue length after delete = %d", n)
	}

	missing, err := repo.QueueEntryForRecord(models.FamilyDispense, "rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("deleted entry still returned")
	}
}

func TestListQueueEntriesOrder(t *testing.T) {
	repo := newTestRepo(t)

	first := &models.QueueEntry{Family: models.FamilyTicket, RecordID: "t1", CreatedAt: 100}
	second := &models.QueueEntry{Family: models.FamilyDispense, RecordID: "d1", CreatedAt: 200}
	if err := repo.InsertQueueEntry(second); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertQueueEntry(first); err != nil {
		t.Fatal(err)
	}

	list, err := repo.ListQueueEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d entries", len(list))
	}
	if list[0].RecordID != "t1" {
		t.Error("entries not ordered by creation time")
	}
}

func TestLastSyncAt(t *testing.T) {
	repo := newTestRepo(t)

	ts, err := repo.LastSyncAt()
	if err != nil {
		t.Fatal(err)
	}
	if ts != nil {
		t.Errorf("LastSyncAt before any pass = %v, want nil", ts)
	}

	at := time.Unix(1700000123, 0)
	if err := repo.SetLastSyncAt(at); err != nil {
		t.Fatalf("SetLastSyncAt: %v", err)
	}
	ts, err = repo.LastSyncAt()
	if err != nil {
		t.Fatal(err)
	}
	if ts == nil || *ts != 1700000123 {
		t.Errorf("LastSyncAt = %v", ts)
	}

	// Overwrite on the next pass.
	if err := repo.SetLastSyncAt(at.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	ts, err = repo.LastSyncAt()
	if err != nil {
		t.Fatal(err)
	}
	if ts == nil || *ts != 1700003723 {
		t.Errorf("LastSyncAt after overwrite = %v", ts)
	}
}

func TestUnknownFamilyRejected(t *testing.T) {
	repo := newTestRepo(t)

	if _, _, err := repo.SyncState("bogus", "x"); err == nil {
		t.Error("SyncState accepted unknown family")
	}
	if err := repo.MarkSynced("bogus", "x", 1, time.Now()); err == nil {
		t.Error("MarkSynced accepted unknown family")
	}
}
