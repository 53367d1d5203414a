package models

import (
	"encoding/json"
	"time"
)

// DispenseRecord is a dispense event captured at the counter. Records are
// created locally (possibly offline) and pushed to the server by the sync
// engine; RemoteID stays nil until the server has acknowledged the record.
type DispenseRecord struct {
	LocalID                UUID            `db:"local_id" json:"local_id"`
	RemoteID               *int64          `db:"remote_id" json:"remote_id,omitempty"`
	Timestamp              int64           `db:"timestamp" json:"timestamp"`
	PharmacistID           string          `db:"pharmacist_id" json:"pharmacist_id"`
	PharmacistName         string          `db:"pharmacist_name" json:"pharmacist_name,omitempty"`
	PatientName            string          `db:"patient_name" json:"patient_name,omitempty"`
	PatientAge             *int            `db:"patient_age" json:"patient_age,omitempty"`
	PatientWeight          *float64        `db:"patient_weight" json:"patient_weight,omitempty"`
	DrugID                 string          `db:"drug_id" json:"drug_id"`
	DrugName               string          `db:"drug_name" json:"drug_name"`
	Dose                   json.RawMessage `db:"dose" json:"dose"`
	SafetyAcknowledgements []string        `db:"safety_acknowledgements" json:"safety_acknowledgements"`
	DeviceID               string          `db:"device_id" json:"device_id"`
	PrintedAt              *int64          `db:"printed_at" json:"printed_at,omitempty"`
	IsActive               bool            `db:"is_active" json:"is_active"`
	Synced                 bool            `db:"synced" json:"synced"`
	SyncedAt               *int64          `db:"synced_at" json:"synced_at,omitempty"`
	LastError              string          `db:"last_error" json:"last_error,omitempty"`
}

// TableName returns the table name for DispenseRecord.
func (DispenseRecord) TableName() string {
	return FamilyDispense.TableName()
}

// TimestampTime returns the capture timestamp as time.Time.
func (d *DispenseRecord) TimestampTime() time.Time {
	return time.Unix(d.Timestamp, 0)
}

// EverSynced reports whether the record has reached the server at least once.
// It drives the create-vs-update verb choice during reconciliation.
func (d *DispenseRecord) EverSynced() bool {
	return d.SyncedAt != nil
}
