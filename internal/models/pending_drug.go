package models

// Approval status values shared by PendingDrug and PendingDoseRegimen.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// PendingDrug is a drug submitted by a pharmacist for admin review. It is
// created locally and synced to the server where an administrator approves
// or rejects it.
type PendingDrug struct {
	LocalID           UUID     `db:"local_id" json:"local_id"`
	RemoteID          *int64   `db:"remote_id" json:"remote_id,omitempty"`
	GenericName       string   `db:"generic_name" json:"generic_name"`
	TradeNames        []string `db:"trade_names" json:"trade_names"`
	Strength          string   `db:"strength" json:"strength"`
	Route             string   `db:"route" json:"route"` // oral, iv, im, subcutaneous, topical, inhalation
	Category          string   `db:"category" json:"category"`
	STGReference      string   `db:"stg_reference" json:"stg_reference"`
	Contraindications []string `db:"contraindications" json:"contraindications"`
	Warnings          []string `db:"warnings" json:"warnings,omitempty"`
	CreatedBy         string   `db:"created_by" json:"created_by"`
	Status            string   `db:"status" json:"status"`
	CreatedAt         int64    `db:"created_at" json:"created_at"`
	UpdatedAt         int64    `db:"updated_at" json:"updated_at"`
	Synced            bool     `db:"synced" json:"synced"`
	SyncedAt          *int64   `db:"synced_at" json:"synced_at,omitempty"`
	LastError         string   `db:"last_error" json:"last_error,omitempty"`
}

// TableName returns the table name for PendingDrug.
func (PendingDrug) TableName() string {
	return FamilyPendingDrug.TableName()
}

// EverSynced reports whether the submission has reached the server at least once.
func (p *PendingDrug) EverSynced() bool {
	return p.SyncedAt != nil
}

// PendingDoseRegimen is a dosing regimen attached to a pending drug
// submission. DrugLocalID references the parent's client-generated id; the
// sync engine rewrites it to the parent's server id before the regimen is
// sent, using the remote id resolved earlier in the same pass.
type PendingDoseRegimen struct {
	LocalID      UUID    `db:"local_id" json:"local_id"`
	RemoteID     *int64  `db:"remote_id" json:"remote_id,omitempty"`
	DrugLocalID  UUID    `db:"drug_local_id" json:"drug_local_id"`
	AgeGroup     string  `db:"age_group" json:"age_group"` // adult, pediatric, neonatal
	AgeMin       *int    `db:"age_min" json:"age_min,omitempty"`
	AgeMax       *int    `db:"age_max" json:"age_max,omitempty"`
	WeightMin    *float64 `db:"weight_min" json:"weight_min,omitempty"`
	WeightMax    *float64 `db:"weight_max" json:"weight_max,omitempty"`
	DoseMg       string  `db:"dose_mg" json:"dose_mg"`
	Frequency    string  `db:"frequency" json:"frequency"`
	Duration     string  `db:"duration" json:"duration"`
	MaxDoseMgDay string  `db:"max_dose_mg_day" json:"max_dose_mg_day,omitempty"`
	Route        string  `db:"route" json:"route"`
	Instructions string  `db:"instructions" json:"instructions,omitempty"`
	CreatedBy    string  `db:"created_by" json:"created_by"`
	Status       string  `db:"status" json:"status"`
	CreatedAt    int64   `db:"created_at" json:"created_at"`
	Synced       bool    `db:"synced" json:"synced"`
	SyncedAt     *int64  `db:"synced_at" json:"synced_at,omitempty"`
	LastError    string  `db:"last_error" json:"last_error,omitempty"`
}

// TableName returns the table name for PendingDoseRegimen.
func (PendingDoseRegimen) TableName() string {
	return FamilyDoseRegimen.TableName()
}

// EverSynced reports whether the regimen has reached the server at least once.
func (r *PendingDoseRegimen) EverSynced() bool {
	return r.SyncedAt != nil
}
