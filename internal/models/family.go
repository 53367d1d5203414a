// Package models provides data model definitions for the SEMS sync client.
package models

import "database/sql/driver"

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Family identifies one syncable record family. Families sync in a fixed
// dependency order: records that other families reference must reach the
// server first so their server-assigned ids are known.
type Family string

const (
	FamilyDispense    Family = "dispense"
	FamilyTicketNote  Family = "ticket_note"
	FamilyTicket      Family = "ticket"
	FamilyPendingDrug Family = "pending_drug"
	FamilyDoseRegimen Family = "dose_regimen"
)

// SyncOrder is the fixed family sequencing for one sync pass. Pending drug
// submissions come before their dose regimens so the pass-scoped identity
// map holds the parent's remote id when the child is serialized.
var SyncOrder = []Family{
	FamilyDispense,
	FamilyTicketNote,
	FamilyTicket,
	FamilyPendingDrug,
	FamilyDoseRegimen,
}

// TableName returns the local store table for the family.
func (f Family) TableName() string {
	switch f {
	case FamilyDispense:
		return "dispense_records"
	case FamilyTicketNote:
		return "ticket_notes"
	case FamilyTicket:
		return "tickets"
	case FamilyPendingDrug:
		return "pending_drugs"
	case FamilyDoseRegimen:
		return "pending_dose_regimens"
	}
	return ""
}

// Resource returns the remote REST resource for the family.
func (f Family) Resource() string {
	switch f {
	case FamilyDispense:
		return "dispenses"
	case FamilyTicketNote:
		return "ticket-notes"
	case FamilyTicket:
		return "tickets"
	case FamilyPendingDrug:
		return "temp-drugs"
	case FamilyDoseRegimen:
		return "temp-drug-regimens"
	}
	return ""
}

// Valid reports whether f is a known record family.
func (f Family) Valid() bool {
	return f.TableName() != ""
}
