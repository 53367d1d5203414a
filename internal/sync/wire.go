// Package sync implements the outbound synchronization engine for the SEMS
// client. Records created offline are pushed to the central server one at a
// time, in family dependency order, with bounded retries and conflict
// convergence for records the server has already seen.
package sync

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/semsproject/sems-client/internal/models"
)

// Response is the server's reply envelope for create and update calls. The
// server reports duplicate submissions as a success with an explanatory
// message rather than an error status.
type Response struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Record  *RemoteRecord `json:"record,omitempty"`
}

// RemoteRecord is the server's copy of a record as echoed in a Response.
type RemoteRecord struct {
	ID       int64  `json:"id"`
	IsActive *bool  `json:"isActive,omitempty"`
	Status   string `json:"status,omitempty"`
}

// IsAlreadyExists reports whether a response message indicates the server
// already holds this record. The match is a case-insensitive substring
// check, the one place in the client that knows the server's phrasing.
func IsAlreadyExists(message string) bool {
	return strings.Contains(strings.ToLower(message), "already exists")
}

func isoTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func isoTimePtr(unix *int64) *string {
	if unix == nil {
		return nil
	}
	s := isoTime(*unix)
	return &s
}

// dispensePayload is the wire form of a dispense record. The client-side
// localId travels with the payload so the server can detect resubmissions
// of a record it already accepted.
type dispensePayload struct {
	LocalID                string          `json:"localId"`
	Timestamp              string          `json:"timestamp"`
	PharmacistID           string          `json:"pharmacistId"`
	PharmacistName         string          `json:"pharmacistName,omitempty"`
	PatientName            string          `json:"patientName,omitempty"`
	PatientAge             *int            `json:"patientAge,omitempty"`
	PatientWeight          *float64        `json:"patientWeight,omitempty"`
	DrugID                 string          `json:"drugId"`
	DrugName               string          `json:"drugName"`
	Dose                   json.RawMessage `json:"dose"`
	SafetyAcknowledgements []string        `json:"safetyAcknowledgements"`
	DeviceID               string          `json:"deviceId,omitempty"`
	PrintedAt              *string         `json:"printedAt,omitempty"`
	IsActive               bool            `json:"isActive"`
}

func buildDispensePayload(d *models.DispenseRecord) *dispensePayload {
	return &dispensePayload{
		LocalID:                string(d.LocalID),
		Timestamp:              isoTime(d.Timestamp),
		PharmacistID:           d.PharmacistID,
		PharmacistName:         d.PharmacistName,
		PatientName:            d.PatientName,
		PatientAge:             d.PatientAge,
		PatientWeight:          d.PatientWeight,
		DrugID:                 d.DrugID,
		DrugName:               d.DrugName,
		Dose:                   d.Dose,
		SafetyAcknowledgements: d.SafetyAcknowledgements,
		DeviceID:               d.DeviceID,
		PrintedAt:              isoTimePtr(d.PrintedAt),
		IsActive:               d.IsActive,
	}
}

// Update bodies carry the server id plus the family's mutable fields.
// Everything else is immutable once the server has accepted the record, so
// resending it would only invite divergence.
type dispenseUpdate struct {
	ID       int64 `json:"id"`
	IsActive bool  `json:"isActive"`
}

type ticketUpdate struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type ticketNoteUpdate struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

type pendingDrugUpdate struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type doseRegimenUpdate struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type ticketPayload struct {
	LocalID      string `json:"localId"`
	TicketNumber string `json:"ticketNumber"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName,omitempty"`
	UserEmail    string `json:"userEmail,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func buildTicketPayload(t *models.Ticket) *ticketPayload {
	return &ticketPayload{
		LocalID:      string(t.LocalID),
		TicketNumber: t.TicketNumber,
		UserID:       t.UserID,
		UserName:     t.UserName,
		UserEmail:    t.UserEmail,
		Title:        t.Title,
		Description:  t.Description,
		Category:     t.Category,
		Priority:     t.Priority,
		Status:       t.Status,
		CreatedAt:    isoTime(t.CreatedAt),
		UpdatedAt:    isoTime(t.UpdatedAt),
	}
}

// ticketNotePayload references the parent ticket by its human-readable
// ticket number, not a server id, so notes sync without waiting on the
// ticket row.
type ticketNotePayload struct {
	LocalID      string `json:"localId"`
	TicketNumber string `json:"ticketNumber"`
	AuthorID     string `json:"authorId"`
	AuthorName   string `json:"authorName,omitempty"`
	Content      string `json:"content"`
	IsAdminNote  bool   `json:"isAdminNote"`
	CreatedAt    string `json:"createdAt"`
}

func buildTicketNotePayload(n *models.TicketNote) *ticketNotePayload {
	return &ticketNotePayload{
		LocalID:      string(n.LocalID),
		TicketNumber: n.TicketNumber,
		AuthorID:     n.AuthorID,
		AuthorName:   n.AuthorName,
		Content:      n.Content,
		IsAdminNote:  n.IsAdminNote,
		CreatedAt:    isoTime(n.CreatedAt),
	}
}

type pendingDrugPayload struct {
	LocalID           string   `json:"localId"`
	GenericName       string   `json:"genericName"`
	TradeNames        []string `json:"tradeNames"`
	Strength          string   `json:"strength"`
	Route             string   `json:"route"`
	Category          string   `json:"category"`
	STGReference      string   `json:"stgReference,omitempty"`
	Contraindications []string `json:"contraindications"`
	Warnings          []string `json:"warnings,omitempty"`
	CreatedBy         string   `json:"createdBy"`
	Status            string   `json:"status"`
	CreatedAt         string   `json:"createdAt"`
}

func buildPendingDrugPayload(d *models.PendingDrug) *pendingDrugPayload {
	return &pendingDrugPayload{
		LocalID:           string(d.LocalID),
		GenericName:       d.GenericName,
		TradeNames:        d.TradeNames,
		Strength:          d.Strength,
		Route:             d.Route,
		Category:          d.Category,
		STGReference:      d.STGReference,
		Contraindications: d.Contraindications,
		Warnings:          d.Warnings,
		CreatedBy:         d.CreatedBy,
		Status:            d.Status,
		CreatedAt:         isoTime(d.CreatedAt),
	}
}

// doseRegimenPayload carries the parent drug's server id. The engine
// resolves it from the identity map built earlier in the same pass, or from
// the parent row when the drug synced in a previous pass.
type doseRegimenPayload struct {
	LocalID      string   `json:"localId"`
	DrugID       int64    `json:"drugId"`
	AgeGroup     string   `json:"ageGroup"`
	AgeMin       *int     `json:"ageMin,omitempty"`
	AgeMax       *int     `json:"ageMax,omitempty"`
	WeightMin    *float64 `json:"weightMin,omitempty"`
	WeightMax    *float64 `json:"weightMax,omitempty"`
	DoseMg       string   `json:"doseMg"`
	Frequency    string   `json:"frequency"`
	Duration     string   `json:"duration"`
	MaxDoseMgDay string   `json:"maxDoseMgDay,omitempty"`
	Route        string   `json:"route,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	CreatedBy    string   `json:"createdBy"`
	Status       string   `json:"status"`
	CreatedAt    string   `json:"createdAt"`
}

func buildDoseRegimenPayload(g *models.PendingDoseRegimen, drugRemoteID int64) *doseRegimenPayload {
	return &doseRegimenPayload{
		LocalID:      string(g.LocalID),
		DrugID:       drugRemoteID,
		AgeGroup:     g.AgeGroup,
		AgeMin:       g.AgeMin,
		AgeMax:       g.AgeMax,
		WeightMin:    g.WeightMin,
		WeightMax:    g.WeightMax,
		DoseMg:       g.DoseMg,
		Frequency:    g.Frequency,
		Duration:     g.Duration,
		MaxDoseMgDay: g.MaxDoseMgDay,
		Route:        g.Route,
		Instructions: g.Instructions,
		CreatedBy:    g.CreatedBy,
		Status:       g.Status,
		CreatedAt:    isoTime(g.CreatedAt),
	}
}
