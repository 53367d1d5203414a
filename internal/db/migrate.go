// Package db provides database schema management.
package db

import "database/sql"

// schema holds the full table set for the local record store. Every record
// family carries the same sync bookkeeping columns (remote_id, synced,
// synced_at, last_error) consumed by the sync engine; the queue table keeps
// retry state per pending record.
const schema = `
CREATE TABLE IF NOT EXISTS dispense_records (
	local_id TEXT PRIMARY KEY,
	remote_id INTEGER,
	timestamp INTEGER NOT NULL,
	pharmacist_id TEXT NOT NULL,
	pharmacist_name TEXT NOT NULL DEFAULT '',
	patient_name TEXT NOT NULL DEFAULT '',
	patient_age INTEGER,
	patient_weight REAL,
	drug_id TEXT NOT NULL,
	drug_name TEXT NOT NULL,
	dose TEXT NOT NULL DEFAULT '{}',
	safety_acknowledgements TEXT NOT NULL DEFAULT '[]',
	device_id TEXT NOT NULL DEFAULT '',
	printed_at INTEGER,
	is_active INTEGER NOT NULL DEFAULT 1,
	synced INTEGER NOT NULL DEFAULT 0,
	synced_at INTEGER,
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_dispense_synced ON dispense_records(synced);

CREATE TABLE IF NOT EXISTS tickets (
	local_id TEXT PRIMARY KEY,
	remote_id INTEGER,
	ticket_number TEXT NOT NULL,
	user_id TEXT NOT NULL,
	user_name TEXT NOT NULL DEFAULT '',
	user_email TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'medium',
	status TEXT NOT NULL DEFAULT 'open',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0,
	synced_at INTEGER,
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ticket_synced ON tickets(synced);

CREATE TABLE IF NOT EXISTS ticket_notes (
	local_id TEXT PRIMARY KEY,
	remote_id INTEGER,
	ticket_number TEXT NOT NULL,
	author_id TEXT NOT NULL,
	author_name TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	is_admin_note INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0,
	synced_at INTEGER,
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_note_synced ON ticket_notes(synced);

CREATE TABLE IF NOT EXISTS pending_drugs (
	local_id TEXT PRIMARY KEY,
	remote_id INTEGER,
	generic_name TEXT NOT NULL,
	trade_names TEXT NOT NULL DEFAULT '[]',
	strength TEXT NOT NULL DEFAULT '',
	route TEXT NOT NULL DEFAULT 'oral',
	category TEXT NOT NULL DEFAULT '',
	stg_reference TEXT NOT NULL DEFAULT '',
	contraindications TEXT NOT NULL DEFAULT '[]',
	warnings TEXT NOT NULL DEFAULT '[]',
	created_by TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0,
	synced_at INTEGER,
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_pending_drug_synced ON pending_drugs(synced);

CREATE TABLE IF NOT EXISTS pending_dose_regimens (
	local_id TEXT PRIMARY KEY,
	remote_id INTEGER,
	drug_local_id TEXT NOT NULL,
	age_group TEXT NOT NULL DEFAULT 'adult',
	age_min INTEGER,
	age_max INTEGER,
	weight_min REAL,
	weight_max REAL,
	dose_mg TEXT NOT NULL DEFAULT '',
	frequency TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	max_dose_mg_day TEXT NOT NULL DEFAULT '',
	route TEXT NOT NULL DEFAULT '',
	instructions TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	created_at INTEGER NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0,
	synced_at INTEGER,
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_regimen_synced ON pending_dose_regimens(synced);
CREATE INDEX IF NOT EXISTS idx_regimen_drug ON pending_dose_regimens(drug_local_id);

CREATE TABLE IF NOT EXISTS sync_queue (
	id TEXT PRIMARY KEY,
	family TEXT NOT NULL,
	record_id TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_attempt_at INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	UNIQUE(family, record_id)
);
CREATE INDEX IF NOT EXISTS idx_queue_created ON sync_queue(created_at);

CREATE TABLE IF NOT EXISTS sync_metadata (
	k TEXT PRIMARY KEY,
	v TEXT NOT NULL
);
`

// InitSchema creates all tables if they do not exist. Exported on the bare
// *sql.DB so tests can run against an in-memory database.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
