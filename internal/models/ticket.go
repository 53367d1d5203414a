package models

// Ticket is a support ticket raised from the dispensing workstation.
type Ticket struct {
	LocalID      UUID   `db:"local_id" json:"local_id"`
	RemoteID     *int64 `db:"remote_id" json:"remote_id,omitempty"`
	TicketNumber string `db:"ticket_number" json:"ticket_number"`
	UserID       string `db:"user_id" json:"user_id"`
	UserName     string `db:"user_name" json:"user_name"`
	UserEmail    string `db:"user_email" json:"user_email,omitempty"`
	Title        string `db:"title" json:"title"`
	Description  string `db:"description" json:"description"`
	Category     string `db:"category" json:"category"`
	Priority     string `db:"priority" json:"priority"`
	Status       string `db:"status" json:"status"` // open, in_progress, resolved, closed
	CreatedAt    int64  `db:"created_at" json:"created_at"`
	UpdatedAt    int64  `db:"updated_at" json:"updated_at"`
	Synced       bool   `db:"synced" json:"synced"`
	SyncedAt     *int64 `db:"synced_at" json:"synced_at,omitempty"`
	LastError    string `db:"last_error" json:"last_error,omitempty"`
}

// TableName returns the table name for Ticket.
func (Ticket) TableName() string {
	return FamilyTicket.TableName()
}

// EverSynced reports whether the ticket has reached the server at least once.
func (t *Ticket) EverSynced() bool {
	return t.SyncedAt != nil
}

// TicketNote is a comment attached to a ticket. Notes carry the ticket's
// number rather than a server id, so they can sync independently of the
// ticket row itself.
type TicketNote struct {
	LocalID      UUID   `db:"local_id" json:"local_id"`
	RemoteID     *int64 `db:"remote_id" json:"remote_id,omitempty"`
	TicketNumber string `db:"ticket_number" json:"ticket_number"`
	AuthorID     string `db:"author_id" json:"author_id"`
	AuthorName   string `db:"author_name" json:"author_name"`
	Content      string `db:"content" json:"content"`
	IsAdminNote  bool   `db:"is_admin_note" json:"is_admin_note"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
	Synced       bool   `db:"synced" json:"synced"`
	SyncedAt     *int64 `db:"synced_at" json:"synced_at,omitempty"`
	LastError    string `db:"last_error" json:"last_error,omitempty"`
}

// TableName returns the table name for TicketNote.
func (TicketNote) TableName() string {
	return FamilyTicketNote.TableName()
}

// EverSynced reports whether the note has reached the server at least once.
func (n *TicketNote) EverSynced() bool {
	return n.SyncedAt != nil
}
