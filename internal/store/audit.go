package store

import "time"

// AuditEvent is one append-only history row. Rows are written inside the
// same transaction as the state change they record and are never updated
// or deleted afterwards.
type AuditEvent struct {
	HistoryID   string    `json:"history_id"`
	SubjectType string    `json:"subject_type"`
	SubjectID   string    `json:"subject_id,omitempty"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	SubjectToken       = "token"
	SubjectAppointment = "appointment"
)

const (
	ActionCreated    = "created"
	ActionCalled     = "called"
	ActionCompleted  = "completed"
	ActionCancelled  = "cancelled"
	ActionReassigned = "reassigned"
	ActionQueued     = "queued"
	ActionUpdated    = "updated"
	ActionConfirmed  = "confirmed"
	ActionPaused     = "queue_paused"
	ActionResumed    = "queue_resumed"
)
