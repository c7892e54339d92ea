package postgres

import (
	"context"
	"database/sql"
	"time"

	"qech/dispatch-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// History rows are inserted inside the mutating transaction so the state
// change and its audit trail commit together. Nothing in this package ever
// updates or deletes a history row.

func insertTokenHistory(ctx context.Context, tx pgx.Tx, tokenID, action, performedBy, notes string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO queue_history (history_id, token_id, action, performed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), nullIfEmpty(tokenID), action, nullIfEmpty(performedBy), nullIfEmpty(notes), time.Now().UTC())
	return err
}

func insertAppointmentHistory(ctx context.Context, tx pgx.Tx, appointmentID, action, performedBy, notes string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_history (history_id, appointment_id, action, performed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), appointmentID, action, nullIfEmpty(performedBy), nullIfEmpty(notes), time.Now().UTC())
	return err
}

func (s *Store) ListTokenHistory(ctx context.Context, tokenID string) ([]store.AuditEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT history_id, token_id, action, performed_by, notes, created_at
		FROM queue_history
		WHERE token_id = $1
		ORDER BY created_at ASC
	`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows, store.SubjectToken)
}

func (s *Store) ListAppointmentHistory(ctx context.Context, appointmentID string) ([]store.AuditEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT history_id, appointment_id, action, performed_by, notes, created_at
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows, store.SubjectAppointment)
}

func collectHistory(rows pgx.Rows, subjectType string) ([]store.AuditEvent, error) {
	var events []store.AuditEvent
	for rows.Next() {
		var event store.AuditEvent
		var subjectID, performedBy, notes sql.NullString
		if err := rows.Scan(&event.HistoryID, &subjectID, &event.Action, &performedBy, &notes, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.SubjectType = subjectType
		event.SubjectID = stringOrEmpty(subjectID)
		event.PerformedBy = stringOrEmpty(performedBy)
		event.Notes = stringOrEmpty(notes)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
