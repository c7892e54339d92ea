package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qech/dispatch-service/internal/models"
	"qech/dispatch-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PromoteDue lifts appointments whose time has arrived (within the
// configured window) into the live queue. The scan is idempotent: each
// appointment is re-locked and its status re-checked inside its own
// transaction, so concurrent or repeated scans promote it at most once.
func (s *Store) PromoteDue(ctx context.Context, input store.PromoteInput) (store.PromotionResult, error) {
	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	cutoff := now.Add(s.promotionWindow)

	query := `
		SELECT a.appointment_id, a.appointment_number
		FROM appointments a
		JOIN departments d ON d.department_id = a.department_id
		WHERE a.status IN ('pending','confirmed')
			AND a.appointment_date + a.appointment_time <= $1
	`
	args := []interface{}{cutoff}
	if input.DepartmentCode != "" {
		query += " AND d.code = $2"
		args = append(args, input.DepartmentCode)
	}
	query += " ORDER BY a.appointment_date ASC, a.appointment_time ASC, a.appointment_id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return store.PromotionResult{}, err
	}
	type candidate struct {
		id     string
		number string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.number); err != nil {
			rows.Close()
			return store.PromotionResult{}, err
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return store.PromotionResult{}, err
	}

	result := store.PromotionResult{Errors: []string{}}
	for _, c := range candidates {
		promoted, err := s.promoteOne(ctx, c.id, input.PerformedBy, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to promote appointment %s: %v", c.number, err))
			continue
		}
		if promoted {
			result.Promoted++
		}
	}
	return result, nil
}

func (s *Store) promoteOne(ctx context.Context, appointmentID, performedBy string, now time.Time) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		JOIN departments d ON d.department_id = a.department_id
		WHERE a.appointment_id = $1
		FOR UPDATE OF a
	`, appointmentID)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrAppointmentNotFound
		}
		return false, err
	}
	if appt.Status != models.AppointmentPending && appt.Status != models.AppointmentConfirmed {
		// Another scan got here first; nothing to do.
		if err = tx.Commit(ctx); err != nil {
			return false, err
		}
		return false, nil
	}

	existingNumber, found, err := findLiveToken(ctx, tx, appt.PatientPhone, appt.DepartmentID, now)
	if err != nil {
		return false, err
	}

	notes := fmt.Sprintf("Promoted from appointment %s", appt.AppointmentNumber)
	if found {
		if err = markQueued(ctx, tx, appt.AppointmentID, performedBy,
			fmt.Sprintf("Linked to existing queue token %s", existingNumber)); err != nil {
			return false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	day := now.UTC()
	seq, err := nextSequence(ctx, tx, appt.DepartmentID, day, scopeTokenNumber)
	if err != nil {
		return false, err
	}
	position, err := nextSequence(ctx, tx, appt.DepartmentID, day, scopeQueuePosition)
	if err != nil {
		return false, err
	}

	tokenID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO queue_tokens (
			token_id, token_number, department_id, patient_name, patient_age,
			patient_phone, patient_email, patient_id_number, service_type,
			priority_type, queue_position, status, appointment_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, tokenID, store.FormatTokenNumber(appt.DepartmentCode, day, seq), appt.DepartmentID,
		appt.PatientName, appt.PatientAge, appt.PatientPhone, nullIfEmpty(appt.PatientEmail),
		nullIfEmpty(appt.PatientIDNumber), nullIfEmpty(appt.ServiceType), appt.PriorityType,
		position, models.StatusWaiting, appt.AppointmentID, now)
	if err != nil {
		return false, err
	}

	if err = insertTokenHistory(ctx, tx, tokenID, store.ActionCreated, performedBy, notes); err != nil {
		return false, err
	}
	if err = markQueued(ctx, tx, appt.AppointmentID, performedBy, notes); err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// findLiveToken checks for a waiting or serving token created today for the
// same patient phone and department, which marks the appointment as already
// represented in the queue.
func findLiveToken(ctx context.Context, tx pgx.Tx, patientPhone, departmentID string, now time.Time) (string, bool, error) {
	var tokenNumber string
	row := tx.QueryRow(ctx, `
		SELECT token_number
		FROM queue_tokens
		WHERE patient_phone = $1 AND department_id = $2
			AND status IN ('waiting','serving')
			AND created_at::date = $3::date
		LIMIT 1
	`, patientPhone, departmentID, now.Format("2006-01-02"))
	if err := row.Scan(&tokenNumber); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return tokenNumber, true, nil
}

func markQueued(ctx context.Context, tx pgx.Tx, appointmentID, performedBy, notes string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'queued', updated_at = $2
		WHERE appointment_id = $1
	`, appointmentID, time.Now().UTC())
	if err != nil {
		return err
	}
	return insertAppointmentHistory(ctx, tx, appointmentID, store.ActionQueued, performedBy, notes)
}
