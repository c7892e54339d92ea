package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qech/dispatch-service/internal/models"
	"qech/dispatch-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `
	a.appointment_id, a.appointment_number, a.request_id, a.department_id, d.code,
	a.patient_name, a.patient_age, a.patient_phone, a.patient_email,
	a.patient_id_number, a.service_type, a.reason, a.priority_type,
	to_char(a.appointment_date, 'YYYY-MM-DD'), to_char(a.appointment_time, 'HH24:MI'),
	a.status, a.created_at, a.updated_at`

func scanAppointment(row rowScanner) (models.Appointment, error) {
	var appt models.Appointment
	var requestID, email, idNumber, serviceType, reason sql.NullString
	var age sql.NullInt32
	err := row.Scan(
		&appt.AppointmentID, &appt.AppointmentNumber, &requestID, &appt.DepartmentID, &appt.DepartmentCode,
		&appt.PatientName, &age, &appt.PatientPhone, &email,
		&idNumber, &serviceType, &reason, &appt.PriorityType,
		&appt.AppointmentDate, &appt.AppointmentTime,
		&appt.Status, &appt.CreatedAt, &appt.UpdatedAt,
	)
	if err != nil {
		return models.Appointment{}, err
	}
	appt.RequestID = stringOrEmpty(requestID)
	appt.PatientAge = intPtr(age)
	appt.PatientEmail = stringOrEmpty(email)
	appt.PatientIDNumber = stringOrEmpty(idNumber)
	appt.ServiceType = stringOrEmpty(serviceType)
	appt.Reason = stringOrEmpty(reason)
	return appt, nil
}

func (s *Store) CreateAppointment(ctx context.Context, input store.CreateAppointmentInput) (models.Appointment, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Appointment{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if input.RequestID != "" {
		existing, found, err2 := findAppointmentByRequestID(ctx, tx, input.RequestID)
		if err2 != nil {
			err = err2
			return models.Appointment{}, false, err
		}
		if found {
			if err = tx.Commit(ctx); err != nil {
				return models.Appointment{}, false, err
			}
			return existing, false, nil
		}
	}

	dept, err := lookupDepartmentTx(ctx, tx, input.DepartmentCode)
	if err != nil {
		return models.Appointment{}, false, err
	}

	if err = s.reserveSlot(ctx, tx, dept.DepartmentID, input.AppointmentDate, input.AppointmentTime); err != nil {
		return models.Appointment{}, false, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	seq, err := nextSequence(ctx, tx, dept.DepartmentID, createdAt.UTC(), scopeAppointmentNumber)
	if err != nil {
		return models.Appointment{}, false, err
	}

	appt := models.Appointment{
		AppointmentID:     uuid.NewString(),
		AppointmentNumber: store.FormatAppointmentNumber(dept.Code, createdAt.UTC(), seq),
		RequestID:         input.RequestID,
		DepartmentID:      dept.DepartmentID,
		DepartmentCode:    dept.Code,
		PatientName:       input.PatientName,
		PatientAge:        input.PatientAge,
		PatientPhone:      input.PatientPhone,
		PatientEmail:      input.PatientEmail,
		PatientIDNumber:   input.PatientIDNumber,
		ServiceType:       input.ServiceType,
		Reason:            input.Reason,
		PriorityType:      input.PriorityType,
		AppointmentDate:   input.AppointmentDate,
		AppointmentTime:   input.AppointmentTime,
		Status:            models.AppointmentPending,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (
			appointment_id, appointment_number, request_id, department_id,
			patient_name, patient_age, patient_phone, patient_email,
			patient_id_number, service_type, reason, priority_type,
			appointment_date, appointment_time, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, appt.AppointmentID, appt.AppointmentNumber, nullIfEmpty(appt.RequestID), appt.DepartmentID,
		appt.PatientName, appt.PatientAge, appt.PatientPhone, nullIfEmpty(appt.PatientEmail),
		nullIfEmpty(appt.PatientIDNumber), nullIfEmpty(appt.ServiceType), nullIfEmpty(appt.Reason), appt.PriorityType,
		appt.AppointmentDate, appt.AppointmentTime, appt.Status, appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		return models.Appointment{}, false, err
	}

	if err = insertAppointmentHistory(ctx, tx, appt.AppointmentID, store.ActionCreated, input.PerformedBy, ""); err != nil {
		return models.Appointment{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Appointment{}, false, err
	}
	return appt, true, nil
}

// reserveSlot serializes concurrent bookings of the same slot: the slot row
// is created on first use and locked FOR UPDATE, then the non-cancelled
// bookings are counted under that lock. The count stays authoritative in the
// appointments table; the slot row is only the mutex.
func (s *Store) reserveSlot(ctx context.Context, tx pgx.Tx, departmentID, date, slotTime string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_slots (department_id, slot_date, slot_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (department_id, slot_date, slot_time) DO NOTHING
	`, departmentID, date, slotTime)
	if err != nil {
		return err
	}
	row := tx.QueryRow(ctx, `
		SELECT 1 FROM appointment_slots
		WHERE department_id = $1 AND slot_date = $2 AND slot_time = $3
		FOR UPDATE
	`, departmentID, date, slotTime)
	var one int
	if err := row.Scan(&one); err != nil {
		return err
	}

	var booked int
	row = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE department_id = $1 AND appointment_date = $2 AND appointment_time = $3
			AND status <> 'cancelled'
	`, departmentID, date, slotTime)
	if err := row.Scan(&booked); err != nil {
		return err
	}
	if booked >= s.slotCapacity {
		return store.ErrSlotFull
	}
	return nil
}

func findAppointmentByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Appointment, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		JOIN departments d ON d.department_id = a.department_id
		WHERE a.request_id = $1
	`, requestID)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, false, nil
		}
		return models.Appointment{}, false, err
	}
	return appt, true, nil
}

func (s *Store) GetAppointment(ctx context.Context, appointmentNumber string) (models.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		JOIN departments d ON d.department_id = a.department_id
		WHERE a.appointment_number = $1
	`, appointmentNumber)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, store.ErrAppointmentNotFound
		}
		return models.Appointment{}, err
	}
	return appt, nil
}

func (s *Store) ListAppointments(ctx context.Context, filter store.ListAppointmentsFilter) ([]models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		JOIN departments d ON d.department_id = a.department_id
		WHERE 1=1
	`
	args := []interface{}{}
	if filter.DepartmentCode != "" {
		args = append(args, filter.DepartmentCode)
		query += fmt.Sprintf(" AND d.code = $%d", len(args))
	}
	if filter.Date != "" {
		args = append(args, filter.Date)
		query += fmt.Sprintf(" AND a.appointment_date = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND a.status = $%d", len(args))
	}
	query += " ORDER BY a.appointment_date ASC, a.appointment_time ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (s *Store) UpdateAppointment(ctx context.Context, input store.UpdateAppointmentInput) (models.Appointment, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Appointment{}, err
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
		WHERE a.appointment_number = $1
		FOR UPDATE OF a
	`, input.AppointmentNumber)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrAppointmentNotFound
		}
		return models.Appointment{}, err
	}

	action := store.ActionUpdated
	if input.Status != "" && input.Status != appt.Status {
		if !store.ValidAppointmentTransition(input.Status, appt.Status) {
			err = store.ErrInvalidState
			return models.Appointment{}, err
		}
		appt.Status = input.Status
		action = input.Status
	}
	if input.Notes != "" {
		appt.Reason = input.Notes
	}
	appt.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, reason = $3, updated_at = $4
		WHERE appointment_id = $1
	`, appt.AppointmentID, appt.Status, nullIfEmpty(appt.Reason), appt.UpdatedAt)
	if err != nil {
		return models.Appointment{}, err
	}

	if err = insertAppointmentHistory(ctx, tx, appt.AppointmentID, action, input.PerformedBy, input.Notes); err != nil {
		return models.Appointment{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Appointment{}, err
	}
	return appt, nil
}

// CancelAppointment marks the appointment cancelled and frees its slot
// capacity. A token already promoted from the appointment is untouched.
func (s *Store) CancelAppointment(ctx context.Context, input store.CancelAppointmentInput) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var appointmentID, status string
	row := tx.QueryRow(ctx, `
		SELECT appointment_id, status
		FROM appointments
		WHERE appointment_number = $1
		FOR UPDATE
	`, input.AppointmentNumber)
	if err = row.Scan(&appointmentID, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrAppointmentNotFound
		}
		return err
	}
	if !store.ValidAppointmentTransition(models.AppointmentCancelled, status) {
		err = store.ErrInvalidState
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled', updated_at = $2
		WHERE appointment_id = $1
	`, appointmentID, time.Now().UTC())
	if err != nil {
		return err
	}

	notes := input.Reason
	if notes == "" {
		notes = "Cancelled by patient"
	}
	if err = insertAppointmentHistory(ctx, tx, appointmentID, store.ActionCancelled, input.PerformedBy, notes); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) AvailableSlots(ctx context.Context, departmentCode, date string) ([]models.Slot, error) {
	dept, err := s.LookupDepartment(ctx, departmentCode)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT to_char(appointment_time, 'HH24:MI'), COUNT(*)
		FROM appointments
		WHERE department_id = $1 AND appointment_date = $2 AND status <> 'cancelled'
		GROUP BY appointment_time
	`, dept.DepartmentID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	booked := map[string]int{}
	for rows.Next() {
		var slotTime string
		var count int
		if err := rows.Scan(&slotTime, &count); err != nil {
			return nil, err
		}
		booked[slotTime] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var slots []models.Slot
	day := time.Date(0, 1, 1, s.openingHour, 0, 0, 0, time.UTC)
	closing := time.Date(0, 1, 1, s.closingHour, 0, 0, 0, time.UTC)
	for t := day; t.Before(closing); t = t.Add(s.slotInterval) {
		key := t.Format("15:04")
		count := booked[key]
		remaining := s.slotCapacity - count
		if remaining < 0 {
			remaining = 0
		}
		slots = append(slots, models.Slot{
			Time:              key,
			Available:         remaining > 0,
			BookedCount:       count,
			RemainingCapacity: remaining,
			MaxCapacity:       s.slotCapacity,
		})
	}
	return slots, nil
}
