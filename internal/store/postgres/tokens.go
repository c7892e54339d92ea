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

const tokenColumns = `
	t.token_id, t.token_number, t.request_id, t.department_id, d.code,
	t.patient_name, t.patient_age, t.patient_phone, t.patient_email,
	t.patient_id_number, t.patient_address, t.service_type, t.priority_type,
	t.queue_position, t.status, t.appointment_id, t.created_at, t.called_at,
	t.completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (models.Token, error) {
	var token models.Token
	var requestID, email, idNumber, address, serviceType, appointmentID sql.NullString
	var age sql.NullInt32
	var phone sql.NullString
	var calledAt, completedAt sql.NullTime
	err := row.Scan(
		&token.TokenID, &token.TokenNumber, &requestID, &token.DepartmentID, &token.DepartmentCode,
		&token.PatientName, &age, &phone, &email,
		&idNumber, &address, &serviceType, &token.PriorityType,
		&token.QueuePosition, &token.Status, &appointmentID, &token.CreatedAt, &calledAt,
		&completedAt,
	)
	if err != nil {
		return models.Token{}, err
	}
	token.RequestID = stringOrEmpty(requestID)
	token.PatientAge = intPtr(age)
	token.PatientPhone = stringOrEmpty(phone)
	token.PatientEmail = stringOrEmpty(email)
	token.PatientIDNumber = stringOrEmpty(idNumber)
	token.PatientAddress = stringOrEmpty(address)
	token.ServiceType = stringOrEmpty(serviceType)
	token.AppointmentID = stringOrEmpty(appointmentID)
	token.CalledAt = nullTimePtr(calledAt)
	token.CompletedAt = nullTimePtr(completedAt)
	return token, nil
}

func (s *Store) CreateToken(ctx context.Context, input store.CreateTokenInput) (models.Token, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Token{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if input.RequestID != "" {
		existing, found, err2 := findTokenByRequestID(ctx, tx, input.RequestID)
		if err2 != nil {
			err = err2
			return models.Token{}, false, err
		}
		if found {
			if err = tx.Commit(ctx); err != nil {
				return models.Token{}, false, err
			}
			return existing, false, nil
		}
	}

	dept, err := lookupDepartmentTx(ctx, tx, input.DepartmentCode)
	if err != nil {
		return models.Token{}, false, err
	}
	if !dept.Active {
		err = store.ErrDepartmentPaused
		return models.Token{}, false, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	day := createdAt.UTC()

	seq, err := nextSequence(ctx, tx, dept.DepartmentID, day, scopeTokenNumber)
	if err != nil {
		return models.Token{}, false, err
	}
	position, err := nextSequence(ctx, tx, dept.DepartmentID, day, scopeQueuePosition)
	if err != nil {
		return models.Token{}, false, err
	}
	tokenNumber := store.FormatTokenNumber(dept.Code, day, seq)

	token := models.Token{
		TokenID:         uuid.NewString(),
		TokenNumber:     tokenNumber,
		RequestID:       input.RequestID,
		DepartmentID:    dept.DepartmentID,
		DepartmentCode:  dept.Code,
		PatientName:     input.PatientName,
		PatientAge:      input.PatientAge,
		PatientPhone:    input.PatientPhone,
		PatientEmail:    input.PatientEmail,
		PatientIDNumber: input.PatientIDNumber,
		PatientAddress:  input.PatientAddress,
		ServiceType:     input.ServiceType,
		PriorityType:    input.PriorityType,
		QueuePosition:   int(position),
		Status:          models.StatusWaiting,
		CreatedAt:       createdAt,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO queue_tokens (
			token_id, token_number, request_id, department_id, patient_name,
			patient_age, patient_phone, patient_email, patient_id_number,
			patient_address, service_type, priority_type, queue_position,
			status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, token.TokenID, token.TokenNumber, nullIfEmpty(token.RequestID), token.DepartmentID, token.PatientName,
		token.PatientAge, nullIfEmpty(token.PatientPhone), nullIfEmpty(token.PatientEmail), nullIfEmpty(token.PatientIDNumber),
		nullIfEmpty(token.PatientAddress), nullIfEmpty(token.ServiceType), token.PriorityType, token.QueuePosition,
		token.Status, token.CreatedAt)
	if err != nil {
		return models.Token{}, false, err
	}

	if err = insertTokenHistory(ctx, tx, token.TokenID, store.ActionCreated, input.PerformedBy, ""); err != nil {
		return models.Token{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, false, err
	}
	return token, true, nil
}

func findTokenByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Token, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM queue_tokens t
		JOIN departments d ON d.department_id = t.department_id
		WHERE t.request_id = $1
	`, requestID)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Token{}, false, nil
		}
		return models.Token{}, false, err
	}
	return token, true, nil
}

func (s *Store) GetToken(ctx context.Context, tokenID string) (models.Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM queue_tokens t
		JOIN departments d ON d.department_id = t.department_id
		WHERE t.token_id = $1
	`, tokenID)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Token{}, store.ErrTokenNotFound
		}
		return models.Token{}, err
	}
	return token, nil
}

func (s *Store) QueueStatus(ctx context.Context, departmentCode string) ([]models.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM queue_tokens t
		JOIN departments d ON d.department_id = t.department_id
		WHERE t.status IN ('waiting','serving')
	`
	args := []interface{}{}
	if departmentCode != "" {
		query += " AND d.code = $1"
		args = append(args, departmentCode)
	}
	query += " ORDER BY d.code ASC, " + priorityOrderExpr("t.priority_type") + " DESC, t.queue_position ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// CallNext claims the highest-priority waiting token for the department.
// The claim is a single conditional update over a SKIP LOCKED selection, so
// two concurrent staff callers can never win the same token; a caller that
// loses a row simply claims the next one or reports an empty queue.
func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.Token, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Token{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	dept, err := lookupDepartmentTx(ctx, tx, input.DepartmentCode)
	if err != nil {
		return models.Token{}, err
	}
	if !dept.Active {
		err = store.ErrDepartmentPaused
		return models.Token{}, err
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	query := `
		WITH next_token AS (
			SELECT token_id
			FROM queue_tokens
			WHERE department_id = $1 AND status = 'waiting'
			ORDER BY ` + priorityOrderExpr("priority_type") + ` DESC, queue_position ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE queue_tokens t
		SET status = 'serving',
			called_at = $2
		FROM next_token, departments d
		WHERE t.token_id = next_token.token_id AND d.department_id = t.department_id
		RETURNING ` + tokenColumns

	row := tx.QueryRow(ctx, query, dept.DepartmentID, calledAt)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrQueueEmpty
		}
		return models.Token{}, err
	}

	if err = insertTokenHistory(ctx, tx, token.TokenID, store.ActionCalled, input.PerformedBy, ""); err != nil {
		return models.Token{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, err
	}
	return token, nil
}

func (s *Store) CompleteToken(ctx context.Context, input store.TokenActionInput) (models.Token, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Token{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	completedAt := input.OccurredAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		UPDATE queue_tokens t
		SET status = 'completed',
			completed_at = $2
		FROM departments d
		WHERE t.token_id = $1 AND d.department_id = t.department_id
			AND t.status IN ('waiting','serving')
		RETURNING `+tokenColumns, input.TokenID, completedAt)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyMissingToken(ctx, tx, input.TokenID)
		}
		return models.Token{}, err
	}

	if err = insertTokenHistory(ctx, tx, token.TokenID, store.ActionCompleted, input.PerformedBy, ""); err != nil {
		return models.Token{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, err
	}
	return token, nil
}

// CancelToken withdraws a waiting token from the queue. Serving tokens
// cannot be cancelled; the counter finishes or reassigns them instead.
func (s *Store) CancelToken(ctx context.Context, input store.TokenActionInput) (models.Token, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Token{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		UPDATE queue_tokens t
		SET status = 'cancelled'
		FROM departments d
		WHERE t.token_id = $1 AND d.department_id = t.department_id
			AND t.status = 'waiting'
		RETURNING `+tokenColumns, input.TokenID)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyMissingToken(ctx, tx, input.TokenID)
		}
		return models.Token{}, err
	}

	if err = insertTokenHistory(ctx, tx, token.TokenID, store.ActionCancelled, input.PerformedBy, ""); err != nil {
		return models.Token{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, err
	}
	return token, nil
}

// classifyMissingToken distinguishes an absent token from one in a state
// the action does not allow, after a conditional update matched no rows.
func classifyMissingToken(ctx context.Context, tx pgx.Tx, tokenID string) error {
	var status string
	row := tx.QueryRow(ctx, `
		SELECT status FROM queue_tokens WHERE token_id = $1
	`, tokenID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrTokenNotFound
		}
		return err
	}
	return store.ErrInvalidState
}

// ReassignToken moves a waiting or serving token into another department's
// waiting pool with a freshly allocated position. The previous position is
// never reused.
func (s *Store) ReassignToken(ctx context.Context, input store.ReassignInput) (models.Token, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Token{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	target, err := lookupDepartmentTx(ctx, tx, input.NewDepartmentCode)
	if err != nil {
		return models.Token{}, err
	}

	var status, fromCode string
	row := tx.QueryRow(ctx, `
		SELECT t.status, d.code
		FROM queue_tokens t
		JOIN departments d ON d.department_id = t.department_id
		WHERE t.token_id = $1
		FOR UPDATE OF t
	`, input.TokenID)
	if err = row.Scan(&status, &fromCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTokenNotFound
		}
		return models.Token{}, err
	}
	if !store.ValidTokenTransition("reassign", status) {
		err = store.ErrInvalidState
		return models.Token{}, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	position, err := nextSequence(ctx, tx, target.DepartmentID, occurredAt.UTC(), scopeQueuePosition)
	if err != nil {
		return models.Token{}, err
	}

	row = tx.QueryRow(ctx, `
		UPDATE queue_tokens t
		SET department_id = $2,
			queue_position = $3,
			status = 'waiting',
			called_at = NULL
		FROM departments d
		WHERE t.token_id = $1 AND d.department_id = $2
		RETURNING `+tokenColumns, input.TokenID, target.DepartmentID, position)
	token, err := scanToken(row)
	if err != nil {
		return models.Token{}, err
	}

	notes := fmt.Sprintf("reassigned from department %s to %s", fromCode, target.Code)
	if err = insertTokenHistory(ctx, tx, token.TokenID, store.ActionReassigned, input.PerformedBy, notes); err != nil {
		return models.Token{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, err
	}
	return token, nil
}

func (s *Store) TokensInRange(ctx context.Context, start, end time.Time, departmentCode string) ([]store.ReportRow, error) {
	query := `
		SELECT t.token_number, d.code, d.name, t.patient_name, t.priority_type,
			t.status, t.queue_position, t.created_at, t.called_at, t.completed_at
		FROM queue_tokens t
		JOIN departments d ON d.department_id = t.department_id
		WHERE t.created_at >= $1 AND t.created_at < $2
	`
	args := []interface{}{start, end}
	if departmentCode != "" {
		query += " AND d.code = $3"
		args = append(args, departmentCode)
	}
	query += " ORDER BY t.created_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []store.ReportRow
	for rows.Next() {
		var record store.ReportRow
		var calledAt, completedAt sql.NullTime
		if err := rows.Scan(&record.TokenNumber, &record.DepartmentCode, &record.DepartmentName,
			&record.PatientName, &record.PriorityType, &record.Status, &record.QueuePosition,
			&record.CreatedAt, &calledAt, &completedAt); err != nil {
			return nil, err
		}
		record.CalledAt = nullTimePtr(calledAt)
		record.CompletedAt = nullTimePtr(completedAt)
		if record.CalledAt != nil {
			wait := int64(record.CalledAt.Sub(record.CreatedAt).Seconds())
			record.WaitSeconds = &wait
			if record.CompletedAt != nil {
				service := int64(record.CompletedAt.Sub(*record.CalledAt).Seconds())
				record.ServiceSeconds = &service
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
