package postgres

import (
	"context"
	"errors"
	"fmt"

	"qech/dispatch-service/internal/models"
	"qech/dispatch-service/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) LookupDepartment(ctx context.Context, code string) (models.Department, error) {
	var dept models.Department
	row := s.pool.QueryRow(ctx, `
		SELECT department_id, code, name, active
		FROM departments
		WHERE code = $1
	`, code)
	if err := row.Scan(&dept.DepartmentID, &dept.Code, &dept.Name, &dept.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Department{}, store.ErrDepartmentNotFound
		}
		return models.Department{}, err
	}
	return dept, nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]models.Department, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT department_id, code, name, active
		FROM departments
		ORDER BY code ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []models.Department
	for rows.Next() {
		var dept models.Department
		if err := rows.Scan(&dept.DepartmentID, &dept.Code, &dept.Name, &dept.Active); err != nil {
			return nil, err
		}
		departments = append(departments, dept)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return departments, nil
}

func (s *Store) PauseQueue(ctx context.Context, departmentCode, performedBy string) (models.Department, error) {
	return s.setQueueActive(ctx, departmentCode, performedBy, false)
}

func (s *Store) ResumeQueue(ctx context.Context, departmentCode, performedBy string) (models.Department, error) {
	return s.setQueueActive(ctx, departmentCode, performedBy, true)
}

// setQueueActive flips the department's active flag. Waiting and serving
// tokens are untouched; only token creation and call-next are gated on it.
func (s *Store) setQueueActive(ctx context.Context, departmentCode, performedBy string, active bool) (models.Department, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Department{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var dept models.Department
	row := tx.QueryRow(ctx, `
		UPDATE departments
		SET active = $2
		WHERE code = $1
		RETURNING department_id, code, name, active
	`, departmentCode, active)
	if err = row.Scan(&dept.DepartmentID, &dept.Code, &dept.Name, &dept.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrDepartmentNotFound
		}
		return models.Department{}, err
	}

	action := store.ActionPaused
	if active {
		action = store.ActionResumed
	}
	notes := fmt.Sprintf("department: %s", dept.Code)
	if err = insertTokenHistory(ctx, tx, "", action, performedBy, notes); err != nil {
		return models.Department{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Department{}, err
	}
	return dept, nil
}
