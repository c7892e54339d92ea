package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"qech/dispatch-service/internal/models"
	"qech/dispatch-service/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool            *pgxpool.Pool
	slotCapacity    int
	slotInterval    time.Duration
	openingHour     int
	closingHour     int
	promotionWindow time.Duration
}

type Options struct {
	SlotCapacity    int
	SlotInterval    time.Duration
	OpeningHour     int
	ClosingHour     int
	PromotionWindow time.Duration
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	capacity := options.SlotCapacity
	if capacity <= 0 {
		capacity = 3
	}
	interval := options.SlotInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	opening := options.OpeningHour
	if opening <= 0 {
		opening = 8
	}
	closing := options.ClosingHour
	if closing <= opening {
		closing = 16
	}
	window := options.PromotionWindow
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Store{
		pool:            pool,
		slotCapacity:    capacity,
		slotInterval:    interval,
		openingHour:     opening,
		closingHour:     closing,
		promotionWindow: window,
	}
}

// nextSequence reserves the next value of a per-(department, day, scope)
// counter. The upsert increments and returns atomically, so concurrent
// allocators can never observe the same value; committed values may leave
// gaps when a surrounding transaction rolls back, which is acceptable.
func nextSequence(ctx context.Context, tx pgx.Tx, departmentID string, day time.Time, scope string) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO dispatch_sequences (department_id, day, scope, next_value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (department_id, day, scope)
		DO UPDATE SET next_value = dispatch_sequences.next_value + 1
		RETURNING next_value
	`, departmentID, day.Format("2006-01-02"), scope)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

const (
	scopeTokenNumber       = "token_number"
	scopeQueuePosition     = "queue_position"
	scopeAppointmentNumber = "appointment_number"
)

// lookupDepartmentTx reads the department row inside the caller's
// transaction so the active flag is observed at the same snapshot as the
// mutation it gates.
func lookupDepartmentTx(ctx context.Context, tx pgx.Tx, code string) (models.Department, error) {
	var dept models.Department
	row := tx.QueryRow(ctx, `
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

// priorityOrderExpr renders the Go-owned rank table as a SQL CASE so the
// storage engine sorts by the same pure function the rest of the code uses,
// independent of string collation.
func priorityOrderExpr(column string) string {
	classes := models.PriorityClasses()
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for _, name := range names {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", name, classes[name])
	}
	b.WriteString(" ELSE 0 END")
	return b.String()
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func stringOrEmpty(value sql.NullString) string {
	if !value.Valid {
		return ""
	}
	return value.String
}

func intPtr(value sql.NullInt32) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int32)
	return &v
}
