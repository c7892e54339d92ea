package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"qech/dispatch-service/internal/models"
	"qech/dispatch-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestCreateTokenConcurrentNumbering(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	const workers = 8
	createdAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	results := make(chan models.Token, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, _, err := st.CreateToken(ctx, store.CreateTokenInput{
				RequestID:      uuid.NewString(),
				DepartmentCode: "OPD",
				PatientName:    "Patient",
				PriorityType:   models.PriorityNone,
				CreatedAt:      createdAt,
			})
			if err != nil {
				errs <- err
				return
			}
			results <- token
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("create token: %v", err)
	}

	numbers := map[string]bool{}
	positions := map[int]bool{}
	for token := range results {
		if numbers[token.TokenNumber] {
			t.Fatalf("duplicate token number %s", token.TokenNumber)
		}
		numbers[token.TokenNumber] = true
		if positions[token.QueuePosition] {
			t.Fatalf("duplicate queue position %d", token.QueuePosition)
		}
		positions[token.QueuePosition] = true
		if !strings.HasPrefix(token.TokenNumber, "OPD20260302") {
			t.Fatalf("unexpected token number shape %s", token.TokenNumber)
		}
	}
	if len(numbers) != workers {
		t.Fatalf("expected %d tokens, got %d", workers, len(numbers))
	}
}

func TestCreateTokenIdempotency(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	requestID := uuid.NewString()
	first, created, err := st.CreateToken(ctx, store.CreateTokenInput{
		RequestID:      requestID,
		DepartmentCode: "OPD",
		PatientName:    "Jane Banda",
		PriorityType:   models.PriorityNone,
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if !created {
		t.Fatalf("expected first create to report a new token")
	}

	second, created, err := st.CreateToken(ctx, store.CreateTokenInput{
		RequestID:      requestID,
		DepartmentCode: "OPD",
		PatientName:    "Jane Banda",
		PriorityType:   models.PriorityNone,
	})
	if err != nil {
		t.Fatalf("replay create token: %v", err)
	}
	if created {
		t.Fatalf("expected replay to return the existing token")
	}
	if first.TokenID != second.TokenID || first.TokenNumber != second.TokenNumber {
		t.Fatalf("replay returned a different token: %s vs %s", first.TokenNumber, second.TokenNumber)
	}

	var count int
	row := pool.QueryRow(ctx, `SELECT COUNT(*) FROM queue_history WHERE token_id = $1 AND action = 'created'`, first.TokenID)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count history: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 created event, got %d", count)
	}
}

func TestCallNextPriorityOrder(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		name     string
		priority string
	}{
		{"First Regular", models.PriorityNone},
		{"Elderly Early", models.PriorityElderly},
		{"Disabled Later", models.PriorityDisabled},
		{"Emergency Last", models.PriorityEmergency},
	} {
		if _, _, err := st.CreateToken(ctx, store.CreateTokenInput{
			RequestID:      uuid.NewString(),
			DepartmentCode: "OPD",
			PatientName:    tc.name,
			PriorityType:   tc.priority,
			CreatedAt:      base,
		}); err != nil {
			t.Fatalf("create token %s: %v", tc.name, err)
		}
	}

	wantOrder := []string{"Emergency Last", "Elderly Early", "Disabled Later", "First Regular"}
	for _, want := range wantOrder {
		token, err := st.CallNext(ctx, store.CallNextInput{DepartmentCode: "OPD", CalledAt: base.Add(time.Minute)})
		if err != nil {
			t.Fatalf("call next: %v", err)
		}
		if token.PatientName != want {
			t.Fatalf("expected %s, got %s", want, token.PatientName)
		}
		if token.Status != models.StatusServing || token.CalledAt == nil {
			t.Fatalf("claimed token not serving: %+v", token)
		}
		if _, err := st.CompleteToken(ctx, store.TokenActionInput{TokenID: token.TokenID}); err != nil {
			t.Fatalf("complete token: %v", err)
		}
	}

	if _, err := st.CallNext(ctx, store.CallNextInput{DepartmentCode: "OPD"}); err != store.ErrQueueEmpty {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestCallNextConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	for i := 0; i < 2; i++ {
		if _, _, err := st.CreateToken(ctx, store.CreateTokenInput{
			RequestID:      uuid.NewString(),
			DepartmentCode: "OPD",
			PatientName:    "Patient",
			PriorityType:   models.PriorityNone,
		}); err != nil {
			t.Fatalf("create token: %v", err)
		}
	}

	type claim struct {
		tokenID string
		err     error
	}
	var wg sync.WaitGroup
	claims := make(chan claim, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := st.CallNext(ctx, store.CallNextInput{DepartmentCode: "OPD"})
			claims <- claim{tokenID: token.TokenID, err: err}
		}()
	}
	wg.Wait()
	close(claims)

	var ids []string
	for c := range claims {
		if c.err != nil {
			t.Fatalf("call next: %v", c.err)
		}
		ids = append(ids, c.tokenID)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected two distinct claims, got %v", ids)
	}
}

func TestPauseBlocksIntakeAndCalling(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	if _, _, err := st.CreateToken(ctx, store.CreateTokenInput{
		RequestID:      uuid.NewString(),
		DepartmentCode: "OPD",
		PatientName:    "Before Pause",
		PriorityType:   models.PriorityNone,
	}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	dept, err := st.PauseQueue(ctx, "OPD", "admin")
	if err != nil {
		t.Fatalf("pause queue: %v", err)
	}
	if dept.Active {
		t.Fatalf("expected department paused")
	}

	if _, _, err := st.CreateToken(ctx, store.CreateTokenInput{
		RequestID:      uuid.NewString(),
		DepartmentCode: "OPD",
		PatientName:    "During Pause",
		PriorityType:   models.PriorityNone,
	}); err != store.ErrDepartmentPaused {
		t.Fatalf("expected ErrDepartmentPaused on create, got %v", err)
	}
	if _, err := st.CallNext(ctx, store.CallNextInput{DepartmentCode: "OPD"}); err != store.ErrDepartmentPaused {
		t.Fatalf("expected ErrDepartmentPaused on call next, got %v", err)
	}

	// Queued work survives the pause untouched.
	tokens, err := st.QueueStatus(ctx, "OPD")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Status != models.StatusWaiting {
		t.Fatalf("expected one waiting token, got %+v", tokens)
	}

	if _, err := st.ResumeQueue(ctx, "OPD", "admin"); err != nil {
		t.Fatalf("resume queue: %v", err)
	}
	token, err := st.CallNext(ctx, store.CallNextInput{DepartmentCode: "OPD"})
	if err != nil {
		t.Fatalf("call next after resume: %v", err)
	}
	if token.PatientName != "Before Pause" {
		t.Fatalf("unexpected token after resume: %+v", token)
	}
}

func TestReassignTokenAllocatesNewPosition(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)
	seedDepartment(t, ctx, pool, "ENT", "Ear Nose Throat", true)

	token, _, err := st.CreateToken(ctx, store.CreateTokenInput{
		RequestID:      uuid.NewString(),
		DepartmentCode: "OPD",
		PatientName:    "Jane Banda",
		PriorityType:   models.PriorityNone,
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	moved, err := st.ReassignToken(ctx, store.ReassignInput{
		TokenID:           token.TokenID,
		NewDepartmentCode: "ENT",
		PerformedBy:       "staff-1",
	})
	if err != nil {
		t.Fatalf("reassign token: %v", err)
	}
	if moved.DepartmentCode != "ENT" || moved.Status != models.StatusWaiting || moved.CalledAt != nil {
		t.Fatalf("unexpected reassigned token: %+v", moved)
	}
	if moved.TokenNumber != token.TokenNumber {
		t.Fatalf("token number must be stable across reassignment")
	}

	events, err := st.ListTokenHistory(ctx, token.TokenID)
	if err != nil {
		t.Fatalf("token history: %v", err)
	}
	var sawReassign bool
	for _, event := range events {
		if event.Action == store.ActionReassigned && strings.Contains(event.Notes, "OPD") && strings.Contains(event.Notes, "ENT") {
			sawReassign = true
		}
	}
	if !sawReassign {
		t.Fatalf("expected reassignment audit event, got %+v", events)
	}

	// Completed tokens cannot be moved.
	if _, err := st.CompleteToken(ctx, store.TokenActionInput{TokenID: token.TokenID}); err != nil {
		t.Fatalf("complete token: %v", err)
	}
	if _, err := st.ReassignToken(ctx, store.ReassignInput{
		TokenID:           token.TokenID,
		NewDepartmentCode: "OPD",
	}); err != store.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCancelTokenRemovesFromQueue(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	token, _, err := st.CreateToken(ctx, store.CreateTokenInput{
		RequestID:      uuid.NewString(),
		DepartmentCode: "OPD",
		PatientName:    "Jane Banda",
		PriorityType:   models.PriorityNone,
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	cancelled, err := st.CancelToken(ctx, store.TokenActionInput{
		TokenID:     token.TokenID,
		PerformedBy: "staff-1",
	})
	if err != nil {
		t.Fatalf("cancel token: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("expected cancelled status, got %+v", cancelled)
	}

	if _, err := st.CallNext(ctx, store.CallNextInput{DepartmentCode: "OPD"}); err != store.ErrQueueEmpty {
		t.Fatalf("expected ErrQueueEmpty after cancel, got %v", err)
	}

	events, err := st.ListTokenHistory(ctx, token.TokenID)
	if err != nil {
		t.Fatalf("token history: %v", err)
	}
	var sawCancel bool
	for _, event := range events {
		if event.Action == store.ActionCancelled {
			sawCancel = true
		}
	}
	if !sawCancel {
		t.Fatalf("expected cancellation audit event, got %+v", events)
	}

	// A token already at the counter stays there.
	serving, _, err := st.CreateToken(ctx, store.CreateTokenInput{
		RequestID:      uuid.NewString(),
		DepartmentCode: "OPD",
		PatientName:    "At Counter",
		PriorityType:   models.PriorityNone,
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if _, err := st.CallNext(ctx, store.CallNextInput{DepartmentCode: "OPD"}); err != nil {
		t.Fatalf("call next: %v", err)
	}
	if _, err := st.CancelToken(ctx, store.TokenActionInput{TokenID: serving.TokenID}); err != store.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState for serving token, got %v", err)
	}
}

func TestSlotCapacityEnforced(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	book := func(phone string) (models.Appointment, error) {
		appt, _, err := st.CreateAppointment(ctx, store.CreateAppointmentInput{
			RequestID:       uuid.NewString(),
			DepartmentCode:  "OPD",
			PatientName:     "Patient " + phone,
			PatientPhone:    phone,
			PriorityType:    models.PriorityNone,
			AppointmentDate: "2026-03-02",
			AppointmentTime: "09:00",
		})
		return appt, err
	}

	var last models.Appointment
	for i := 0; i < 3; i++ {
		appt, err := book("0999100" + string(rune('0'+i)) + "00")
		if err != nil {
			t.Fatalf("book slot %d: %v", i, err)
		}
		last = appt
	}
	if _, err := book("0999999999"); err != store.ErrSlotFull {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}

	if err := st.CancelAppointment(ctx, store.CancelAppointmentInput{
		AppointmentNumber: last.AppointmentNumber,
		Reason:            "schedule change",
	}); err != nil {
		t.Fatalf("cancel appointment: %v", err)
	}
	if _, err := book("0999999999"); err != nil {
		t.Fatalf("expected freed slot to accept booking, got %v", err)
	}

	slots, err := st.AvailableSlots(ctx, "OPD", "2026-03-02")
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	var nineOClock *models.Slot
	for i := range slots {
		if slots[i].Time == "09:00" {
			nineOClock = &slots[i]
		}
	}
	if nineOClock == nil || nineOClock.Available || nineOClock.BookedCount != 3 {
		t.Fatalf("unexpected 09:00 slot: %+v", nineOClock)
	}
}

func TestPromoteDueCreatesTokenOnce(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	appt, _, err := st.CreateAppointment(ctx, store.CreateAppointmentInput{
		RequestID:       uuid.NewString(),
		DepartmentCode:  "OPD",
		PatientName:     "Jane Banda",
		PatientPhone:    "0999123456",
		PriorityType:    models.PriorityElderly,
		AppointmentDate: "2026-03-02",
		AppointmentTime: "09:00",
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	// 08:50 with a 15 minute window reaches the 09:00 slot.
	now := time.Date(2026, 3, 2, 8, 50, 0, 0, time.UTC)
	result, err := st.PromoteDue(ctx, store.PromoteInput{DepartmentCode: "OPD", PerformedBy: "system", Now: now})
	if err != nil {
		t.Fatalf("promote due: %v", err)
	}
	if result.Promoted != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected promotion result: %+v", result)
	}

	again, err := st.PromoteDue(ctx, store.PromoteInput{DepartmentCode: "OPD", PerformedBy: "system", Now: now})
	if err != nil {
		t.Fatalf("repeat promote due: %v", err)
	}
	if again.Promoted != 0 {
		t.Fatalf("promotion must be idempotent, got %+v", again)
	}

	promoted, err := st.GetAppointment(ctx, appt.AppointmentNumber)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if promoted.Status != models.AppointmentQueued {
		t.Fatalf("expected queued appointment, got %s", promoted.Status)
	}

	tokens, err := st.QueueStatus(ctx, "OPD")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected exactly one promoted token, got %d", len(tokens))
	}
	token := tokens[0]
	if token.AppointmentID != appt.AppointmentID || token.PriorityType != models.PriorityElderly {
		t.Fatalf("promoted token missing appointment linkage: %+v", token)
	}

	events, err := st.ListAppointmentHistory(ctx, appt.AppointmentID)
	if err != nil {
		t.Fatalf("appointment history: %v", err)
	}
	var sawQueued bool
	for _, event := range events {
		if event.Action == store.ActionQueued {
			sawQueued = true
		}
	}
	if !sawQueued {
		t.Fatalf("expected queued audit event, got %+v", events)
	}
}

func TestPromoteDueLinksExistingToken(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	now := time.Date(2026, 3, 2, 8, 50, 0, 0, time.UTC)
	walkIn, _, err := st.CreateToken(ctx, store.CreateTokenInput{
		RequestID:      uuid.NewString(),
		DepartmentCode: "OPD",
		PatientName:    "Jane Banda",
		PatientPhone:   "0999123456",
		PriorityType:   models.PriorityNone,
		CreatedAt:      now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("create walk-in token: %v", err)
	}

	appt, _, err := st.CreateAppointment(ctx, store.CreateAppointmentInput{
		RequestID:       uuid.NewString(),
		DepartmentCode:  "OPD",
		PatientName:     "Jane Banda",
		PatientPhone:    "0999123456",
		PriorityType:    models.PriorityNone,
		AppointmentDate: "2026-03-02",
		AppointmentTime: "09:00",
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	result, err := st.PromoteDue(ctx, store.PromoteInput{DepartmentCode: "OPD", PerformedBy: "system", Now: now})
	if err != nil {
		t.Fatalf("promote due: %v", err)
	}
	if result.Promoted != 1 {
		t.Fatalf("unexpected promotion result: %+v", result)
	}

	tokens, err := st.QueueStatus(ctx, "OPD")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if len(tokens) != 1 || tokens[0].TokenID != walkIn.TokenID {
		t.Fatalf("expected the existing token to be reused, got %+v", tokens)
	}

	promoted, err := st.GetAppointment(ctx, appt.AppointmentNumber)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if promoted.Status != models.AppointmentQueued {
		t.Fatalf("expected queued appointment, got %s", promoted.Status)
	}
}

func TestAppointmentIdempotencyAndHistory(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	seedDepartment(t, ctx, pool, "OPD", "Outpatient", true)

	requestID := uuid.NewString()
	input := store.CreateAppointmentInput{
		RequestID:       requestID,
		DepartmentCode:  "OPD",
		PatientName:     "Jane Banda",
		PatientPhone:    "0999123456",
		PriorityType:    models.PriorityNone,
		AppointmentDate: "2026-03-02",
		AppointmentTime: "10:30",
	}

	first, created, err := st.CreateAppointment(ctx, input)
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	if !created {
		t.Fatalf("expected a new appointment")
	}
	second, created, err := st.CreateAppointment(ctx, input)
	if err != nil {
		t.Fatalf("replay create appointment: %v", err)
	}
	if created || second.AppointmentID != first.AppointmentID {
		t.Fatalf("replay must return the original appointment")
	}

	confirmed, err := st.UpdateAppointment(ctx, store.UpdateAppointmentInput{
		AppointmentNumber: first.AppointmentNumber,
		Status:            models.AppointmentConfirmed,
		PerformedBy:       "staff-1",
	})
	if err != nil {
		t.Fatalf("confirm appointment: %v", err)
	}
	if confirmed.Status != models.AppointmentConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	if _, err := st.UpdateAppointment(ctx, store.UpdateAppointmentInput{
		AppointmentNumber: first.AppointmentNumber,
		Status:            models.AppointmentCompleted,
	}); err != store.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState for confirmed->completed, got %v", err)
	}

	events, err := st.ListAppointmentHistory(ctx, first.AppointmentID)
	if err != nil {
		t.Fatalf("appointment history: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected created+confirmed events, got %+v", events)
	}
}

func seedDepartment(t *testing.T, ctx context.Context, pool *pgxpool.Pool, code, name string, active bool) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := pool.Exec(ctx, `
		INSERT INTO departments (department_id, code, name, active) VALUES ($1, $2, $3, $4)
	`, id, code, name, active); err != nil {
		t.Fatalf("insert department %s: %v", code, err)
	}
	return id
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	store := NewStore(pool, Options{SlotCapacity: 3, PromotionWindow: 15 * time.Minute})
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return store, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
