package store

import (
	"context"
	"time"

	"qech/dispatch-service/internal/models"
)

type CreateTokenInput struct {
	RequestID       string
	DepartmentCode  string
	PatientName     string
	PatientAge      *int
	PatientPhone    string
	PatientEmail    string
	PatientIDNumber string
	PatientAddress  string
	ServiceType     string
	PriorityType    string
	PerformedBy     string
	CreatedAt       time.Time
}

type CallNextInput struct {
	DepartmentCode string
	PerformedBy    string
	CalledAt       time.Time
}

type TokenActionInput struct {
	TokenID     string
	PerformedBy string
	OccurredAt  time.Time
}

type ReassignInput struct {
	TokenID           string
	NewDepartmentCode string
	PerformedBy       string
	OccurredAt        time.Time
}

type CreateAppointmentInput struct {
	RequestID       string
	DepartmentCode  string
	PatientName     string
	PatientAge      *int
	PatientPhone    string
	PatientEmail    string
	PatientIDNumber string
	ServiceType     string
	Reason          string
	PriorityType    string
	AppointmentDate string
	AppointmentTime string
	PerformedBy     string
	CreatedAt       time.Time
}

type UpdateAppointmentInput struct {
	AppointmentNumber string
	Status            string
	Notes             string
	PerformedBy       string
}

type CancelAppointmentInput struct {
	AppointmentNumber string
	Reason            string
	PerformedBy       string
}

type ListAppointmentsFilter struct {
	DepartmentCode string
	Date           string
	Status         string
}

type PromoteInput struct {
	DepartmentCode string
	PerformedBy    string
	Now            time.Time
}

// PromotionResult reports one promotion scan. Promoted counts appointments
// moved to queued, whether a token was created or an existing live token was
// linked. Errors carries per-appointment failures; the scan continues past
// them so one bad row never blocks the rest of the due set.
type PromotionResult struct {
	Promoted int      `json:"promoted"`
	Errors   []string `json:"errors"`
}

// ReportRow is the flattened record handed to the report/export consumer.
type ReportRow struct {
	TokenNumber    string     `json:"token_number"`
	DepartmentCode string     `json:"department_code"`
	DepartmentName string     `json:"department_name"`
	PatientName    string     `json:"patient_name"`
	PriorityType   string     `json:"priority_type"`
	Status         string     `json:"status"`
	QueuePosition  int        `json:"queue_position"`
	CreatedAt      time.Time  `json:"created_at"`
	CalledAt       *time.Time `json:"called_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	WaitSeconds    *int64     `json:"wait_seconds,omitempty"`
	ServiceSeconds *int64     `json:"service_seconds,omitempty"`
}

// TokenStore owns queue token lifecycle and the call-next claim. The bool
// returned by CreateToken is false when the request id matched an earlier
// create and the existing token was returned instead.
type TokenStore interface {
	CreateToken(ctx context.Context, input CreateTokenInput) (models.Token, bool, error)
	GetToken(ctx context.Context, tokenID string) (models.Token, error)
	QueueStatus(ctx context.Context, departmentCode string) ([]models.Token, error)
	CallNext(ctx context.Context, input CallNextInput) (models.Token, error)
	CompleteToken(ctx context.Context, input TokenActionInput) (models.Token, error)
	CancelToken(ctx context.Context, input TokenActionInput) (models.Token, error)
	ReassignToken(ctx context.Context, input ReassignInput) (models.Token, error)
	TokensInRange(ctx context.Context, start, end time.Time, departmentCode string) ([]ReportRow, error)
	ListTokenHistory(ctx context.Context, tokenID string) ([]AuditEvent, error)
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, input CreateAppointmentInput) (models.Appointment, bool, error)
	GetAppointment(ctx context.Context, appointmentNumber string) (models.Appointment, error)
	ListAppointments(ctx context.Context, filter ListAppointmentsFilter) ([]models.Appointment, error)
	UpdateAppointment(ctx context.Context, input UpdateAppointmentInput) (models.Appointment, error)
	CancelAppointment(ctx context.Context, input CancelAppointmentInput) error
	AvailableSlots(ctx context.Context, departmentCode, date string) ([]models.Slot, error)
	PromoteDue(ctx context.Context, input PromoteInput) (PromotionResult, error)
	ListAppointmentHistory(ctx context.Context, appointmentID string) ([]AuditEvent, error)
}

type DepartmentStore interface {
	LookupDepartment(ctx context.Context, code string) (models.Department, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	PauseQueue(ctx context.Context, departmentCode, performedBy string) (models.Department, error)
	ResumeQueue(ctx context.Context, departmentCode, performedBy string) (models.Department, error)
}

type Store interface {
	TokenStore
	AppointmentStore
	DepartmentStore
}
