package models

import "time"

type Token struct {
	TokenID         string     `json:"token_id"`
	TokenNumber     string     `json:"token_number"`
	RequestID       string     `json:"request_id,omitempty"`
	DepartmentID    string     `json:"department_id"`
	DepartmentCode  string     `json:"department_code,omitempty"`
	PatientName     string     `json:"patient_name"`
	PatientAge      *int       `json:"patient_age,omitempty"`
	PatientPhone    string     `json:"patient_phone,omitempty"`
	PatientEmail    string     `json:"patient_email,omitempty"`
	PatientIDNumber string     `json:"patient_id_number,omitempty"`
	PatientAddress  string     `json:"patient_address,omitempty"`
	ServiceType     string     `json:"service_type,omitempty"`
	PriorityType    string     `json:"priority_type"`
	QueuePosition   int        `json:"queue_position"`
	Status          string     `json:"status"`
	AppointmentID   string     `json:"appointment_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CalledAt        *time.Time `json:"called_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

const (
	StatusWaiting   = "waiting"
	StatusServing   = "serving"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)
