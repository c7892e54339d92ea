package models

import "time"

type Appointment struct {
	AppointmentID     string    `json:"appointment_id"`
	AppointmentNumber string    `json:"appointment_number"`
	RequestID         string    `json:"request_id,omitempty"`
	DepartmentID      string    `json:"department_id"`
	DepartmentCode    string    `json:"department_code,omitempty"`
	PatientName       string    `json:"patient_name"`
	PatientAge        *int      `json:"patient_age,omitempty"`
	PatientPhone      string    `json:"patient_phone"`
	PatientEmail      string    `json:"patient_email,omitempty"`
	PatientIDNumber   string    `json:"patient_id_number,omitempty"`
	ServiceType       string    `json:"service_type,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	PriorityType      string    `json:"priority_type"`
	AppointmentDate   string    `json:"appointment_date"`
	AppointmentTime   string    `json:"appointment_time"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentQueued    = "queued"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Slot describes one bookable half-hour interval for a department and date.
type Slot struct {
	Time              string `json:"time"`
	Available         bool   `json:"available"`
	BookedCount       int    `json:"booked_count"`
	RemainingCapacity int    `json:"remaining_capacity"`
	MaxCapacity       int    `json:"max_capacity"`
}
