package store

import "errors"

var (
	ErrDepartmentNotFound  = errors.New("department not found")
	ErrDepartmentPaused    = errors.New("department paused")
	ErrTokenNotFound       = errors.New("token not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrQueueEmpty          = errors.New("no waiting tokens")
	ErrSlotFull            = errors.New("time slot fully booked")
	ErrInvalidState        = errors.New("invalid status for this action")
)
