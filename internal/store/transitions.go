package store

import "qech/dispatch-service/internal/models"

var tokenTransitions = map[string][]string{
	"call_next": {models.StatusWaiting},
	"complete":  {models.StatusWaiting, models.StatusServing},
	"cancel":    {models.StatusWaiting},
	"reassign":  {models.StatusWaiting, models.StatusServing},
}

func ValidTokenTransition(action, fromStatus string) bool {
	allowed, ok := tokenTransitions[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// Terminal appointment states cannot be re-entered or left; cancellation of
// a queued appointment is allowed but never touches the promoted token.
var appointmentTransitions = map[string][]string{
	models.AppointmentConfirmed: {models.AppointmentPending},
	models.AppointmentQueued:    {models.AppointmentPending, models.AppointmentConfirmed},
	models.AppointmentCompleted: {models.AppointmentQueued},
	models.AppointmentCancelled: {models.AppointmentPending, models.AppointmentConfirmed, models.AppointmentQueued},
}

func ValidAppointmentTransition(toStatus, fromStatus string) bool {
	allowed, ok := appointmentTransitions[toStatus]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
