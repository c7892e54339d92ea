package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"qech/dispatch-service/internal/models"
	"qech/dispatch-service/internal/notify"
	"qech/dispatch-service/internal/store"
)

type createAppointmentRequest struct {
	RequestID       string `json:"request_id"`
	Department      string `json:"department"`
	PatientName     string `json:"patient_name"`
	PatientAge      *int   `json:"patient_age"`
	PatientPhone    string `json:"patient_phone"`
	PatientEmail    string `json:"patient_email"`
	PatientIDNumber string `json:"patient_id_number"`
	ServiceType     string `json:"service_type"`
	Reason          string `json:"reason"`
	PriorityType    string `json:"priority_type"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	PerformedBy     string `json:"performed_by"`
}

type appointmentResponse struct {
	models.Appointment
	Notification *notify.Result `json:"notification,omitempty"`
}

func (h *Handler) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateAppointment(w, r)
	case http.MethodGet:
		h.handleListAppointments(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Department = strings.TrimSpace(req.Department)
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientPhone = strings.TrimSpace(req.PatientPhone)
	req.PatientEmail = strings.TrimSpace(req.PatientEmail)
	req.PriorityType = strings.TrimSpace(req.PriorityType)
	req.AppointmentDate = strings.TrimSpace(req.AppointmentDate)
	req.AppointmentTime = strings.TrimSpace(req.AppointmentTime)

	if req.RequestID == "" || req.Department == "" || req.PatientName == "" || req.PatientPhone == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, department, patient_name, and patient_phone are required")
		return
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if !isValidPhone(req.PatientPhone) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "patient_phone must be 8-16 digits")
		return
	}
	if req.PatientEmail != "" && !isValidEmail(req.PatientEmail) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "patient_email is not a valid address")
		return
	}
	if req.PriorityType == "" {
		req.PriorityType = models.PriorityNone
	}
	if !models.ValidPriority(req.PriorityType) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "unknown priority_type")
		return
	}
	if _, err := time.Parse("2006-01-02", req.AppointmentDate); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "appointment_date must be YYYY-MM-DD")
		return
	}
	if _, err := time.Parse("15:04", req.AppointmentTime); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "appointment_time must be HH:MM")
		return
	}
	slotAt, _ := time.Parse("2006-01-02 15:04", req.AppointmentDate+" "+req.AppointmentTime)
	if !slotAt.After(time.Now().UTC()) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "appointment date and time must be in the future")
		return
	}

	appt, created, err := h.store.CreateAppointment(r.Context(), store.CreateAppointmentInput{
		RequestID:       req.RequestID,
		DepartmentCode:  req.Department,
		PatientName:     req.PatientName,
		PatientAge:      req.PatientAge,
		PatientPhone:    req.PatientPhone,
		PatientEmail:    req.PatientEmail,
		PatientIDNumber: strings.TrimSpace(req.PatientIDNumber),
		ServiceType:     strings.TrimSpace(req.ServiceType),
		Reason:          strings.TrimSpace(req.Reason),
		PriorityType:    req.PriorityType,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
		PerformedBy:     strings.TrimSpace(req.PerformedBy),
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	resp := appointmentResponse{Appointment: appt}
	if created {
		result := h.notifier.AppointmentBooked(r.Context(), appt)
		resp.Notification = &result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	filter := store.ListAppointmentsFilter{
		DepartmentCode: strings.TrimSpace(r.URL.Query().Get("department")),
		Date:           strings.TrimSpace(r.URL.Query().Get("date")),
		Status:         strings.TrimSpace(r.URL.Query().Get("status")),
	}
	if filter.Date != "" {
		if _, err := time.Parse("2006-01-02", filter.Date); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}
	}

	appointments, err := h.store.ListAppointments(r.Context(), filter)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if appointments == nil {
		appointments = []models.Appointment{}
	}
	writeJSON(w, http.StatusOK, appointments)
}

func (h *Handler) handleAppointmentSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/appointments/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetAppointment(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions" && r.Method == http.MethodPost:
		switch parts[2] {
		case "update":
			h.handleUpdateAppointment(w, r, parts[0])
		case "cancel":
			h.handleCancelAppointment(w, r, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGetAppointment(w http.ResponseWriter, r *http.Request, number string) {
	appt, err := h.store.GetAppointment(r.Context(), number)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type updateAppointmentRequest struct {
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	PerformedBy string `json:"performed_by"`
}

func (h *Handler) handleUpdateAppointment(w http.ResponseWriter, r *http.Request, number string) {
	var req updateAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	if req.Status == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "status is required")
		return
	}

	appt, err := h.store.UpdateAppointment(r.Context(), store.UpdateAppointmentInput{
		AppointmentNumber: number,
		Status:            req.Status,
		Notes:             strings.TrimSpace(req.Notes),
		PerformedBy:       strings.TrimSpace(req.PerformedBy),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type cancelAppointmentRequest struct {
	Reason      string `json:"reason"`
	PerformedBy string `json:"performed_by"`
}

func (h *Handler) handleCancelAppointment(w http.ResponseWriter, r *http.Request, number string) {
	var req cancelAppointmentRequest
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
	}

	if err := h.store.CancelAppointment(r.Context(), store.CancelAppointmentInput{
		AppointmentNumber: number,
		Reason:            strings.TrimSpace(req.Reason),
		PerformedBy:       strings.TrimSpace(req.PerformedBy),
	}); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	appt, err := h.store.GetAppointment(r.Context(), number)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"appointment_number": number, "status": models.AppointmentCancelled})
		return
	}
	result := h.notifier.AppointmentCancelled(r.Context(), appt)
	writeJSON(w, http.StatusOK, appointmentResponse{Appointment: appt, Notification: &result})
}

func (h *Handler) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	department := strings.TrimSpace(r.URL.Query().Get("department"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if department == "" || date == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "department and date are required")
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}

	slots, err := h.store.AvailableSlots(r.Context(), department, date)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *Handler) handlePromoteDue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req queueActionRequest
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
	}
	req.Department = strings.TrimSpace(req.Department)
	if req.Department == "" {
		req.Department = strings.TrimSpace(r.URL.Query().Get("department"))
	}
	performedBy := strings.TrimSpace(req.PerformedBy)
	if performedBy == "" {
		performedBy = "system"
	}

	result, err := h.store.PromoteDue(r.Context(), store.PromoteInput{
		DepartmentCode: req.Department,
		PerformedBy:    performedBy,
		Now:            time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if result.Errors == nil {
		result.Errors = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}
