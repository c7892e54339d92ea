package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"qech/dispatch-service/internal/models"
	"qech/dispatch-service/internal/notify"
	"qech/dispatch-service/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store    store.Store
	notifier *notify.Notifier
}

func NewHandler(store store.Store, notifier *notify.Notifier) *Handler {
	return &Handler{store: store, notifier: notifier}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tokens", h.handleTokens)
	mux.HandleFunc("/api/tokens/", h.handleTokenSubtree)
	mux.HandleFunc("/api/queue/status", h.handleQueueStatus)
	mux.HandleFunc("/api/queue/call-next", h.handleCallNext)
	mux.HandleFunc("/api/queue/pause", h.handlePauseQueue)
	mux.HandleFunc("/api/queue/resume", h.handleResumeQueue)
	mux.HandleFunc("/api/departments", h.handleDepartments)
	mux.HandleFunc("/api/appointments", h.handleAppointments)
	mux.HandleFunc("/api/appointments/slots", h.handleSlots)
	mux.HandleFunc("/api/appointments/promote-due", h.handlePromoteDue)
	mux.HandleFunc("/api/appointments/", h.handleAppointmentSubtree)
	mux.HandleFunc("/api/history/tokens/", h.handleTokenHistory)
	mux.HandleFunc("/api/history/appointments/", h.handleAppointmentHistory)
	mux.HandleFunc("/api/reports/tokens", h.handleTokenReport)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type createTokenRequest struct {
	RequestID       string `json:"request_id"`
	Department      string `json:"department"`
	PatientName     string `json:"patient_name"`
	PatientAge      *int   `json:"patient_age"`
	PatientPhone    string `json:"patient_phone"`
	PatientEmail    string `json:"patient_email"`
	PatientIDNumber string `json:"patient_id_number"`
	PatientAddress  string `json:"patient_address"`
	ServiceType     string `json:"service_type"`
	PriorityType    string `json:"priority_type"`
	PerformedBy     string `json:"performed_by"`
}

type tokenResponse struct {
	models.Token
	Notification *notify.Result `json:"notification,omitempty"`
}

func (h *Handler) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createTokenRequest
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

	if req.RequestID == "" || req.Department == "" || req.PatientName == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, department, and patient_name are required")
		return
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if req.PriorityType == "" {
		req.PriorityType = models.PriorityNone
	}
	if !models.ValidPriority(req.PriorityType) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "unknown priority_type")
		return
	}
	if req.PatientPhone != "" && !isValidPhone(req.PatientPhone) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "patient_phone must be 8-16 digits")
		return
	}
	if req.PatientEmail != "" && !isValidEmail(req.PatientEmail) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "patient_email is not a valid address")
		return
	}
	if req.PatientAge != nil && (*req.PatientAge < 0 || *req.PatientAge > 150) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "patient_age out of range")
		return
	}

	token, created, err := h.store.CreateToken(r.Context(), store.CreateTokenInput{
		RequestID:       req.RequestID,
		DepartmentCode:  req.Department,
		PatientName:     req.PatientName,
		PatientAge:      req.PatientAge,
		PatientPhone:    req.PatientPhone,
		PatientEmail:    req.PatientEmail,
		PatientIDNumber: strings.TrimSpace(req.PatientIDNumber),
		PatientAddress:  strings.TrimSpace(req.PatientAddress),
		ServiceType:     strings.TrimSpace(req.ServiceType),
		PriorityType:    req.PriorityType,
		PerformedBy:     strings.TrimSpace(req.PerformedBy),
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	resp := tokenResponse{Token: token}
	if created {
		result := h.notifier.TokenCreated(r.Context(), token)
		resp.Notification = &result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTokenSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tokens/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetToken(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions" && r.Method == http.MethodPost:
		tokenID := parts[0]
		if !isValidUUID(tokenID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "token id must be a UUID")
			return
		}
		switch parts[2] {
		case "complete":
			h.handleCompleteToken(w, r, tokenID)
		case "cancel":
			h.handleCancelToken(w, r, tokenID)
		case "reassign":
			h.handleReassignToken(w, r, tokenID)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request, tokenID string) {
	if !isValidUUID(tokenID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "token id must be a UUID")
		return
	}
	token, err := h.store.GetToken(r.Context(), tokenID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

type queueStatusResponse struct {
	Department string         `json:"department,omitempty"`
	Waiting    int            `json:"waiting"`
	Serving    int            `json:"serving"`
	Tokens     []models.Token `json:"tokens"`
}

// handleQueueStatus runs a best-effort promotion sweep before reading so
// appointments inside the window surface in the queue a client is polling.
// A failed sweep is logged and never blocks the read.
func (h *Handler) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	department := strings.TrimSpace(r.URL.Query().Get("department"))

	if _, err := h.store.PromoteDue(r.Context(), store.PromoteInput{
		DepartmentCode: department,
		PerformedBy:    "system",
		Now:            time.Now().UTC(),
	}); err != nil {
		log.Printf("promotion sweep failed department=%s err=%v", department, err)
	}

	tokens, err := h.store.QueueStatus(r.Context(), department)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	resp := queueStatusResponse{Department: department, Tokens: tokens}
	for _, token := range tokens {
		switch token.Status {
		case models.StatusWaiting:
			resp.Waiting++
		case models.StatusServing:
			resp.Serving++
		}
	}
	if resp.Tokens == nil {
		resp.Tokens = []models.Token{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type queueActionRequest struct {
	Department  string `json:"department"`
	PerformedBy string `json:"performed_by"`
}

func decodeQueueAction(w http.ResponseWriter, r *http.Request) (queueActionRequest, bool) {
	var req queueActionRequest
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return req, false
		}
	}
	req.Department = strings.TrimSpace(req.Department)
	req.PerformedBy = strings.TrimSpace(req.PerformedBy)
	if req.Department == "" {
		req.Department = strings.TrimSpace(r.URL.Query().Get("department"))
	}
	if req.Department == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "department is required")
		return req, false
	}
	return req, true
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req, ok := decodeQueueAction(w, r)
	if !ok {
		return
	}

	token, err := h.store.CallNext(r.Context(), store.CallNextInput{
		DepartmentCode: req.Department,
		PerformedBy:    req.PerformedBy,
		CalledAt:       time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	result := h.notifier.TokenCalled(r.Context(), token)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Notification: &result})
}

func (h *Handler) handlePauseQueue(w http.ResponseWriter, r *http.Request) {
	h.handleQueueToggle(w, r, true)
}

func (h *Handler) handleResumeQueue(w http.ResponseWriter, r *http.Request) {
	h.handleQueueToggle(w, r, false)
}

func (h *Handler) handleQueueToggle(w http.ResponseWriter, r *http.Request, pause bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req, ok := decodeQueueAction(w, r)
	if !ok {
		return
	}

	var (
		department models.Department
		err        error
	)
	if pause {
		department, err = h.store.PauseQueue(r.Context(), req.Department, req.PerformedBy)
	} else {
		department, err = h.store.ResumeQueue(r.Context(), req.Department, req.PerformedBy)
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, department)
}

func (h *Handler) handleDepartments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	departments, err := h.store.ListDepartments(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, departments)
}

type tokenActionRequest struct {
	PerformedBy string `json:"performed_by"`
}

func (h *Handler) handleCompleteToken(w http.ResponseWriter, r *http.Request, tokenID string) {
	var req tokenActionRequest
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
	}

	token, err := h.store.CompleteToken(r.Context(), store.TokenActionInput{
		TokenID:     tokenID,
		PerformedBy: strings.TrimSpace(req.PerformedBy),
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	result := h.notifier.TokenCompleted(r.Context(), token)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Notification: &result})
}

func (h *Handler) handleCancelToken(w http.ResponseWriter, r *http.Request, tokenID string) {
	var req tokenActionRequest
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
	}

	token, err := h.store.CancelToken(r.Context(), store.TokenActionInput{
		TokenID:     tokenID,
		PerformedBy: strings.TrimSpace(req.PerformedBy),
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

type reassignRequest struct {
	Department  string `json:"department"`
	PerformedBy string `json:"performed_by"`
}

func (h *Handler) handleReassignToken(w http.ResponseWriter, r *http.Request, tokenID string) {
	var req reassignRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Department = strings.TrimSpace(req.Department)
	if req.Department == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "department is required")
		return
	}

	token, err := h.store.ReassignToken(r.Context(), store.ReassignInput{
		TokenID:           tokenID,
		NewDepartmentCode: req.Department,
		PerformedBy:       strings.TrimSpace(req.PerformedBy),
		OccurredAt:        time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	result := h.notifier.TokenReassigned(r.Context(), token)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Notification: &result})
}

func (h *Handler) handleTokenHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tokenID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/history/tokens/"), "/")
	if !isValidUUID(tokenID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "token id must be a UUID")
		return
	}
	events, err := h.store.ListTokenHistory(r.Context(), tokenID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if events == nil {
		events = []store.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleAppointmentHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	appointmentID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/history/appointments/"), "/")
	if !isValidUUID(appointmentID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "appointment id must be a UUID")
		return
	}
	events, err := h.store.ListAppointmentHistory(r.Context(), appointmentID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if events == nil {
		events = []store.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleTokenReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	startRaw := strings.TrimSpace(r.URL.Query().Get("start"))
	endRaw := strings.TrimSpace(r.URL.Query().Get("end"))
	department := strings.TrimSpace(r.URL.Query().Get("department"))
	if startRaw == "" || endRaw == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "start and end are required")
		return
	}
	start, err := parseDayOrTimestamp(startRaw, false)
	if err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "start must be YYYY-MM-DD or RFC3339")
		return
	}
	end, err := parseDayOrTimestamp(endRaw, true)
	if err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "end must be YYYY-MM-DD or RFC3339")
		return
	}
	if end.Before(start) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "end must not precede start")
		return
	}

	rows, err := h.store.TokensInRange(r.Context(), start, end, department)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if rows == nil {
		rows = []store.ReportRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// parseDayOrTimestamp accepts either a bare date or a full RFC3339 timestamp.
// A bare end date covers its whole day.
func parseDayOrTimestamp(value string, endOfDay bool) (time.Time, error) {
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		if endOfDay {
			return parsed.Add(24*time.Hour - time.Nanosecond), nil
		}
		return parsed, nil
	}
	return time.Parse(time.RFC3339, value)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidPhone(value string) bool {
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isValidEmail(value string) bool {
	at := strings.Index(value, "@")
	if at <= 0 || at == len(value)-1 {
		return false
	}
	domain := value[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(value, " \t")
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrDepartmentNotFound):
		return http.StatusNotFound, "department_not_found", "department not found"
	case errors.Is(err, store.ErrTokenNotFound):
		return http.StatusNotFound, "token_not_found", "token not found"
	case errors.Is(err, store.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found", "appointment not found"
	case errors.Is(err, store.ErrDepartmentPaused):
		return http.StatusConflict, "department_paused", "department queue is paused"
	case errors.Is(err, store.ErrQueueEmpty):
		return http.StatusConflict, "queue_empty", "no waiting tokens"
	case errors.Is(err, store.ErrSlotFull):
		return http.StatusConflict, "slot_full", "time slot fully booked"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "current status does not allow this action"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
