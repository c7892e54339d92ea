package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"qech/dispatch-service/internal/models"
)

func TestNotifySkipsWithoutRecipient(t *testing.T) {
	n := New("fail", "", time.Second)
	result := n.TokenCreated(context.Background(), models.Token{TokenNumber: "OPD202603020001"})
	if result.Attempted {
		t.Fatalf("expected no attempt without a phone number, got %+v", result)
	}
}

func TestNotifyFailureIsReported(t *testing.T) {
	n := New("fail", "", time.Second)
	result := n.TokenCalled(context.Background(), models.Token{
		TokenNumber:  "OPD202603020001",
		PatientPhone: "0999123456",
	})
	if !result.Attempted || result.Sent {
		t.Fatalf("expected attempted unsent result, got %+v", result)
	}
	if result.Detail == "" {
		t.Fatalf("expected failure detail")
	}
}

func TestWebhookProviderDelivers(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New("webhook", server.URL, time.Second)
	result := n.AppointmentBooked(context.Background(), models.Appointment{
		AppointmentNumber: "AOPD202603020001",
		DepartmentCode:    "OPD",
		AppointmentDate:   "2026-03-02",
		AppointmentTime:   "09:00",
		PatientPhone:      "0999123456",
	})
	if !result.Sent {
		t.Fatalf("expected delivery, got %+v", result)
	}
	if got["recipient"] != "0999123456" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if !strings.Contains(got["message"], "AOPD202603020001") || !strings.Contains(got["message"], "09:00") {
		t.Fatalf("message missing booking details: %q", got["message"])
	}
}

func TestWebhookProviderRejectedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := New("webhook", server.URL, time.Second)
	result := n.TokenCreated(context.Background(), models.Token{
		TokenNumber:  "OPD202603020001",
		PatientPhone: "0999123456",
	})
	if result.Sent {
		t.Fatalf("expected rejected delivery, got %+v", result)
	}
}
