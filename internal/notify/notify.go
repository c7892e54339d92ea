package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"qech/dispatch-service/internal/models"
)

// Result reports what a best-effort delivery attempt did. It is returned
// to callers as response metadata and never turned into an operation error.
type Result struct {
	Attempted bool   `json:"attempted"`
	Sent      bool   `json:"sent"`
	Channel   string `json:"channel,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type Provider interface {
	Send(ctx context.Context, channel, recipient, message string) error
}

// Notifier wraps a provider with a per-attempt timeout.
type Notifier struct {
	provider Provider
	timeout  time.Duration
}

func New(kind, webhookURL string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Notifier{provider: newProvider(kind, webhookURL), timeout: timeout}
}

func (n *Notifier) send(ctx context.Context, channel, recipient, message string) Result {
	if recipient == "" {
		return Result{Attempted: false, Detail: "no recipient on file"}
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.provider.Send(ctx, channel, recipient, message); err != nil {
		log.Printf("notify failed channel=%s recipient=%s err=%v", channel, recipient, err)
		return Result{Attempted: true, Sent: false, Channel: channel, Detail: err.Error()}
	}
	return Result{Attempted: true, Sent: true, Channel: channel}
}

// TokenCreated tells the patient their token number and place in line.
func (n *Notifier) TokenCreated(ctx context.Context, token models.Token) Result {
	msg := fmt.Sprintf("Your queue token %s for %s is registered. You are number %d in line.",
		token.TokenNumber, token.DepartmentCode, token.QueuePosition)
	return n.send(ctx, "sms", token.PatientPhone, msg)
}

// TokenCalled tells the patient it is their turn.
func (n *Notifier) TokenCalled(ctx context.Context, token models.Token) Result {
	msg := fmt.Sprintf("Token %s: please proceed to %s now.", token.TokenNumber, token.DepartmentCode)
	return n.send(ctx, "sms", token.PatientPhone, msg)
}

// TokenCompleted confirms the visit is finished.
func (n *Notifier) TokenCompleted(ctx context.Context, token models.Token) Result {
	msg := fmt.Sprintf("Token %s at %s is completed. Thank you for your visit.",
		token.TokenNumber, token.DepartmentCode)
	return n.send(ctx, "sms", token.PatientPhone, msg)
}

// TokenReassigned tells the patient which department to queue at now.
func (n *Notifier) TokenReassigned(ctx context.Context, token models.Token) Result {
	msg := fmt.Sprintf("Token %s has been moved to %s. You are number %d in line.",
		token.TokenNumber, token.DepartmentCode, token.QueuePosition)
	return n.send(ctx, "sms", token.PatientPhone, msg)
}

// AppointmentBooked confirms the booked slot.
func (n *Notifier) AppointmentBooked(ctx context.Context, appt models.Appointment) Result {
	msg := fmt.Sprintf("Appointment %s confirmed for %s at %s (%s).",
		appt.AppointmentNumber, appt.AppointmentDate, appt.AppointmentTime, appt.DepartmentCode)
	return n.send(ctx, "sms", appt.PatientPhone, msg)
}

// AppointmentCancelled confirms cancellation.
func (n *Notifier) AppointmentCancelled(ctx context.Context, appt models.Appointment) Result {
	msg := fmt.Sprintf("Appointment %s on %s at %s has been cancelled.",
		appt.AppointmentNumber, appt.AppointmentDate, appt.AppointmentTime)
	return n.send(ctx, "sms", appt.PatientPhone, msg)
}

func newProvider(kind, webhookURL string) Provider {
	switch kind {
	case "", "stub", "log":
		return logProvider{}
	case "noop":
		return noopProvider{}
	case "fail":
		return failProvider{}
	case "webhook":
		if webhookURL == "" {
			return logProvider{}
		}
		return webhookProvider{url: webhookURL}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return webhookProvider{url: kind}
		}
		return logProvider{}
	}
}

type logProvider struct{}

func (logProvider) Send(ctx context.Context, channel, recipient, message string) error {
	log.Printf("send %s to %s: %s", channel, recipient, message)
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, channel, recipient, message string) error {
	return nil
}

type failProvider struct{}

func (failProvider) Send(ctx context.Context, channel, recipient, message string) error {
	return errors.New("provider failure")
}

type webhookProvider struct {
	url   string
	token string
}

func (p webhookProvider) Send(ctx context.Context, channel, recipient, message string) error {
	payload := map[string]string{
		"channel":   channel,
		"recipient": recipient,
		"message":   message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("provider rejected request")
	}
	return nil
}
