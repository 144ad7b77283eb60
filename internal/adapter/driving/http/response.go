package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ericfisherdev/sharedlogin/internal/application"
	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// validationMessage flattens validator errors into one client-facing line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// joinedMessages unpacks an errors.Join result into its messages.
func joinedMessages(err error) []string {
	if err == nil {
		return []string{}
	}
	var errs []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	} else {
		errs = []error{err}
	}
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

// CredentialRequest is the JSON body for creating or replacing a credential.
type CredentialRequest struct {
	ID          string     `json:"id" validate:"omitempty,max=64"`
	Service     string     `json:"service" validate:"required,max=64"`
	AccountID   string     `json:"account_id" validate:"required,max=256"`
	Secret      string     `json:"secret" validate:"required,max=256"`
	PublishedAt *time.Time `json:"published_at"`
	Visible     *bool      `json:"visible"`
}

// ImportRequest is the JSON body for a bulk credential import.
type ImportRequest struct {
	Service string `json:"service" validate:"required,max=64"`
	Text    string `json:"text" validate:"required"`
}

// ImportResponse reports how many rows were stored and why others failed.
type ImportResponse struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// SubscriberRequest is the JSON body for creating or replacing a subscriber.
type SubscriberRequest struct {
	ID              string            `json:"id" validate:"omitempty,max=64"`
	Phone           string            `json:"phone" validate:"required,min=5,max=20"`
	Name            string            `json:"name" validate:"max=128"`
	Subscriptions   []string          `json:"subscriptions" validate:"dive,required"`
	PurchaseDate    *time.Time        `json:"purchase_date"`
	DurationMonths  int               `json:"duration_months" validate:"gte=0,lte=120"`
	Debtor          bool              `json:"is_debtor"`
	Contacted       bool              `json:"is_contacted"`
	ManualOverrides map[string]string `json:"manual_overrides" validate:"dive,keys,required,endkeys,required"`
}

// CredentialResponse is the JSON representation of a credential.
type CredentialResponse struct {
	ID          string `json:"id"`
	Service     string `json:"service"`
	AccountID   string `json:"account_id"`
	Secret      string `json:"secret"`
	PublishedAt string `json:"published_at"`
	Visible     bool   `json:"visible"`
}

// HealthStatusResponse is the renewal state of a credential.
type HealthStatusResponse struct {
	Status        string `json:"status"`
	Label         string `json:"label"`
	DaysActive    int    `json:"days_active"`
	DaysRemaining int    `json:"days_remaining"`
}

// CredentialLoadResponse is a credential with its health and subscriber count.
type CredentialLoadResponse struct {
	CredentialResponse
	Health      HealthStatusResponse `json:"health"`
	Subscribers int                  `json:"subscribers"`
}

// SubscriberResponse is the JSON representation of a subscriber.
// Subscriptions are always rendered in the normalized list form.
type SubscriberResponse struct {
	ID              string            `json:"id"`
	Phone           string            `json:"phone"`
	Name            string            `json:"name"`
	Subscriptions   []string          `json:"subscriptions"`
	PurchaseDate    string            `json:"purchase_date"`
	DurationMonths  int               `json:"duration_months"`
	Deleted         bool              `json:"deleted"`
	Debtor          bool              `json:"is_debtor"`
	Contacted       bool              `json:"is_contacted"`
	ManualOverrides map[string]string `json:"manual_overrides"`
}

// AssignmentResponse is the result of a forward assignment. Credential and
// Alert are null when absent.
type AssignmentResponse struct {
	Credential *CredentialResponse `json:"credential"`
	Alert      *string             `json:"alert"`
	DaysActive int                 `json:"days_active"`
	Manual     bool                `json:"manual"`
	Overflow   bool                `json:"overflow"`
}

// ServiceStatusResponse is the expiry status of one subscribed service.
type ServiceStatusResponse struct {
	Service       string `json:"service"`
	ActivatedAt   string `json:"activated_at"`
	ExpiresAt     string `json:"expires_at"`
	DaysRemaining int    `json:"days_remaining"`
	Status        string `json:"status"`
}

// RemoveServiceResponse reports how many subscribers lost the service.
type RemoveServiceResponse struct {
	Service string `json:"service"`
	Updated int    `json:"updated"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toCredentialResponse(c model.Credential) CredentialResponse {
	return CredentialResponse{
		ID:          c.ID,
		Service:     c.Service,
		AccountID:   c.AccountID,
		Secret:      c.Secret,
		PublishedAt: c.PublishedAt.UTC().Format(time.RFC3339),
		Visible:     c.Visible,
	}
}

func toCredentialLoadResponse(l model.CredentialLoad) CredentialLoadResponse {
	return CredentialLoadResponse{
		CredentialResponse: toCredentialResponse(l.Credential),
		Health: HealthStatusResponse{
			Status:        string(l.Health.Status),
			Label:         l.Health.Label,
			DaysActive:    l.Health.DaysActive,
			DaysRemaining: l.Health.DaysRemaining,
		},
		Subscribers: l.Subscribers,
	}
}

func toSubscriberResponse(s model.Subscriber) SubscriberResponse {
	overrides := s.ManualOverrides
	if overrides == nil {
		overrides = map[string]string{}
	}
	return SubscriberResponse{
		ID:              s.ID,
		Phone:           s.Phone,
		Name:            s.Name,
		Subscriptions:   application.NormalizeSubscriptions(s.Subscriptions),
		PurchaseDate:    s.PurchaseDate.UTC().Format(time.RFC3339),
		DurationMonths:  s.DurationMonths,
		Deleted:         s.Deleted,
		Debtor:          s.Debtor,
		Contacted:       s.Contacted,
		ManualOverrides: overrides,
	}
}

func toSubscriberResponses(subs []model.Subscriber) []SubscriberResponse {
	resp := make([]SubscriberResponse, 0, len(subs))
	for _, s := range subs {
		resp = append(resp, toSubscriberResponse(s))
	}
	return resp
}

func toAssignmentResponse(a model.Assignment) AssignmentResponse {
	resp := AssignmentResponse{
		DaysActive: a.DaysActive,
		Manual:     a.Manual,
		Overflow:   a.Overflow,
	}
	if a.Credential != nil {
		c := toCredentialResponse(*a.Credential)
		resp.Credential = &c
	}
	if a.Alert != "" {
		alert := a.Alert
		resp.Alert = &alert
	}
	return resp
}

func toServiceStatusResponse(s model.ServiceStatus) ServiceStatusResponse {
	return ServiceStatusResponse{
		Service:       s.Service,
		ActivatedAt:   s.ActivatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:     s.ExpiresAt.UTC().Format(time.RFC3339),
		DaysRemaining: s.DaysRemaining,
		Status:        string(s.Status),
	}
}
