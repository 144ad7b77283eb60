package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/sharedlogin/internal/application"
	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
	"github.com/ericfisherdev/sharedlogin/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	credStore driven.CredentialStore
	subStore  driven.SubscriberStore
	credSvc   *application.CredentialService
	monitor   *application.HealthMonitor
	gatherer  prometheus.Gatherer
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. monitor may be
// nil, in which case health refreshes are unavailable. gatherer may be nil, in
// which case /metrics is not served.
func NewHandler(
	credStore driven.CredentialStore,
	subStore driven.SubscriberStore,
	credSvc *application.CredentialService,
	monitor *application.HealthMonitor,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		credStore: credStore,
		subStore:  subStore,
		credSvc:   credSvc,
		monitor:   monitor,
		gatherer:  gatherer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/credentials", h.ListCredentials)
	mux.HandleFunc("POST /api/v1/credentials", h.SaveCredential)
	mux.HandleFunc("POST /api/v1/credentials/import", h.ImportCredentials)
	mux.HandleFunc("POST /api/v1/credentials/health/refresh", h.RefreshCredentialHealth)
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", h.DeleteCredential)
	mux.HandleFunc("GET /api/v1/credentials/{id}/subscribers", h.ListCredentialSubscribers)

	mux.HandleFunc("GET /api/v1/subscribers", h.ListSubscribers)
	mux.HandleFunc("POST /api/v1/subscribers", h.SaveSubscriber)
	mux.HandleFunc("DELETE /api/v1/subscribers/{id}", h.DeleteSubscriber)
	mux.HandleFunc("POST /api/v1/subscribers/{id}/restore", h.RestoreSubscriber)
	mux.HandleFunc("GET /api/v1/subscribers/{phone}/assignment", h.GetAssignment)
	mux.HandleFunc("GET /api/v1/subscribers/{phone}/status", h.GetSubscriberStatus)

	mux.HandleFunc("DELETE /api/v1/services/{service}/subscriptions", h.RemoveServiceSubscriptions)

	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListCredentials returns every credential, newest first, with its health and
// current subscriber count.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	loads, err := h.credSvc.CredentialLoads(r.Context())
	if err != nil {
		h.writeStoreError(w, "failed to list credentials", err)
		return
	}

	resp := make([]CredentialLoadResponse, 0, len(loads))
	for _, l := range loads {
		resp = append(resp, toCredentialLoadResponse(l))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SaveCredential creates a credential, or replaces it when the request
// carries the ID of a stored one.
func (h *Handler) SaveCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	cred := model.Credential{
		ID:          req.ID,
		Service:     req.Service,
		AccountID:   req.AccountID,
		Secret:      req.Secret,
		PublishedAt: time.Now().UTC(),
		Visible:     true,
	}
	if req.PublishedAt != nil {
		cred.PublishedAt = req.PublishedAt.UTC()
	}
	if req.Visible != nil {
		cred.Visible = *req.Visible
	}

	id, err := h.credStore.Upsert(r.Context(), cred)
	if err != nil {
		h.writeStoreError(w, "failed to save credential", err)
		return
	}
	cred.ID = id
	h.refreshHealthAsync()

	writeJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// ImportCredentials bulk-imports one credential per line of text. Rows that
// fail are reported without aborting the rest.
func (h *Handler) ImportCredentials(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	n, err := h.credSvc.ImportCredentials(r.Context(), req.Service, req.Text)
	if n == 0 && errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		writeError(w, http.StatusServiceUnavailable, "credential encryption is not configured")
		return
	}
	if n > 0 {
		h.refreshHealthAsync()
	}

	writeJSON(w, http.StatusOK, ImportResponse{Imported: n, Errors: joinedMessages(err)})
}

// DeleteCredential permanently removes a credential.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.credStore.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeStoreError(w, "failed to delete credential", err)
		return
	}
	h.refreshHealthAsync()

	w.WriteHeader(http.StatusNoContent)
}

// RefreshCredentialHealth runs a health sweep immediately, waits for it, and
// returns the refreshed credential list.
func (h *Handler) RefreshCredentialHealth(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "health monitor is not running")
		return
	}

	if err := h.monitor.Refresh(r.Context()); err != nil {
		h.writeStoreError(w, "failed to refresh credential health", err)
		return
	}

	h.ListCredentials(w, r)
}

// refreshHealthAsync sweeps credential health after a write so the gauges do
// not wait for the next interval.
func (h *Handler) refreshHealthAsync() {
	if h.monitor == nil {
		return
	}

	// The request context is canceled once the response is sent.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.monitor.Refresh(ctx); err != nil {
			h.logger.Error("async health refresh failed", "error", err)
		}
	}()
}

// ListCredentialSubscribers returns the subscribers currently mapped to a
// credential, in roster order.
func (h *Handler) ListCredentialSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.credSvc.SubscribersOn(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, "failed to list credential subscribers", err)
		return
	}

	writeJSON(w, http.StatusOK, toSubscriberResponses(subs))
}

// ListSubscribers returns every subscriber. Soft-deleted subscribers are
// included only with ?deleted=true.
func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subStore.List(r.Context())
	if err != nil {
		h.writeStoreError(w, "failed to list subscribers", err)
		return
	}

	includeDeleted := r.URL.Query().Get("deleted") == "true"
	filtered := make([]model.Subscriber, 0, len(subs))
	for _, s := range subs {
		if s.Deleted && !includeDeleted {
			continue
		}
		filtered = append(filtered, s)
	}

	writeJSON(w, http.StatusOK, toSubscriberResponses(filtered))
}

// SaveSubscriber creates or replaces a subscriber. Subscriptions are always
// stored in the native list encoding.
func (h *Handler) SaveSubscriber(w http.ResponseWriter, r *http.Request) {
	var req SubscriberRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	sub := model.Subscriber{
		ID:              req.ID,
		Phone:           req.Phone,
		Name:            req.Name,
		Subscriptions:   model.NewSubscriptionList(nonNil(req.Subscriptions)),
		PurchaseDate:    time.Now().UTC(),
		DurationMonths:  req.DurationMonths,
		Debtor:          req.Debtor,
		Contacted:       req.Contacted,
		ManualOverrides: req.ManualOverrides,
	}
	if req.PurchaseDate != nil {
		sub.PurchaseDate = req.PurchaseDate.UTC()
	}

	id, err := h.subStore.Upsert(r.Context(), sub)
	if err != nil {
		h.writeStoreError(w, "failed to save subscriber", err)
		return
	}
	sub.ID = id

	writeJSON(w, http.StatusCreated, toSubscriberResponse(sub))
}

// DeleteSubscriber soft-deletes a subscriber, or removes it permanently with
// ?purge=true.
func (h *Handler) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var err error
	if r.URL.Query().Get("purge") == "true" {
		err = h.subStore.Purge(r.Context(), id)
	} else {
		err = h.subStore.SetDeleted(r.Context(), id, true)
	}
	if err != nil {
		h.writeStoreError(w, "failed to delete subscriber", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestoreSubscriber clears the soft-delete flag.
func (h *Handler) RestoreSubscriber(w http.ResponseWriter, r *http.Request) {
	if err := h.subStore.SetDeleted(r.Context(), r.PathValue("id"), false); err != nil {
		h.writeStoreError(w, "failed to restore subscriber", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAssignment resolves which credential the subscriber uses for ?service=.
func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	if service == "" {
		writeError(w, http.StatusBadRequest, "service query parameter is required")
		return
	}

	a, err := h.credSvc.AssignmentFor(r.Context(), r.PathValue("phone"), service)
	if err != nil {
		h.writeStoreError(w, "failed to resolve assignment", err)
		return
	}

	writeJSON(w, http.StatusOK, toAssignmentResponse(a))
}

// GetSubscriberStatus returns the expiry status of every service the
// subscriber pays for.
func (h *Handler) GetSubscriberStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.credSvc.SubscriberStatus(r.Context(), r.PathValue("phone"))
	if err != nil {
		h.writeStoreError(w, "failed to compute subscriber status", err)
		return
	}

	resp := make([]ServiceStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		resp = append(resp, toServiceStatusResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RemoveServiceSubscriptions drops a service from every subscriber.
func (h *Handler) RemoveServiceSubscriptions(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	n, err := h.credSvc.RemoveService(r.Context(), service)
	if err != nil {
		h.writeStoreError(w, "failed to remove service", err)
		return
	}

	writeJSON(w, http.StatusOK, RemoveServiceResponse{Service: service, Updated: n})
}

// decodeAndValidate decodes the JSON body into dst and validates it. On
// failure it writes a 400 response and returns false.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// writeStoreError maps port sentinel errors to status codes. Anything
// unrecognized is logged and reported as a 500.
func (h *Handler) writeStoreError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, driven.ErrCredentialNotFound):
		writeError(w, http.StatusNotFound, "credential not found")
	case errors.Is(err, driven.ErrSubscriberNotFound):
		writeError(w, http.StatusNotFound, "subscriber not found")
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusServiceUnavailable, "credential encryption is not configured")
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
