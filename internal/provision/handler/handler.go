// Package handler is the HTTP surface of the provisioning module. Handlers
// decode, validate, delegate to the service, and translate coded errors;
// no orchestration logic lives here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"detour/internal/artifact"
	"detour/internal/provision/models"
	"detour/internal/provision/service"
	"detour/internal/singbox"
	dErrors "detour/pkg/domain-errors"
	"detour/pkg/platform/httputil"
	"detour/pkg/platform/sentinel"
	"detour/pkg/requestcontext"
)

// Service defines the provisioning operations the handler exposes.
type Service interface {
	CreateClient(ctx context.Context, name, email, platform string) (*models.Record, *singbox.Document, error)
	Reconcile(ctx context.Context, name string) (*models.Record, *singbox.Document, error)
	GetClient(ctx context.Context, name string) (*models.Record, error)
	ListClients(ctx context.Context) ([]*models.Record, error)
	DeleteClient(ctx context.Context, name string) error
	ServerStatus(ctx context.Context) []service.RegionStatus
}

// AuthService verifies admin credentials and issues bearer tokens.
type AuthService interface {
	Login(username, password string) (string, error)
}

// DocumentReader serves stored configuration documents.
type DocumentReader interface {
	Read(fileName string) (json.RawMessage, error)
	List() ([]artifact.Info, error)
}

// Handler wires provisioning endpoints to the provisioning service.
type Handler struct {
	service   Service
	auth      AuthService
	documents DocumentReader
	logger    *slog.Logger
}

// New constructs a provisioning handler with its dependencies.
func New(service Service, auth AuthService, documents DocumentReader, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		auth:      auth,
		documents: documents,
		logger:    logger,
	}
}

// Register mounts all endpoints. requireAuth guards the management routes;
// health and document fetch stay open so client agents can pull configs.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/api/auth/login", h.HandleLogin)
	r.Get("/api/health", h.HandleHealth)
	r.Get("/api/configs/{fileName}", h.HandleGetConfig)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/api/clients", h.HandleCreateClient)
		r.Get("/api/clients", h.HandleListClients)
		r.Get("/api/clients/{name}", h.HandleGetClient)
		r.Delete("/api/clients/{name}", h.HandleDeleteClient)
		r.Post("/api/clients/{name}/reconcile", h.HandleReconcile)
		r.Get("/api/configs", h.HandleListConfigs)
		r.Get("/api/status/servers", h.HandleServerStatus)
	})
}

// HandleLogin handles POST /api/auth/login requests.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "admin login failed",
			"request_id", requestID,
			"username", req.Username,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "admin logged in",
		"request_id", requestID,
		"username", req.Username,
	)
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// HandleCreateClient handles POST /api/clients requests.
func (h *Handler) HandleCreateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateClientRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, doc, err := h.service.CreateClient(ctx, req.Name, req.Email, req.Platform)
	if err != nil {
		h.logger.ErrorContext(ctx, "client provisioning failed",
			"request_id", requestID,
			"client", req.Name,
			"platform", req.Platform,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "client provisioned",
		"request_id", requestID,
		"client", record.Client.Name,
		"platform", record.Client.Platform,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, h.recordWithConfig(record, doc))
}

// HandleReconcile handles POST /api/clients/{name}/reconcile requests.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	name := chi.URLParam(r, "name")

	record, doc, err := h.service.Reconcile(ctx, name)
	if err != nil {
		h.logger.ErrorContext(ctx, "client reconciliation failed",
			"request_id", requestID,
			"client", name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "client reconciled",
		"request_id", requestID,
		"client", name,
	)
	httputil.WriteJSON(w, http.StatusOK, h.recordWithConfig(record, doc))
}

// HandleListClients handles GET /api/clients requests.
func (h *Handler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.service.ListClients(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list clients",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(records))
}

// HandleGetClient handles GET /api/clients/{name} requests.
func (h *Handler) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	record, err := h.service.GetClient(ctx, name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// HandleDeleteClient handles DELETE /api/clients/{name} requests.
func (h *Handler) HandleDeleteClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	name := chi.URLParam(r, "name")

	if err := h.service.DeleteClient(ctx, name); err != nil {
		h.logger.ErrorContext(ctx, "client deletion failed",
			"request_id", requestID,
			"client", name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "client deleted",
		"request_id", requestID,
		"client", name,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListConfigs handles GET /api/configs requests.
func (h *Handler) HandleListConfigs(w http.ResponseWriter, r *http.Request) {
	infos, err := h.documents.List()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list documents",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, infos)
}

// HandleGetConfig handles GET /api/configs/{fileName} requests. This route
// is unauthenticated: client agents poll it for updated documents.
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "fileName")

	payload, err := h.documents.Read(fileName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "document not found"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid document name"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// HandleServerStatus handles GET /api/status/servers requests.
func (h *Handler) HandleServerStatus(w http.ResponseWriter, r *http.Request) {
	statuses := h.service.ServerStatus(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"regions": statuses,
	})
}

// HandleHealth handles GET /api/health requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) recordWithConfig(record *models.Record, doc *singbox.Document) CreateClientResponse {
	payload, err := doc.Marshal()
	if err != nil {
		// The document was just marshaled for storage; a failure here is
		// unreachable in practice. Fall back to the record alone.
		payload = nil
	}
	return CreateClientResponse{
		ClientResponse: FromRecord(record),
		Config:         payload,
	}
}
