// Package handler exposes registration over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"registro/internal/registration/models"
	dErrors "registro/pkg/domain-errors"
	"registro/pkg/platform/httputil"
	"registro/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

// Service defines the registration operations the handler needs.
type Service interface {
	Register(ctx context.Context, in models.Input) (*models.RegisterResult, error)
	List(ctx context.Context) ([]*models.Registration, error)
}

// Handler wires registration endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the endpoints. /registro is kept as an alias of
// POST /employees for older clients.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/employees", h.HandleList)
	r.Post("/employees", h.HandleRegister)
	r.Post("/registro", h.HandleRegister)
}

// HandleHealth reports liveness only; it never touches storage.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleRegister handles POST /employees.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	result, err := h.service.Register(ctx, req.Input())
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration created",
		"request_id", requestcontext.RequestID(ctx),
		"registration_id", result.Registration.ID.String(),
		"duration_ms", time.Since(requestcontext.Now(ctx)).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, toRegisterResponse(result))
}

// HandleList handles GET /employees.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	regs, err := h.service.List(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(regs))
}

// writeError logs client errors at warn and server errors at error with the
// full cause, then writes the sanitized envelope.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := httputil.StatusFor(code)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"code", string(code),
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		case errors.As(err, &tooLarge):
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "request body too large")
		default:
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "request body must be a JSON object")
		}
	}
	return nil
}
