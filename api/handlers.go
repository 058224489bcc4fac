// Package api is the HTTP surface used by the canvassing UI: printing,
// previews, share text, contact capture and printer control.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/booth-printer/message"
	"github.com/nixxel-company-limited/booth-printer/models"
	"github.com/nixxel-company-limited/booth-printer/printer"
	"github.com/nixxel-company-limited/booth-printer/session"
	"github.com/nixxel-company-limited/booth-printer/store"
)

// JobLoader turns a voter id into a print job.
type JobLoader interface {
	Load(ctx context.Context, id string, family bool) (models.PrintJob, error)
}

// ContactWriter stores a voter's contact number.
type ContactWriter interface {
	SetContact(ctx context.Context, id string, field models.ContactField, value string) error
}

// Printer runs print jobs.
type Printer interface {
	Print(ctx context.Context, job models.PrintJob) (session.Result, error)
}

// Previewer renders a job without printing it.
type Previewer interface {
	Compose(job models.PrintJob) (image.Image, error)
}

// PrinterControl manages the shared printer connection.
type PrinterControl interface {
	Acquire(ctx context.Context) (*printer.DeviceConnection, error)
	Disconnect() error
	Status() printer.Status
}

// Deps are the collaborators a Handler calls directly.
type Deps struct {
	Jobs      JobLoader
	Contacts  ContactWriter
	Session   Printer
	Previewer Previewer
	Messages  *message.Composer
	Printer   PrinterControl
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandler creates a new handler instance
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{deps: deps, logger: logger.Named("api")}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// ShareResponse carries the text to share and the stored numbers that are
// usable as-is; malformed numbers are left out so the client asks for one.
type ShareResponse struct {
	Text     string `json:"text"`
	Phone    string `json:"phone,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

// ContactRequest is the body of PUT /voters/{id}/contact
type ContactRequest struct {
	Type   models.ContactField `json:"type"`
	Number string              `json:"number"`
}

func familyParam(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("family")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request) (models.PrintJob, bool) {
	family, err := familyParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "family must be a boolean")
		return models.PrintJob{}, false
	}

	job, err := h.deps.Jobs.Load(r.Context(), mux.Vars(r)["id"], family)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "voter not found")
		} else {
			h.logger.Error("load voter", zap.Error(err))
			h.writeError(w, http.StatusServiceUnavailable, "failed to load voter")
		}
		return models.PrintJob{}, false
	}
	return job, true
}

// PrintHandler handles POST /print/voters/{id}
func (h *Handler) PrintHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	res, err := h.deps.Session.Print(r.Context(), job)
	if err != nil {
		h.writeError(w, printStatus(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func printStatus(err error) int {
	var serr *session.Error
	if !errors.As(err, &serr) {
		return http.StatusInternalServerError
	}
	switch serr.Kind {
	case session.KindInvalidJob:
		return http.StatusBadRequest
	case session.KindBusy:
		return http.StatusConflict
	case session.KindNoDevice:
		return http.StatusServiceUnavailable
	case session.KindTransportFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// PreviewHandler handles GET /preview/voters/{id}
func (h *Handler) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	if err := job.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := h.deps.Previewer.Compose(job)
	if err != nil {
		h.logger.Error("compose preview", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to encode preview")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ShareHandler handles GET /share/voters/{id}
func (h *Handler) ShareHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	if err := job.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := ShareResponse{Text: h.deps.Messages.Compose(job)}
	if message.HasPhone(job.Primary.Phone) {
		resp.Phone = job.Primary.Phone
	}
	if message.HasPhone(job.Primary.WhatsApp) {
		resp.WhatsApp = job.Primary.WhatsApp
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ContactHandler handles PUT /voters/{id}/contact
func (h *Handler) ContactHandler(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if !req.Type.Valid() {
		h.writeError(w, http.StatusBadRequest, "type must be phone or whatsapp")
		return
	}

	number, err := message.NormalizePhone(req.Number)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.deps.Contacts.SetContact(r.Context(), id, req.Type, number); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "voter not found")
		} else {
			h.logger.Error("save contact", zap.String("voter", id), zap.Error(err))
			h.writeError(w, http.StatusServiceUnavailable, "failed to save contact")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, ContactRequest{Type: req.Type, Number: number})
}

// PrinterStatusHandler handles GET /printer
func (h *Handler) PrinterStatusHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.deps.Printer.Status())
}

// ConnectHandler handles POST /printer/connect
func (h *Handler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := h.deps.Printer.Acquire(r.Context()); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, printer.ErrPermissionDenied) {
			status = http.StatusForbidden
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.deps.Printer.Status())
}

// DisconnectHandler handles POST /printer/disconnect
func (h *Handler) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Printer.Disconnect(); err != nil {
		h.logger.Warn("disconnect", zap.Error(err))
	}
	h.writeJSON(w, http.StatusOK, h.deps.Printer.Status())
}

// HealthHandler handles GET /health
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"printer":   h.deps.Printer.Status().Connected,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.logger.Debug("request failed", zap.Int("status", status), zap.String("error", message))
	h.writeJSON(w, status, ErrorResponse{Error: message})
}
