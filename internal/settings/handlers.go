package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// Handlers exposes the settings console over HTTP.
type Handlers struct {
	service *Service
	logger  *logger.Logger
}

// NewHandlers creates the settings HTTP handlers.
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{service: service, logger: log}
}

// RegisterRoutes registers all settings routes on the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1/settings").Subrouter()

	api.HandleFunc("", h.All).Methods("GET")
	api.HandleFunc("/smtp/test", h.TestSMTP).Methods("POST")
	api.HandleFunc("/{section}", h.Get).Methods("GET")
	api.HandleFunc("/{section}", h.Update).Methods("PUT")
}

// All returns every stored section.
func (h *Handlers) All(w http.ResponseWriter, r *http.Request) {
	sections, err := h.service.All(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sections)
}

// Get returns one section's document.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	section := types.SettingsSection(mux.Vars(r)["section"])
	doc, err := h.service.Get(r.Context(), section)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// Update replaces one section's document.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	section := types.SettingsSection(mux.Vars(r)["section"])

	var document json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&document); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}

	updatedBy := r.Header.Get("X-User-ID")
	if updatedBy == "" {
		updatedBy = "unknown"
	}

	if err := h.service.Update(r.Context(), section, document, updatedBy); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// TestSMTP runs a live SMTP connection test. The request may carry a
// candidate configuration to test before saving; with an empty body the
// stored configuration is used. The response is always 200 with a structured
// result so the console can key its remediation hints off the code.
func (h *Handlers) TestSMTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settings  *types.SMTPSettings `json:"settings,omitempty"`
		Recipient string              `json:"recipient,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
			return
		}
	}

	result, err := h.service.TestSMTP(r.Context(), req.Settings, req.Recipient)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var perr *types.PlatformError
	if errors.As(err, &perr) {
		switch perr.Type {
		case types.ErrorTypeValidation:
			status = http.StatusBadRequest
		case types.ErrorTypeNotFound:
			status = http.StatusNotFound
		case types.ErrorTypeExternal:
			status = http.StatusBadGateway
		}
		h.writeJSON(w, status, map[string]interface{}{"error": perr})
		return
	}
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": types.ErrCodeInternalError, "message": "Internal server error"},
	})
}
