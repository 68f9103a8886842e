package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// Handlers exposes the notification center over HTTP.
type Handlers struct {
	service *Service
	logger  *logger.Logger
}

// NewHandlers creates the notification HTTP handlers.
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{service: service, logger: log}
}

// RegisterRoutes registers all notification routes on the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1/notifications").Subrouter()

	api.HandleFunc("", h.Create).Methods("POST")
	api.HandleFunc("", h.List).Methods("GET")
	api.HandleFunc("/unread-count", h.UnreadCount).Methods("GET")
	api.HandleFunc("/read-all", h.MarkAllRead).Methods("POST")
	api.HandleFunc("/{id}/read", h.MarkRead).Methods("POST")
	api.HandleFunc("/devices", h.RegisterDevice).Methods("POST")
}

// userID pulls the caller identity injected by the gateway, falling back to
// the query parameter for service-to-service calls.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("user_id")
}

// Create stores a notification and fans out pushes.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}

	n, deduplicated, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if deduplicated {
		status = http.StatusOK
	}
	h.writeJSON(w, status, map[string]interface{}{
		"notification": n,
		"deduplicated": deduplicated,
	})
}

// List returns one page of the caller's notifications.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := &types.NotificationFilters{
		UserID:     userID(r),
		UnreadOnly: q.Get("unread_only") == "true",
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filters.Offset = offset
	}

	notifications, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": notifications,
		"total": total,
	})
}

// UnreadCount returns the caller's badge count.
func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.UnreadCount(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

// MarkRead marks one notification read.
func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkRead(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// MarkAllRead marks every unread notification of the caller read.
func (h *Handlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	modified, err := h.service.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"marked": modified})
}

// RegisterDevice binds a push token to the caller.
func (h *Handlers) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var token types.DeviceToken
	if err := json.NewDecoder(r.Body).Decode(&token); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}
	if token.UserID == "" {
		token.UserID = userID(r)
	}
	if err := h.service.RegisterDevice(r.Context(), &token); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
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
