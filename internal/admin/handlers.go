package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// TokenIssuer signs access tokens for authenticated chemists. Satisfied by
// the gateway's token validator.
type TokenIssuer interface {
	Issue(userID, email, role string, ttl time.Duration) (string, error)
}

// Handlers exposes provider administration over HTTP.
type Handlers struct {
	service *Service
	issuer  TokenIssuer
	logger  *logger.Logger
}

// NewHandlers creates the admin HTTP handlers.
func NewHandlers(service *Service, issuer TokenIssuer, log *logger.Logger) *Handlers {
	return &Handlers{service: service, issuer: issuer, logger: log}
}

// RegisterRoutes registers all admin routes on the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1/admin").Subrouter()

	api.HandleFunc("/chemists", h.CreateChemist).Methods("POST")
	api.HandleFunc("/chemists", h.ListChemists).Methods("GET")
	api.HandleFunc("/chemists/{id}", h.GetChemist).Methods("GET")
	api.HandleFunc("/chemists/{id}", h.UpdateChemist).Methods("PATCH")
	api.HandleFunc("/chemists/{id}", h.DeleteChemist).Methods("DELETE")

	api.HandleFunc("/doctors", h.CreateDoctor).Methods("POST")
	api.HandleFunc("/doctors", h.ListDoctors).Methods("GET")
	api.HandleFunc("/doctors/{id}", h.GetDoctor).Methods("GET")
	api.HandleFunc("/doctors/{id}", h.UpdateDoctor).Methods("PATCH")
	api.HandleFunc("/doctors/{id}", h.DeleteDoctor).Methods("DELETE")

	profile := router.PathPrefix("/api/v1/profile").Subrouter()
	profile.HandleFunc("/login", h.Login).Methods("POST")
	profile.HandleFunc("", h.GetProfile).Methods("GET")
	profile.HandleFunc("", h.UpdateProfile).Methods("PATCH")
}

// adminID pulls the acting admin's identity injected by the gateway.
func adminID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "unknown"
}

// parseFilters reads pagination and filter query parameters.
func parseFilters(r *http.Request) *types.ListFilters {
	q := r.URL.Query()
	filters := &types.ListFilters{
		Status: q.Get("status"),
		City:   q.Get("city"),
		Search: q.Get("search"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	return filters
}

// CreateChemist registers a new chemist.
func (h *Handlers) CreateChemist(w http.ResponseWriter, r *http.Request) {
	var req CreateChemistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}
	chemist, err := h.service.CreateChemist(r.Context(), adminID(r), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, chemist)
}

// ListChemists returns a filtered page of chemists.
func (h *Handlers) ListChemists(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListChemists(r.Context(), parseFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// GetChemist returns one chemist.
func (h *Handlers) GetChemist(w http.ResponseWriter, r *http.Request) {
	chemist, err := h.service.GetChemist(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, chemist)
}

// UpdateChemist applies a partial update to a chemist.
func (h *Handlers) UpdateChemist(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}
	chemist, err := h.service.UpdateChemist(r.Context(), adminID(r), mux.Vars(r)["id"], updates)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, chemist)
}

// DeleteChemist removes a chemist.
func (h *Handlers) DeleteChemist(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteChemist(r.Context(), adminID(r), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateDoctor registers a new doctor.
func (h *Handlers) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}
	doctor, err := h.service.CreateDoctor(r.Context(), adminID(r), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, doctor)
}

// ListDoctors returns a filtered page of doctors.
func (h *Handlers) ListDoctors(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListDoctors(r.Context(), parseFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// GetDoctor returns one doctor.
func (h *Handlers) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.service.GetDoctor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doctor)
}

// UpdateDoctor applies a partial update to a doctor.
func (h *Handlers) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}
	doctor, err := h.service.UpdateDoctor(r.Context(), adminID(r), mux.Vars(r)["id"], updates)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doctor)
}

// DeleteDoctor removes a doctor.
func (h *Handlers) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDoctor(r.Context(), adminID(r), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Login exchanges chemist credentials for an access token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}

	chemist, err := h.service.VerifyChemistPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown email and wrong password answer the same way.
		h.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]string{"code": types.ErrCodeInvalidInput, "message": "Invalid credentials"},
		})
		return
	}

	token, err := h.issuer.Issue(chemist.ID, chemist.Email, "chemist", 24*time.Hour)
	if err != nil {
		h.writeError(w, types.NewInternalError(types.ErrCodeInternalError, "Failed to issue token", err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"chemist": chemist,
	})
}

// GetProfile returns the calling chemist's own record.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		h.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]string{"code": types.ErrCodeInvalidInput, "message": "Authentication required"},
		})
		return
	}
	chemist, err := h.service.GetChemist(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, chemist)
}

// UpdateProfile applies a self-service update to the calling chemist.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		h.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]string{"code": types.ErrCodeInvalidInput, "message": "Authentication required"},
		})
		return
	}
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}
	chemist, err := h.service.UpdateChemistProfile(r.Context(), id, updates)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, chemist)
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
			if perr.Code == types.ErrCodeConflict {
				status = http.StatusConflict
			}
		case types.ErrorTypeNotFound:
			status = http.StatusNotFound
		case types.ErrorTypeConflict:
			status = http.StatusConflict
		}
		h.writeJSON(w, status, map[string]interface{}{"error": perr})
		return
	}
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": types.ErrCodeInternalError, "message": "Internal server error"},
	})
}
