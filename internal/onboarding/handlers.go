package onboarding

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// Handlers exposes the wizard and the submission registry over HTTP.
type Handlers struct {
	service  *Service
	registry *RegistryService
	logger   *logger.Logger
}

// NewHandlers creates the onboarding HTTP handlers.
func NewHandlers(service *Service, registry *RegistryService, log *logger.Logger) *Handlers {
	return &Handlers{service: service, registry: registry, logger: log}
}

// RegisterRoutes registers all onboarding routes on the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1/onboarding").Subrouter()

	api.HandleFunc("/sessions", h.StartSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", h.GetState).Methods("GET")
	api.HandleFunc("/sessions/{id}/next", h.Next).Methods("POST")
	api.HandleFunc("/sessions/{id}/prev", h.Prev).Methods("POST")
	api.HandleFunc("/sessions/{id}/fields", h.FieldChange).Methods("PATCH")
	api.HandleFunc("/sessions/{id}/documents/{slot}", h.FileAttach).Methods("POST")
	api.HandleFunc("/sessions/{id}/documents/{slot}", h.FileRemove).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/signature", h.CaptureSignature).Methods("POST")
	api.HandleFunc("/sessions/{id}/services", h.ServiceAdd).Methods("POST")
	api.HandleFunc("/sessions/{id}/services/{index}", h.ServiceRemove).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/kyc", h.StartKYC).Methods("POST")
	api.HandleFunc("/kyc/callback", h.KYCCallback).Methods("GET")
	api.HandleFunc("/sessions/{id}/submit", h.Submit).Methods("POST")

	registry := router.PathPrefix("/api/v1/applications").Subrouter()
	registry.HandleFunc("", h.SubmitApplication).Methods("POST")
	registry.HandleFunc("", h.ListApplications).Methods("GET")
	registry.HandleFunc("/{id}", h.GetApplication).Methods("GET")
	registry.HandleFunc("/{id}/status", h.DecideApplication).Methods("PATCH")
}

// StartSession creates a fresh wizard session.
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	sessionID, state, err := h.service.StartSession(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": sessionID,
		"state":      stateView(state),
	})
}

// GetState returns the current wizard state for a session.
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.GetState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stateView(state))
}

// Next validates the current step and advances.
func (h *Handlers) Next(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Next(r.Context(), mux.Vars(r)["id"])
	h.writeStateResult(w, state, err)
}

// Prev moves back one step.
func (h *Handlers) Prev(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Prev(r.Context(), mux.Vars(r)["id"])
	h.writeStateResult(w, state, err)
}

// FieldChange applies one field edit.
func (h *Handlers) FieldChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}
	state, err := h.service.FieldChange(r.Context(), mux.Vars(r)["id"], req.Name, req.Value)
	h.writeStateResult(w, state, err)
}

// FileAttach accepts a multipart file upload into a document slot.
func (h *Handlers) FileAttach(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slot := types.DocumentSlot(vars["slot"])

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Missing file part", nil))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, types.NewInternalError(types.ErrCodeInternalError, "Failed to read upload", err))
		return
	}

	att := &types.Attachment{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}
	state, err := h.service.FileAttach(r.Context(), vars["id"], slot, att)
	h.writeStateResult(w, state, err)
}

// FileRemove clears a document slot.
func (h *Handlers) FileRemove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	state, err := h.service.FileRemove(r.Context(), vars["id"], types.DocumentSlot(vars["slot"]))
	h.writeStateResult(w, state, err)
}

// CaptureSignature stores a drawn signature submitted as a PNG data URI.
func (h *Handlers) CaptureSignature(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DataURI string `json:"data_uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}
	state, err := h.service.CaptureSignature(r.Context(), mux.Vars(r)["id"], req.DataURI)
	h.writeStateResult(w, state, err)
}

// ServiceAdd appends one service row.
func (h *Handlers) ServiceAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Price string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}
	state, err := h.service.ServiceAdd(r.Context(), mux.Vars(r)["id"], req.Name, req.Price)
	h.writeStateResult(w, state, err)
}

// ServiceRemove deletes the service row at index.
func (h *Handlers) ServiceRemove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Service index must be a number", nil))
		return
	}
	state, opErr := h.service.ServiceRemove(r.Context(), vars["id"], index)
	h.writeStateResult(w, state, opErr)
}

// StartKYC begins the verification round trip and returns the redirect URL.
func (h *Handlers) StartKYC(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := h.service.StartKYC(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"redirect_url": redirectURL})
}

// KYCCallback completes the verification round trip when the applicant
// returns from the provider.
func (h *Handlers) KYCCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	stateParam := r.URL.Query().Get("state")
	sessionID := r.URL.Query().Get("session_id")

	if sessionID == "" {
		sid, err := h.service.kyc.VerifyStateSession(stateParam)
		if err != nil {
			h.writeError(w, types.NewExternalError(types.ErrCodeKYCFailed, "Verification state is invalid", err))
			return
		}
		sessionID = sid
	}

	state, err := h.service.CompleteKYC(r.Context(), sessionID, token, stateParam)
	if err != nil {
		// The form was rolled back; return the restored state with the error
		// so the client can show both.
		h.writeJSON(w, statusFor(err), map[string]interface{}{
			"error": errView(err),
			"state": stateView(state),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, stateView(state))
}

// Submit runs final validation and delivers the application.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	result, state, err := h.service.Submit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeJSON(w, statusFor(err), map[string]interface{}{
			"error": errView(err),
			"state": stateView(state),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"result": result,
		"state":  stateView(state),
	})
}

// SubmitApplication is the registry ingest endpoint for finished submissions.
func (h *Handlers) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Expected a multipart body", nil))
		return
	}

	form, err := ParseSubmission(mr, DefaultMaxDocumentBytes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	app, err := h.registry.Register(r.Context(), form)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, types.SubmissionResult{
		Success:       true,
		Message:       "Application received",
		ApplicationID: app.ID,
	})
}

// GetApplication returns one registered application.
func (h *Handlers) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.registry.GetApplication(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, app)
}

// ListApplications returns one page of applications for review.
func (h *Handlers) ListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	apps, total, err := h.registry.ListApplications(r.Context(), q.Get("status"), limit, (page-1)*limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": apps,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// DecideApplication approves or rejects an application.
func (h *Handlers) DecideApplication(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body", nil))
		return
	}

	app, err := h.registry.Decide(r.Context(), mux.Vars(r)["id"], req.Status, r.Header.Get("X-User-ID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, app)
}

// documentView summarizes an attachment without its bytes.
type documentView struct {
	Attached    bool   `json:"attached"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

type stateResponse struct {
	Step       int                     `json:"step"`
	Form       *types.OnboardingForm   `json:"form"`
	Documents  map[string]documentView `json:"documents"`
	Errors     map[string]string       `json:"errors"`
	Submitting bool                    `json:"submitting"`
}

// stateView shapes the state for transport: document bytes are replaced with
// metadata so session reads stay small.
func stateView(state *State) *stateResponse {
	if state == nil {
		return nil
	}
	docs := make(map[string]documentView, len(types.DocumentSlots))
	for _, slot := range types.DocumentSlots {
		att := state.Form.Documents[slot]
		if att == nil {
			docs[string(slot)] = documentView{}
			continue
		}
		docs[string(slot)] = documentView{
			Attached:    true,
			FileName:    att.FileName,
			ContentType: att.ContentType,
			Size:        att.Size,
		}
	}

	// Shallow copy with documents stripped; the documents map travels as
	// metadata alongside.
	form := *state.Form
	form.Documents = nil

	return &stateResponse{
		Step:       int(state.Step),
		Form:       &form,
		Documents:  docs,
		Errors:     state.Errors,
		Submitting: state.Submitting,
	}
}

func (h *Handlers) writeStateResult(w http.ResponseWriter, state *State, err error) {
	if err != nil {
		h.writeJSON(w, statusFor(err), map[string]interface{}{
			"error": errView(err),
			"state": stateView(state),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, stateView(state))
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, statusFor(err), map[string]interface{}{"error": errView(err)})
}

func errView(err error) interface{} {
	var perr *types.PlatformError
	if errors.As(err, &perr) {
		return perr
	}
	return map[string]string{"code": types.ErrCodeInternalError, "message": "Internal server error"}
}

func statusFor(err error) int {
	var perr *types.PlatformError
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError
	}
	switch perr.Type {
	case types.ErrorTypeValidation, types.ErrorTypeUploadRejected:
		if perr.Code == types.ErrCodeSubmitInFlight || perr.Code == types.ErrCodeConflict {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeConflict:
		return http.StatusConflict
	case types.ErrorTypeExternal:
		return http.StatusBadGateway
	case types.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case types.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
