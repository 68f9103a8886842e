package onboarding

import (
	"strconv"
	"strings"

	"github.com/medimart/platform/pkg/types"
)

// Upload ceilings. Enforced at attach time, never deferred to submission.
const (
	DefaultMaxDocumentBytes  = 5 * 1024 * 1024
	DefaultMaxSignatureBytes = 2 * 1024 * 1024
)

// documentMIMETypes is the attach-time allow-list for general documents.
var documentMIMETypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// signatureMIMETypes restricts the signature slot to images.
var signatureMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Wizard applies onboarding events to a session's state. All mutation funnels
// through its methods so the transition rules live in one place. The Wizard
// itself holds no I/O; persistence is the caller's job.
type Wizard struct {
	state             *State
	maxDocumentBytes  int64
	maxSignatureBytes int64
}

// NewWizard wraps a state with the default upload ceilings.
func NewWizard(state *State) *Wizard {
	return &Wizard{
		state:             state,
		maxDocumentBytes:  DefaultMaxDocumentBytes,
		maxSignatureBytes: DefaultMaxSignatureBytes,
	}
}

// NewWizardWithLimits wraps a state with configured upload ceilings.
func NewWizardWithLimits(state *State, maxDocumentBytes, maxSignatureBytes int64) *Wizard {
	w := NewWizard(state)
	if maxDocumentBytes > 0 {
		w.maxDocumentBytes = maxDocumentBytes
	}
	if maxSignatureBytes > 0 {
		w.maxSignatureBytes = maxSignatureBytes
	}
	return w
}

// State returns the wizard's state.
func (w *Wizard) State() *State {
	return w.state
}

// Next validates the current step and advances the step pointer only when the
// error set is empty. On failure the full error set for the step replaces the
// errors map and the pointer does not move.
func (w *Wizard) Next() error {
	errs := ValidateStep(w.state.Step, w.state.Form)
	if len(errs) > 0 {
		w.state.Errors = errs
		return types.NewValidationError(types.ErrCodeValidationFailed,
			"Please fix the highlighted fields before continuing",
			errorDetails(errs))
	}

	w.state.Errors = map[string]string{}
	if w.state.Step < types.StepLast {
		w.state.Step++
	}
	return nil
}

// Prev moves the step pointer back one step. Backward transitions never
// validate and never discard input.
func (w *Wizard) Prev() {
	if w.state.Step > types.StepFirst {
		w.state.Step--
	}
}

// FieldChange sets one named field and optimistically clears that field's
// error. It does not re-validate the rest of the form.
func (w *Wizard) FieldChange(name, value string) error {
	if err := setField(w.state.Form, name, value); err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, err.Error(), nil)
	}
	delete(w.state.Errors, name)
	return nil
}

// FileAttach places a file into a document slot. Files over the ceiling or
// outside the MIME allow-list are rejected before they ever enter state.
func (w *Wizard) FileAttach(slot types.DocumentSlot, att *types.Attachment) error {
	if !validSlot(slot) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Unknown document slot: "+string(slot), nil)
	}
	if att == nil || len(att.Data) == 0 {
		return types.NewUploadRejectedError(types.ErrCodeInvalidInput, "No file provided")
	}

	limit := w.maxDocumentBytes
	allowed := documentMIMETypes
	if slot == types.SlotSignature {
		limit = w.maxSignatureBytes
		allowed = signatureMIMETypes
	}

	if att.Size > limit {
		return types.NewUploadRejectedError(types.ErrCodeFileTooLarge,
			"File exceeds the maximum size of "+formatMB(limit))
	}
	if !allowed[normalizeMIME(att.ContentType)] {
		return types.NewUploadRejectedError(types.ErrCodeFileTypeDenied,
			"File type "+att.ContentType+" is not allowed")
	}

	w.state.Form.Documents[slot] = att
	delete(w.state.Errors, string(slot))
	return nil
}

// FileRemove clears a document slot.
func (w *Wizard) FileRemove(slot types.DocumentSlot) error {
	if !validSlot(slot) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Unknown document slot: "+string(slot), nil)
	}
	w.state.Form.Documents[slot] = nil
	return nil
}

// ServiceAdd appends a service to the ordered list. An empty name or a
// non-numeric price leaves the list untouched.
func (w *Wizard) ServiceAdd(name, price string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Service name is required", nil)
	}
	p, err := strconv.ParseFloat(price, 64)
	if err != nil || p <= 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Service price must be a positive number", nil)
	}

	w.state.Form.Services = append(w.state.Form.Services, types.ServiceItem{Name: name, Price: p})
	delete(w.state.Errors, "services")
	return nil
}

// ServiceRemove removes the service at index, preserving the order of the
// remaining entries.
func (w *Wizard) ServiceRemove(index int) error {
	services := w.state.Form.Services
	if index < 0 || index >= len(services) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Service index out of range", nil)
	}
	w.state.Form.Services = append(services[:index], services[index+1:]...)
	return nil
}

// MergeKYC merges identity fields returned by the verification provider and
// marks the form verified. Only empty form fields are filled so verified data
// never silently overwrites what the applicant typed.
func (w *Wizard) MergeKYC(data *types.KYCData) {
	if data != nil {
		w.state.Form.KYC = data
		if w.state.Form.OwnerName == "" && data.Name != "" {
			w.state.Form.OwnerName = data.Name
		}
		if w.state.Form.Address == "" && data.Address != "" {
			w.state.Form.Address = data.Address
		}
	}
	w.state.Form.IsKYC = true
	delete(w.state.Errors, "is_kyc")
}

// ValidateFinal recomputes the last step's error set, which gates submission.
func (w *Wizard) ValidateFinal() map[string]string {
	return ValidateStep(types.StepLast, w.state.Form)
}

// Reset returns the state to defaults after a confirmed successful submission.
func (w *Wizard) Reset() {
	w.state.Form = NewForm()
	w.state.Step = types.StepFirst
	w.state.Errors = map[string]string{}
	w.state.Submitting = false
}

func validSlot(slot types.DocumentSlot) bool {
	for _, s := range types.DocumentSlots {
		if s == slot {
			return true
		}
	}
	return false
}

func normalizeMIME(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func formatMB(limit int64) string {
	return strconv.FormatInt(limit/(1024*1024), 10) + " MB"
}

func errorDetails(errs map[string]string) map[string]interface{} {
	details := make(map[string]interface{}, len(errs))
	for field, msg := range errs {
		details[field] = msg
	}
	return details
}
