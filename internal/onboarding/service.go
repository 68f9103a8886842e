package onboarding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/monitoring"
	"github.com/medimart/platform/pkg/types"
)

// Service orchestrates the onboarding wizard: it loads session state, applies
// one event through the Wizard, and persists the result. Transitions are
// serialized per session so two concurrent events cannot interleave their
// load-mutate-save cycles.
type Service struct {
	store     SessionStore
	kyc       KYCProvider
	submitter Submitter
	cfg       *config.OnboardingConfig
	logger    *logger.Logger
	metrics   *monitoring.MetricsCollector

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
	inflight map[string]struct{}
}

// NewService creates an onboarding service.
func NewService(store SessionStore, kyc KYCProvider, submitter Submitter, cfg *config.OnboardingConfig, log *logger.Logger, metrics *monitoring.MetricsCollector) *Service {
	return &Service{
		store:     store,
		kyc:       kyc,
		submitter: submitter,
		cfg:       cfg,
		logger:    log,
		metrics:   metrics,
		sessions:  make(map[string]*sync.Mutex),
		inflight:  make(map[string]struct{}),
	}
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessions[sessionID] = lock
	}
	return lock
}

// StartSession creates a fresh session and returns its identifier and state.
func (s *Service) StartSession(ctx context.Context) (string, *State, error) {
	sessionID := uuid.New().String()
	state := NewState()
	if err := s.store.SaveState(ctx, sessionID, state); err != nil {
		return "", nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to create onboarding session", err)
	}
	s.logger.WizardEvent(sessionID, "session_started", int(state.Step), nil)
	return sessionID, state, nil
}

// GetState loads the current state for a session.
func (s *Service) GetState(ctx context.Context, sessionID string) (*State, error) {
	return s.store.LoadState(ctx, sessionID)
}

// apply runs one mutation against the session under its lock, persisting the
// state afterwards whether or not the mutation reported an error. A rejected
// event may still have refreshed the error map, and that must survive.
func (s *Service) apply(ctx context.Context, sessionID string, fn func(w *Wizard) error) (*State, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.store.LoadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	w := NewWizardWithLimits(state, s.cfg.MaxDocumentBytes, s.cfg.MaxSignatureBytes)
	opErr := fn(w)

	if err := s.store.SaveState(ctx, sessionID, state); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to persist session state", err)
	}
	return state, opErr
}

// Next advances the wizard one step after validating the current one.
func (s *Service) Next(ctx context.Context, sessionID string) (*State, error) {
	state, err := s.apply(ctx, sessionID, func(w *Wizard) error {
		from := int(w.State().Step)
		err := w.Next()
		s.metrics.RecordWizardTransition("next", transitionStatus(err == nil))
		if err != nil {
			s.metrics.RecordStepValidationFailure(from)
		}
		return err
	})
	if state != nil {
		s.logger.WizardEvent(sessionID, "next", int(state.Step), map[string]interface{}{"errors": len(state.Errors)})
	}
	return state, err
}

// Prev moves the wizard back one step without validation.
func (s *Service) Prev(ctx context.Context, sessionID string) (*State, error) {
	state, err := s.apply(ctx, sessionID, func(w *Wizard) error {
		w.Prev()
		s.metrics.RecordWizardTransition("prev", "success")
		return nil
	})
	if state != nil {
		s.logger.WizardEvent(sessionID, "prev", int(state.Step), nil)
	}
	return state, err
}

// FieldChange applies one field edit.
func (s *Service) FieldChange(ctx context.Context, sessionID, name, value string) (*State, error) {
	return s.apply(ctx, sessionID, func(w *Wizard) error {
		return w.FieldChange(name, value)
	})
}

// FileAttach places an upload into a document slot.
func (s *Service) FileAttach(ctx context.Context, sessionID string, slot types.DocumentSlot, att *types.Attachment) (*State, error) {
	return s.apply(ctx, sessionID, func(w *Wizard) error {
		return w.FileAttach(slot, att)
	})
}

// FileRemove clears a document slot.
func (s *Service) FileRemove(ctx context.Context, sessionID string, slot types.DocumentSlot) (*State, error) {
	return s.apply(ctx, sessionID, func(w *Wizard) error {
		return w.FileRemove(slot)
	})
}

// CaptureSignature stores a drawn signature from the capture pad.
func (s *Service) CaptureSignature(ctx context.Context, sessionID, dataURI string) (*State, error) {
	att, err := DecodeSignatureDataURI(dataURI)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, sessionID, func(w *Wizard) error {
		return w.FileAttach(types.SlotSignature, att)
	})
}

// ServiceAdd appends a service row.
func (s *Service) ServiceAdd(ctx context.Context, sessionID, name, price string) (*State, error) {
	return s.apply(ctx, sessionID, func(w *Wizard) error {
		return w.ServiceAdd(name, price)
	})
}

// ServiceRemove deletes the service row at index.
func (s *Service) ServiceRemove(ctx context.Context, sessionID string, index int) (*State, error) {
	return s.apply(ctx, sessionID, func(w *Wizard) error {
		return w.ServiceRemove(index)
	})
}

// StartKYC checkpoints the form, opens a verification session with the
// provider, and returns the URL the applicant must be redirected to. The
// checkpoint is written before the provider is contacted so a failure after
// redirect can always restore the exact pre-verification form.
func (s *Service) StartKYC(ctx context.Context, sessionID string) (string, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.store.LoadState(ctx, sessionID)
	if err != nil {
		return "", err
	}

	snapshot, err := CloneForm(state.Form)
	if err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "Failed to checkpoint form", err)
	}
	if err := s.store.SaveCheckpoint(ctx, sessionID, snapshot); err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "Failed to persist checkpoint", err)
	}

	token, stateParam, err := s.kyc.CreateSession(ctx, sessionID)
	if err != nil {
		// No round trip will happen; remove the dangling checkpoint.
		_ = s.store.DeleteCheckpoint(ctx, sessionID)
		return "", err
	}
	if err := s.store.SaveKYCToken(ctx, sessionID, token); err != nil {
		_ = s.store.DeleteCheckpoint(ctx, sessionID)
		return "", types.NewInternalError(types.ErrCodeInternalError, "Failed to persist verification token", err)
	}

	s.logger.WizardEvent(sessionID, "kyc_started", int(state.Step), nil)
	return s.kyc.RedirectURL(token, stateParam), nil
}

// CompleteKYC finishes the verification round trip. On success the verified
// identity is merged and the form is marked verified. On failure the form is
// restored from the checkpoint; the step pointer is left where it was. The
// checkpoint and token are deleted in every case.
func (s *Service) CompleteKYC(ctx context.Context, sessionID, returnedToken, stateParam string) (*State, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	defer func() {
		_ = s.store.DeleteCheckpoint(ctx, sessionID)
		_ = s.store.DeleteKYCToken(ctx, sessionID)
	}()

	state, err := s.store.LoadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	storedToken, err := s.store.LoadKYCToken(ctx, sessionID)
	if err != nil || storedToken != returnedToken {
		restored := s.rollback(ctx, sessionID, state)
		s.logger.WizardEvent(sessionID, "kyc_rejected", int(restored.Step), map[string]interface{}{"reason": "token_mismatch"})
		return restored, types.NewExternalError(types.ErrCodeKYCFailed, "Verification token does not match this session", nil)
	}

	data, err := s.kyc.Exchange(ctx, returnedToken, stateParam)
	if err != nil {
		restored := s.rollback(ctx, sessionID, state)
		s.logger.WizardEvent(sessionID, "kyc_failed", int(restored.Step), nil)
		return restored, err
	}

	w := NewWizardWithLimits(state, s.cfg.MaxDocumentBytes, s.cfg.MaxSignatureBytes)
	w.MergeKYC(data)
	if err := s.store.SaveState(ctx, sessionID, state); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to persist verified state", err)
	}

	s.logger.WizardEvent(sessionID, "kyc_completed", int(state.Step), nil)
	return state, nil
}

// rollback restores the checkpointed form into the live state and persists
// it. The step pointer is not touched: verification failure invalidates the
// identity data, not the applicant's position in the wizard.
func (s *Service) rollback(ctx context.Context, sessionID string, state *State) *State {
	snapshot, err := s.store.LoadCheckpoint(ctx, sessionID)
	if err != nil {
		// Checkpoint already gone; keep the live form rather than losing it.
		return state
	}
	state.Form = snapshot
	if err := s.store.SaveState(ctx, sessionID, state); err != nil {
		s.logger.WithSession(sessionID).WithError(err).Error("Failed to persist rolled-back state")
	}
	return state
}

// beginSubmit marks a session's submission as in flight. The marker lives in
// the service rather than the persisted state: the session lock is released
// during the network call, so a gate read back from the store would miss a
// submission already on the wire.
func (s *Service) beginSubmit(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[sessionID]; ok {
		return false
	}
	s.inflight[sessionID] = struct{}{}
	return true
}

func (s *Service) endSubmit(sessionID string) {
	s.mu.Lock()
	delete(s.inflight, sessionID)
	s.mu.Unlock()
}

// Submit runs final validation and delivers the form to the registry. An
// in-flight marker in the service rejects a second submit while one is on the
// wire. Success deletes the session's durable keys and returns the reset
// default state; failure keeps everything so the applicant can retry.
func (s *Service) Submit(ctx context.Context, sessionID string) (*types.SubmissionResult, *State, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()

	state, err := s.store.LoadState(ctx, sessionID)
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}
	if !s.beginSubmit(sessionID) {
		state.Submitting = true
		lock.Unlock()
		return nil, state, types.NewValidationError(types.ErrCodeSubmitInFlight, "A submission is already in progress", nil)
	}
	defer s.endSubmit(sessionID)

	w := NewWizardWithLimits(state, s.cfg.MaxDocumentBytes, s.cfg.MaxSignatureBytes)
	if errs := w.ValidateFinal(); len(errs) > 0 {
		state.Errors = errs
		lock.Unlock()
		return nil, state, types.NewValidationError(types.ErrCodeValidationFailed,
			"The application is not complete", errorDetails(errs))
	}

	state.Submitting = true
	lock.Unlock()

	start := time.Now()
	result, err := s.submitter.Submit(ctx, state.Form)

	lock.Lock()
	defer lock.Unlock()
	state.Submitting = false

	if err != nil {
		s.metrics.RecordSubmission("failure", time.Since(start))
		s.logger.WizardEvent(sessionID, "submit_failed", int(state.Step), nil)
		return nil, state, err
	}

	// The durable keys stay deleted; a later event starts a fresh session.
	if err := s.store.Clear(ctx, sessionID); err != nil {
		s.logger.WithSession(sessionID).WithError(err).Warn("Failed to clear session after submission")
	}
	w.Reset()

	s.metrics.RecordSubmission("success", time.Since(start))
	s.logger.WizardEvent(sessionID, "submitted", int(state.Step), map[string]interface{}{"application_id": result.ApplicationID})
	return result, state, nil
}

func transitionStatus(ok bool) string {
	if ok {
		return "success"
	}
	return "blocked"
}

// IsNotFound reports whether err is the session-not-found error.
func IsNotFound(err error) bool {
	var perr *types.PlatformError
	return errors.As(err, &perr) && perr.Type == types.ErrorTypeNotFound
}
