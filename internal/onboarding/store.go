package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medimart/platform/pkg/types"
)

// SessionStore persists wizard state between requests. The form record and
// the step pointer live under separate keys so a partial write of one never
// corrupts the other. The checkpoint and KYC token keys are transient: they
// exist only for the duration of a verification round trip.
type SessionStore interface {
	SaveState(ctx context.Context, sessionID string, state *State) error
	LoadState(ctx context.Context, sessionID string) (*State, error)
	SaveCheckpoint(ctx context.Context, sessionID string, form *types.OnboardingForm) error
	LoadCheckpoint(ctx context.Context, sessionID string) (*types.OnboardingForm, error)
	DeleteCheckpoint(ctx context.Context, sessionID string) error
	SaveKYCToken(ctx context.Context, sessionID, token string) error
	LoadKYCToken(ctx context.Context, sessionID string) (string, error)
	DeleteKYCToken(ctx context.Context, sessionID string) error
	Clear(ctx context.Context, sessionID string) error
}

// ErrSessionNotFound is returned when no state exists for a session.
var ErrSessionNotFound = types.NewNotFoundError(types.ErrCodeNotFound, "Onboarding session not found")

const (
	formKeyFmt       = "onboarding:%s:form"
	stepKeyFmt       = "onboarding:%s:step"
	checkpointKeyFmt = "onboarding:%s:checkpoint"
	kycTokenKeyFmt   = "onboarding:%s:kyc_token"

	// kycRoundTripTTL caps how long a checkpoint and its token may dangle if
	// the applicant never returns from the verification provider.
	kycRoundTripTTL = 30 * time.Minute
)

// RedisSessionStore is the production SessionStore.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store with the given session TTL.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

// SaveState writes the durable part of the state: the form and the step
// pointer. Errors and the submitting flag are intentionally not persisted.
func (s *RedisSessionStore) SaveState(ctx context.Context, sessionID string, state *State) error {
	raw, err := json.Marshal(state.Form)
	if err != nil {
		return fmt.Errorf("failed to serialize form: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(formKeyFmt, sessionID), raw, s.ttl)
	pipe.Set(ctx, fmt.Sprintf(stepKeyFmt, sessionID), int(state.Step), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// LoadState restores the form and step pointer. Errors come back empty and
// Submitting false; both are rebuilt by subsequent events.
func (s *RedisSessionStore) LoadState(ctx context.Context, sessionID string) (*State, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf(formKeyFmt, sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session form: %w", err)
	}

	form := NewForm()
	if err := json.Unmarshal(raw, form); err != nil {
		return nil, fmt.Errorf("failed to decode session form: %w", err)
	}
	if form.Documents == nil {
		form.Documents = make(map[types.DocumentSlot]*types.Attachment)
	}
	if form.Services == nil {
		form.Services = []types.ServiceItem{}
	}

	step, err := s.client.Get(ctx, fmt.Sprintf(stepKeyFmt, sessionID)).Int()
	if err == redis.Nil {
		step = int(types.StepFirst)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session step: %w", err)
	}
	if step < int(types.StepFirst) || step > int(types.StepLast) {
		step = int(types.StepFirst)
	}

	return &State{
		Form:   form,
		Step:   types.WizardStep(step),
		Errors: map[string]string{},
	}, nil
}

// SaveCheckpoint snapshots the form before handing off to the verification
// provider.
func (s *RedisSessionStore) SaveCheckpoint(ctx context.Context, sessionID string, form *types.OnboardingForm) error {
	raw, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, fmt.Sprintf(checkpointKeyFmt, sessionID), raw, kycRoundTripTTL).Err(); err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores the pre-verification snapshot.
func (s *RedisSessionStore) LoadCheckpoint(ctx context.Context, sessionID string) (*types.OnboardingForm, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf(checkpointKeyFmt, sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	form := NewForm()
	if err := json.Unmarshal(raw, form); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if form.Documents == nil {
		form.Documents = make(map[types.DocumentSlot]*types.Attachment)
	}
	return form, nil
}

// DeleteCheckpoint removes the snapshot. Called after every verification
// round trip, success or failure.
func (s *RedisSessionStore) DeleteCheckpoint(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, fmt.Sprintf(checkpointKeyFmt, sessionID)).Err()
}

// SaveKYCToken stores the provider token for the pending round trip.
func (s *RedisSessionStore) SaveKYCToken(ctx context.Context, sessionID, token string) error {
	return s.client.Set(ctx, fmt.Sprintf(kycTokenKeyFmt, sessionID), token, kycRoundTripTTL).Err()
}

// LoadKYCToken returns the pending round trip's token.
func (s *RedisSessionStore) LoadKYCToken(ctx context.Context, sessionID string) (string, error) {
	token, err := s.client.Get(ctx, fmt.Sprintf(kycTokenKeyFmt, sessionID)).Result()
	if err == redis.Nil {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load verification token: %w", err)
	}
	return token, nil
}

// DeleteKYCToken removes the pending round trip's token.
func (s *RedisSessionStore) DeleteKYCToken(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, fmt.Sprintf(kycTokenKeyFmt, sessionID)).Err()
}

// Clear removes every key for the session. Called after a confirmed
// successful submission.
func (s *RedisSessionStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx,
		fmt.Sprintf(formKeyFmt, sessionID),
		fmt.Sprintf(stepKeyFmt, sessionID),
		fmt.Sprintf(checkpointKeyFmt, sessionID),
		fmt.Sprintf(kycTokenKeyFmt, sessionID),
	).Err()
}

// MemorySessionStore is an in-process SessionStore for tests and local
// development. Values are deep-copied through JSON on both write and read so
// callers cannot alias stored state.
type MemorySessionStore struct {
	mu          sync.RWMutex
	forms       map[string][]byte
	steps       map[string]types.WizardStep
	checkpoints map[string][]byte
	tokens      map[string]string
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		forms:       make(map[string][]byte),
		steps:       make(map[string]types.WizardStep),
		checkpoints: make(map[string][]byte),
		tokens:      make(map[string]string),
	}
}

func (s *MemorySessionStore) SaveState(ctx context.Context, sessionID string, state *State) error {
	raw, err := json.Marshal(state.Form)
	if err != nil {
		return fmt.Errorf("failed to serialize form: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[sessionID] = raw
	s.steps[sessionID] = state.Step
	return nil
}

func (s *MemorySessionStore) LoadState(ctx context.Context, sessionID string) (*State, error) {
	s.mu.RLock()
	raw, ok := s.forms[sessionID]
	step := s.steps[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	form := NewForm()
	if err := json.Unmarshal(raw, form); err != nil {
		return nil, fmt.Errorf("failed to decode session form: %w", err)
	}
	if form.Documents == nil {
		form.Documents = make(map[types.DocumentSlot]*types.Attachment)
	}
	if form.Services == nil {
		form.Services = []types.ServiceItem{}
	}
	if step < types.StepFirst || step > types.StepLast {
		step = types.StepFirst
	}
	return &State{Form: form, Step: step, Errors: map[string]string{}}, nil
}

func (s *MemorySessionStore) SaveCheckpoint(ctx context.Context, sessionID string, form *types.OnboardingForm) error {
	raw, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[sessionID] = raw
	return nil
}

func (s *MemorySessionStore) LoadCheckpoint(ctx context.Context, sessionID string) (*types.OnboardingForm, error) {
	s.mu.RLock()
	raw, ok := s.checkpoints[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	form := NewForm()
	if err := json.Unmarshal(raw, form); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if form.Documents == nil {
		form.Documents = make(map[types.DocumentSlot]*types.Attachment)
	}
	return form, nil
}

func (s *MemorySessionStore) DeleteCheckpoint(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, sessionID)
	return nil
}

func (s *MemorySessionStore) SaveKYCToken(ctx context.Context, sessionID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[sessionID] = token
	return nil
}

func (s *MemorySessionStore) LoadKYCToken(ctx context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	token, ok := s.tokens[sessionID]
	s.mu.RUnlock()
	if !ok {
		return "", ErrSessionNotFound
	}
	return token, nil
}

func (s *MemorySessionStore) DeleteKYCToken(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, sessionID)
	return nil
}

func (s *MemorySessionStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, sessionID)
	delete(s.steps, sessionID)
	delete(s.checkpoints, sessionID)
	delete(s.tokens, sessionID)
	return nil
}
