package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// Service manages the admin console's configuration sections. Each section is
// stored as one JSON document; reads go through an in-process cache that is
// refreshed on every write so the services see settings changes immediately.
type Service struct {
	repo   Repository
	tester SMTPTester
	logger *logger.Logger

	mu    sync.RWMutex
	cache map[types.SettingsSection]json.RawMessage
}

// NewService creates a settings service.
func NewService(repo Repository, tester SMTPTester, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		tester: tester,
		logger: log,
		cache:  make(map[types.SettingsSection]json.RawMessage),
	}
}

// sectionPrototype returns the typed document for a section, used to validate
// incoming JSON against the section's schema.
func sectionPrototype(section types.SettingsSection) interface{} {
	switch section {
	case types.SectionSMTP:
		return &types.SMTPSettings{}
	case types.SectionAI:
		return &types.AISettings{}
	case types.SectionNotification:
		return &types.NotificationSettings{}
	case types.SectionBusiness:
		return &types.BusinessSettings{}
	case types.SectionSecurity:
		return &types.SecuritySettings{}
	case types.SectionLab:
		return &types.LabSettings{}
	default:
		return nil
	}
}

// Warm loads every stored section into the cache. Called at startup; a
// missing table or empty store is not an error.
func (s *Service) Warm(ctx context.Context) error {
	records, err := s.repo.All(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		s.cache[record.Section] = json.RawMessage(record.Document)
	}
	s.logger.WithField("sections", len(records)).Info("Settings cache warmed")
	return nil
}

// Get returns one section's document, from cache when possible.
func (s *Service) Get(ctx context.Context, section types.SettingsSection) (json.RawMessage, error) {
	if sectionPrototype(section) == nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Unknown settings section", nil)
	}

	s.mu.RLock()
	doc, ok := s.cache[section]
	s.mu.RUnlock()
	if ok {
		return doc, nil
	}

	record, err := s.repo.Get(ctx, section)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[section] = json.RawMessage(record.Document)
	s.mu.Unlock()
	return json.RawMessage(record.Document), nil
}

// Update validates and stores one section's document, then refreshes the
// cache. The document must decode cleanly into the section's typed schema.
func (s *Service) Update(ctx context.Context, section types.SettingsSection, document json.RawMessage, updatedBy string) error {
	proto := sectionPrototype(section)
	if proto == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Unknown settings section", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(document))
	dec.DisallowUnknownFields()
	if err := dec.Decode(proto); err != nil {
		return types.NewValidationError(types.ErrCodeValidationFailed,
			"Document does not match the section schema: "+err.Error(), nil)
	}

	// Re-encode the typed value so stored documents are always normalized.
	normalized, err := json.Marshal(proto)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "Failed to normalize document", err)
	}

	record := &types.SettingsRecord{
		Section:   section,
		Document:  normalized,
		UpdatedBy: updatedBy,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		s.logger.Audit(updatedBy, "update", "settings:"+string(section), false)
		return err
	}

	s.mu.Lock()
	s.cache[section] = json.RawMessage(normalized)
	s.mu.Unlock()

	s.logger.Audit(updatedBy, "update", "settings:"+string(section), true)
	return nil
}

// All returns every stored section keyed by name.
func (s *Service) All(ctx context.Context) (map[types.SettingsSection]json.RawMessage, error) {
	records, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[types.SettingsSection]json.RawMessage, len(records))
	for _, record := range records {
		out[record.Section] = json.RawMessage(record.Document)
	}
	return out, nil
}

// SMTP returns the decoded SMTP section.
func (s *Service) SMTP(ctx context.Context) (*types.SMTPSettings, error) {
	doc, err := s.Get(ctx, types.SectionSMTP)
	if err != nil {
		return nil, err
	}
	cfg := &types.SMTPSettings{}
	if err := json.Unmarshal(doc, cfg); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "Stored SMTP settings are corrupt", err)
	}
	return cfg, nil
}

// TestSMTP runs a live connection test. When a candidate configuration is
// passed it is tested as-is without being stored; otherwise the stored
// section is tested.
func (s *Service) TestSMTP(ctx context.Context, candidate *types.SMTPSettings, recipient string) (*types.SMTPTestResult, error) {
	cfg := candidate
	if cfg == nil {
		stored, err := s.SMTP(ctx)
		if err != nil {
			return nil, err
		}
		cfg = stored
	}
	return s.tester.Test(ctx, cfg, recipient), nil
}

