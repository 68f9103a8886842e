package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// Notifier announces registry events to the notification service.
type Notifier interface {
	ApplicationReceived(ctx context.Context, app *types.LabApplication)
	ApplicationDecided(ctx context.Context, app *types.LabApplication)
}

// DocumentStore writes application documents to object storage. Satisfied by
// storage.ObjectStore.
type DocumentStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, fileURL string) error
}

// RegistryService ingests finished submissions: it re-validates the multipart
// payload, stores the documents, persists the application row, and generates
// the acknowledgment document. Server-side validation repeats the wizard's
// final checks because the endpoint is reachable without the wizard.
type RegistryService struct {
	repo     ApplicationRepository
	store    DocumentStore
	ackGen   AcknowledgmentGenerator
	notifier Notifier
	logger   *logger.Logger
}

// NewRegistryService creates a registry service.
func NewRegistryService(repo ApplicationRepository, store DocumentStore, ackGen AcknowledgmentGenerator, notifier Notifier, log *logger.Logger) *RegistryService {
	return &RegistryService{
		repo:     repo,
		store:    store,
		ackGen:   ackGen,
		notifier: notifier,
		logger:   log,
	}
}

// ParseSubmission reconstructs a form from a multipart submission body.
func ParseSubmission(mr *multipart.Reader, maxFileBytes int64) (*types.OnboardingForm, error) {
	form := NewForm()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Malformed multipart body", nil)
		}

		name := part.FormName()
		if part.FileName() != "" {
			data, err := io.ReadAll(io.LimitReader(part, maxFileBytes+1))
			part.Close()
			if err != nil {
				return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Failed to read file part "+name, nil)
			}
			if int64(len(data)) > maxFileBytes {
				return nil, types.NewUploadRejectedError(types.ErrCodeFileTooLarge,
					"File "+name+" exceeds the maximum size")
			}
			form.Documents[types.DocumentSlot(name)] = &types.Attachment{
				FileName:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Size:        int64(len(data)),
				Data:        data,
			}
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, 1<<20))
		part.Close()
		if err != nil {
			return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Failed to read field "+name, nil)
		}

		switch name {
		case "services":
			if err := json.Unmarshal(value, &form.Services); err != nil {
				return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Field services is not valid JSON", nil)
			}
		case "kyc":
			form.KYC = &types.KYCData{}
			if err := json.Unmarshal(value, form.KYC); err != nil {
				return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Field kyc is not valid JSON", nil)
			}
		case "is_kyc":
			form.IsKYC, _ = strconv.ParseBool(string(value))
		default:
			if err := setField(form, name, string(value)); err != nil {
				// Unknown fields from older clients are ignored on ingest.
				continue
			}
		}
	}

	return form, nil
}

// Register validates the reconstructed form and persists the application.
func (s *RegistryService) Register(ctx context.Context, form *types.OnboardingForm) (*types.LabApplication, error) {
	for step := types.StepFirst; step <= types.StepLast; step++ {
		if errs := ValidateStep(step, form); len(errs) > 0 {
			return nil, types.NewValidationError(types.ErrCodeValidationFailed,
				"Submission failed validation", errorDetails(errs))
		}
	}

	if existing, err := s.repo.GetByLicenseNumber(ctx, form.LicenseNumber); err == nil && existing != nil {
		return nil, types.NewValidationError(types.ErrCodeConflict,
			"An application with this license number already exists", nil)
	} else if err != nil && !IsNotFound(err) {
		return nil, err
	}

	app := &types.LabApplication{
		OwnerName:          form.OwnerName,
		Email:              form.Email,
		Phone:              form.Phone,
		LabName:            form.LabName,
		LicenseNumber:      form.LicenseNumber,
		RegistrationNumber: form.RegistrationNumber,
		Address:            form.Address,
		GSTNumber:          form.GSTNumber,
		PANNumber:          form.PANNumber,
		Services:           form.Services,
		IsKYC:              form.IsKYC,
		Status:             types.ApplicationStatusPending,
		DocumentURLs:       map[string]string{},
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	for _, slot := range types.DocumentSlots {
		att := form.Documents[slot]
		if att == nil {
			continue
		}
		key := fmt.Sprintf("applications/%s/%s/%s", app.ID, slot, att.FileName)
		url, err := s.store.Upload(ctx, key, att.Data, att.ContentType)
		if err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"application_id": app.ID,
				"slot":           string(slot),
			}).Error("Failed to store application document")
			continue
		}
		app.DocumentURLs[string(slot)] = url
	}

	s.generateAcknowledgment(ctx, app)

	if s.notifier != nil {
		s.notifier.ApplicationReceived(ctx, app)
	}

	s.logger.WithFields(map[string]interface{}{
		"application_id": app.ID,
		"lab_name":       app.LabName,
	}).Info("Lab application registered")
	return app, nil
}

// GetApplication returns one registered application.
func (s *RegistryService) GetApplication(ctx context.Context, id string) (*types.LabApplication, error) {
	return s.repo.GetByID(ctx, id)
}

// ListApplications returns one page of applications for review, optionally
// filtered by status.
func (s *RegistryService) ListApplications(ctx context.Context, status string, limit, offset int) ([]*types.LabApplication, int, error) {
	if status != "" && !validApplicationStatus(status) {
		return nil, 0, types.NewValidationError(types.ErrCodeInvalidInput,
			"Unknown application status "+status, nil)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, status, limit, offset)
}

// Decide moves an application to approved or rejected and tells the applicant.
func (s *RegistryService) Decide(ctx context.Context, id, status, decidedBy string) (*types.LabApplication, error) {
	if status != types.ApplicationStatusApproved && status != types.ApplicationStatusRejected {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"Decision must be approved or rejected", nil)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ApplicationDecided(ctx, app)
	}
	s.logger.Audit(decidedBy, "application_"+status, app.ID, true)
	return app, nil
}

func validApplicationStatus(status string) bool {
	switch status {
	case types.ApplicationStatusPending, types.ApplicationStatusApproved, types.ApplicationStatusRejected:
		return true
	}
	return false
}

// generateAcknowledgment renders and stores the PDF. Acknowledgment failures
// never fail the registration; the document can be regenerated later.
func (s *RegistryService) generateAcknowledgment(ctx context.Context, app *types.LabApplication) {
	if s.ackGen == nil {
		return
	}
	pdf, err := s.ackGen.Generate(ctx, app)
	if err != nil {
		s.logger.WithError(err).WithField("application_id", app.ID).Warn("Failed to generate acknowledgment")
		return
	}
	key := fmt.Sprintf("applications/%s/acknowledgment.pdf", app.ID)
	url, err := s.store.Upload(ctx, key, pdf, "application/pdf")
	if err != nil {
		s.logger.WithError(err).WithField("application_id", app.ID).Warn("Failed to store acknowledgment")
		return
	}
	app.AcknowledgmentURL = url
	if err := s.repo.UpdateAcknowledgmentURL(ctx, app.ID, url); err != nil {
		s.logger.WithError(err).WithField("application_id", app.ID).Warn("Failed to record acknowledgment url")
	}
}
