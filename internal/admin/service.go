package admin

import (
	"context"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

// Service implements provider administration: chemist and doctor CRUD with
// filtered, paginated listings.
type Service struct {
	chemists ChemistRepository
	doctors  DoctorRepository
	logger   *logger.Logger
}

// NewService creates an admin service.
func NewService(chemists ChemistRepository, doctors DoctorRepository, log *logger.Logger) *Service {
	return &Service{chemists: chemists, doctors: doctors, logger: log}
}

// CreateChemistRequest carries the fields for a new chemist record.
type CreateChemistRequest struct {
	OwnerName     string `json:"owner_name"`
	ShopName      string `json:"shop_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	City          string `json:"city"`
	Address       string `json:"address"`
	LicenseNumber string `json:"license_number"`
	GSTNumber     string `json:"gst_number"`
	Password      string `json:"password"`
}

// CreateChemist validates and registers a chemist. The password is hashed
// with bcrypt before it ever reaches the repository.
func (s *Service) CreateChemist(ctx context.Context, adminID string, req *CreateChemistRequest) (*types.Chemist, error) {
	if err := validateChemistRequest(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to hash password", err)
	}

	chemist := &types.Chemist{
		OwnerName:     req.OwnerName,
		ShopName:      req.ShopName,
		Email:         req.Email,
		Phone:         req.Phone,
		City:          req.City,
		Address:       req.Address,
		LicenseNumber: req.LicenseNumber,
		GSTNumber:     req.GSTNumber,
		PasswordHash:  string(hash),
		Status:        types.ProviderStatusPending,
	}
	if err := s.chemists.Create(ctx, chemist); err != nil {
		s.logger.Audit(adminID, "create", "chemist", false)
		return nil, err
	}

	s.logger.Audit(adminID, "create", "chemist:"+chemist.ID, true)
	return chemist, nil
}

// GetChemist fetches one chemist.
func (s *Service) GetChemist(ctx context.Context, id string) (*types.Chemist, error) {
	return s.chemists.GetByID(ctx, id)
}

// UpdateChemist applies a partial update. A password field is hashed and
// renamed to password_hash; unknown fields are dropped by the repository.
func (s *Service) UpdateChemist(ctx context.Context, adminID, id string, updates map[string]interface{}) (*types.Chemist, error) {
	if err := validateProviderUpdates(updates); err != nil {
		return nil, err
	}
	if password, ok := updates["password"].(string); ok {
		if len(password) < 8 {
			return nil, types.NewValidationError(types.ErrCodeInvalidInput,
				"Password must be at least 8 characters", nil)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to hash password", err)
		}
		delete(updates, "password")
		updates["password_hash"] = string(hash)
	}

	if err := s.chemists.Update(ctx, id, updates); err != nil {
		s.logger.Audit(adminID, "update", "chemist:"+id, false)
		return nil, err
	}
	s.logger.Audit(adminID, "update", "chemist:"+id, true)
	return s.chemists.GetByID(ctx, id)
}

// DeleteChemist removes a chemist record.
func (s *Service) DeleteChemist(ctx context.Context, adminID, id string) error {
	if err := s.chemists.Delete(ctx, id); err != nil {
		s.logger.Audit(adminID, "delete", "chemist:"+id, false)
		return err
	}
	s.logger.Audit(adminID, "delete", "chemist:"+id, true)
	return nil
}

// ListChemists returns one page of chemists.
func (s *Service) ListChemists(ctx context.Context, filters *types.ListFilters) (*types.PageResult, error) {
	chemists, total, err := s.chemists.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return pageResult(chemists, total, filters), nil
}

// VerifyChemistPassword checks a chemist's login credentials.
func (s *Service) VerifyChemistPassword(ctx context.Context, email, password string) (*types.Chemist, error) {
	chemist, err := s.chemists.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(chemist.PasswordHash), []byte(password)); err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid credentials", nil)
	}
	return chemist, nil
}

// profileFields are the columns a chemist may change on their own record.
// Email, license number, and status stay admin-managed.
var profileFields = map[string]bool{
	"owner_name": true,
	"shop_name":  true,
	"phone":      true,
	"city":       true,
	"address":    true,
	"gst_number": true,
	"password":   true,
}

// UpdateChemistProfile applies a self-service partial update to the calling
// chemist's own record.
func (s *Service) UpdateChemistProfile(ctx context.Context, chemistID string, updates map[string]interface{}) (*types.Chemist, error) {
	for field := range updates {
		if !profileFields[field] {
			return nil, types.NewValidationError(types.ErrCodeInvalidInput,
				"Field "+field+" cannot be changed from the profile editor", nil)
		}
	}
	return s.UpdateChemist(ctx, chemistID, chemistID, updates)
}

// CreateDoctorRequest carries the fields for a new doctor record.
type CreateDoctorRequest struct {
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	City               string  `json:"city"`
	Specialty          string  `json:"specialty"`
	RegistrationNumber string  `json:"registration_number"`
	YearsExperience    int     `json:"years_experience"`
	ConsultationFee    float64 `json:"consultation_fee"`
}

// CreateDoctor validates and registers a doctor.
func (s *Service) CreateDoctor(ctx context.Context, adminID string, req *CreateDoctorRequest) (*types.Doctor, error) {
	if err := validateDoctorRequest(req); err != nil {
		return nil, err
	}

	doctor := &types.Doctor{
		Name:               req.Name,
		Email:              req.Email,
		Phone:              req.Phone,
		City:               req.City,
		Specialty:          req.Specialty,
		RegistrationNumber: req.RegistrationNumber,
		YearsExperience:    req.YearsExperience,
		ConsultationFee:    req.ConsultationFee,
		Status:             types.ProviderStatusPending,
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		s.logger.Audit(adminID, "create", "doctor", false)
		return nil, err
	}

	s.logger.Audit(adminID, "create", "doctor:"+doctor.ID, true)
	return doctor, nil
}

// GetDoctor fetches one doctor.
func (s *Service) GetDoctor(ctx context.Context, id string) (*types.Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// UpdateDoctor applies a partial update.
func (s *Service) UpdateDoctor(ctx context.Context, adminID, id string, updates map[string]interface{}) (*types.Doctor, error) {
	if err := validateProviderUpdates(updates); err != nil {
		return nil, err
	}
	if err := s.doctors.Update(ctx, id, updates); err != nil {
		s.logger.Audit(adminID, "update", "doctor:"+id, false)
		return nil, err
	}
	s.logger.Audit(adminID, "update", "doctor:"+id, true)
	return s.doctors.GetByID(ctx, id)
}

// DeleteDoctor removes a doctor record.
func (s *Service) DeleteDoctor(ctx context.Context, adminID, id string) error {
	if err := s.doctors.Delete(ctx, id); err != nil {
		s.logger.Audit(adminID, "delete", "doctor:"+id, false)
		return err
	}
	s.logger.Audit(adminID, "delete", "doctor:"+id, true)
	return nil
}

// ListDoctors returns one page of doctors.
func (s *Service) ListDoctors(ctx context.Context, filters *types.ListFilters) (*types.PageResult, error) {
	doctors, total, err := s.doctors.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return pageResult(doctors, total, filters), nil
}

func pageResult(items interface{}, total int, filters *types.ListFilters) *types.PageResult {
	page := filters.Page
	if page < 1 {
		page = 1
	}
	return &types.PageResult{
		Items: items,
		Total: total,
		Page:  page,
		Limit: filters.PageSize(),
	}
}

func validateChemistRequest(req *CreateChemistRequest) error {
	details := map[string]interface{}{}
	if req.OwnerName == "" {
		details["owner_name"] = "Owner name is required"
	}
	if req.ShopName == "" {
		details["shop_name"] = "Shop name is required"
	}
	if !emailPattern.MatchString(req.Email) {
		details["email"] = "Enter a valid email address"
	}
	if !phonePattern.MatchString(req.Phone) {
		details["phone"] = "Enter a valid 10-digit phone number"
	}
	if req.LicenseNumber == "" {
		details["license_number"] = "License number is required"
	}
	if len(req.Password) < 8 {
		details["password"] = "Password must be at least 8 characters"
	}
	if len(details) > 0 {
		return types.NewValidationError(types.ErrCodeValidationFailed, "Chemist record is invalid", details)
	}
	return nil
}

func validateDoctorRequest(req *CreateDoctorRequest) error {
	details := map[string]interface{}{}
	if req.Name == "" {
		details["name"] = "Name is required"
	}
	if !emailPattern.MatchString(req.Email) {
		details["email"] = "Enter a valid email address"
	}
	if !phonePattern.MatchString(req.Phone) {
		details["phone"] = "Enter a valid 10-digit phone number"
	}
	if req.Specialty == "" {
		details["specialty"] = "Specialty is required"
	}
	if req.RegistrationNumber == "" {
		details["registration_number"] = "Registration number is required"
	}
	if req.ConsultationFee < 0 {
		details["consultation_fee"] = "Consultation fee cannot be negative"
	}
	if len(details) > 0 {
		return types.NewValidationError(types.ErrCodeValidationFailed, "Doctor record is invalid", details)
	}
	return nil
}

func validateProviderUpdates(updates map[string]interface{}) error {
	if email, ok := updates["email"].(string); ok && !emailPattern.MatchString(email) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Enter a valid email address", nil)
	}
	if phone, ok := updates["phone"].(string); ok && !phonePattern.MatchString(phone) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Enter a valid 10-digit phone number", nil)
	}
	if status, ok := updates["status"].(string); ok {
		switch status {
		case types.ProviderStatusActive, types.ProviderStatusInactive, types.ProviderStatusPending:
		default:
			return types.NewValidationError(types.ErrCodeInvalidInput, "Unknown provider status", nil)
		}
	}
	return nil
}
