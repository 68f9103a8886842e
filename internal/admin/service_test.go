package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

type MockChemistRepository struct {
	mock.Mock
}

func (m *MockChemistRepository) Create(ctx context.Context, chemist *types.Chemist) error {
	args := m.Called(ctx, chemist)
	return args.Error(0)
}

func (m *MockChemistRepository) GetByID(ctx context.Context, id string) (*types.Chemist, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Chemist), args.Error(1)
}

func (m *MockChemistRepository) GetByEmail(ctx context.Context, email string) (*types.Chemist, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Chemist), args.Error(1)
}

func (m *MockChemistRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	args := m.Called(ctx, id, updates)
	return args.Error(0)
}

func (m *MockChemistRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockChemistRepository) List(ctx context.Context, filters *types.ListFilters) ([]*types.Chemist, int, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*types.Chemist), args.Int(1), args.Error(2)
}

type MockDoctorRepository struct {
	mock.Mock
}

func (m *MockDoctorRepository) Create(ctx context.Context, doctor *types.Doctor) error {
	args := m.Called(ctx, doctor)
	return args.Error(0)
}

func (m *MockDoctorRepository) GetByID(ctx context.Context, id string) (*types.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Doctor), args.Error(1)
}

func (m *MockDoctorRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	args := m.Called(ctx, id, updates)
	return args.Error(0)
}

func (m *MockDoctorRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDoctorRepository) List(ctx context.Context, filters *types.ListFilters) ([]*types.Doctor, int, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*types.Doctor), args.Int(1), args.Error(2)
}

func newTestService() (*Service, *MockChemistRepository, *MockDoctorRepository) {
	chemists := &MockChemistRepository{}
	doctors := &MockDoctorRepository{}
	return NewService(chemists, doctors, logger.New("error")), chemists, doctors
}

func validChemistRequest() *CreateChemistRequest {
	return &CreateChemistRequest{
		OwnerName:     "R. Mehta",
		ShopName:      "Mehta Medicals",
		Email:         "mehta@example.com",
		Phone:         "9812345678",
		City:          "Mumbai",
		LicenseNumber: "DL-998877",
		Password:      "s3cret-pass",
	}
}

func TestCreateChemistHashesPassword(t *testing.T) {
	svc, chemists, _ := newTestService()
	chemists.On("Create", mock.Anything, mock.Anything).Return(nil)

	chemist, err := svc.CreateChemist(context.Background(), "admin-1", validChemistRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, chemist.PasswordHash)
	assert.NotEqual(t, "s3cret-pass", chemist.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(chemist.PasswordHash), []byte("s3cret-pass")))
	assert.Equal(t, types.ProviderStatusPending, chemist.Status)
}

func TestCreateChemistValidation(t *testing.T) {
	svc, chemists, _ := newTestService()

	req := validChemistRequest()
	req.Email = "not-an-email"
	req.Phone = "12345"
	req.Password = "short"

	_, err := svc.CreateChemist(context.Background(), "admin-1", req)

	require.Error(t, err)
	perr := err.(*types.PlatformError)
	assert.Contains(t, perr.Details, "email")
	assert.Contains(t, perr.Details, "phone")
	assert.Contains(t, perr.Details, "password")
	chemists.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateChemistRehashesPassword(t *testing.T) {
	svc, chemists, _ := newTestService()
	var captured map[string]interface{}
	chemists.On("Update", mock.Anything, "c1", mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(map[string]interface{})
		}).Return(nil)
	chemists.On("GetByID", mock.Anything, "c1").Return(&types.Chemist{ID: "c1"}, nil)

	_, err := svc.UpdateChemist(context.Background(), "admin-1", "c1", map[string]interface{}{
		"password": "new-password",
		"city":     "Pune",
	})

	require.NoError(t, err)
	assert.NotContains(t, captured, "password")
	require.Contains(t, captured, "password_hash")
	require.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(captured["password_hash"].(string)), []byte("new-password")))
	assert.Equal(t, "Pune", captured["city"])
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	svc, chemists, _ := newTestService()

	_, err := svc.UpdateChemist(context.Background(), "admin-1", "c1", map[string]interface{}{
		"status": "banned",
	})

	require.Error(t, err)
	chemists.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyChemistPassword(t *testing.T) {
	svc, chemists, _ := newTestService()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	chemists.On("GetByEmail", mock.Anything, "mehta@example.com").
		Return(&types.Chemist{ID: "c1", Email: "mehta@example.com", PasswordHash: string(hash)}, nil)

	chemist, err := svc.VerifyChemistPassword(context.Background(), "mehta@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "c1", chemist.ID)

	_, err = svc.VerifyChemistPassword(context.Background(), "mehta@example.com", "wrong")
	require.Error(t, err)
}

func TestUpdateChemistProfileRestrictsFields(t *testing.T) {
	svc, chemists, _ := newTestService()

	_, err := svc.UpdateChemistProfile(context.Background(), "c1", map[string]interface{}{
		"status": types.ProviderStatusActive,
	})
	require.Error(t, err)
	chemists.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)

	_, err = svc.UpdateChemistProfile(context.Background(), "c1", map[string]interface{}{
		"license_number": "FAKE-999",
	})
	require.Error(t, err)
}

func TestUpdateChemistProfileAllowsOwnFields(t *testing.T) {
	svc, chemists, _ := newTestService()
	chemists.On("Update", mock.Anything, "c1", mock.Anything).Return(nil)
	chemists.On("GetByID", mock.Anything, "c1").Return(&types.Chemist{ID: "c1", City: "Pune"}, nil)

	chemist, err := svc.UpdateChemistProfile(context.Background(), "c1", map[string]interface{}{
		"city":  "Pune",
		"phone": "9876543210",
	})

	require.NoError(t, err)
	assert.Equal(t, "Pune", chemist.City)
}

func TestListChemistsPagination(t *testing.T) {
	svc, chemists, _ := newTestService()
	items := []*types.Chemist{{ID: "c1"}, {ID: "c2"}}
	chemists.On("List", mock.Anything, mock.Anything).Return(items, 42, nil)

	page, err := svc.ListChemists(context.Background(), &types.ListFilters{Page: 3, Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, 42, page.Total)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, items, page.Items)
}

func TestListFiltersDefaults(t *testing.T) {
	f := &types.ListFilters{}
	assert.Equal(t, 20, f.PageSize())
	assert.Equal(t, 0, f.Offset())

	f = &types.ListFilters{Page: 3, Limit: 10}
	assert.Equal(t, 20, f.Offset())

	f = &types.ListFilters{Limit: 500}
	assert.Equal(t, 100, f.PageSize())

	f = &types.ListFilters{Page: -1}
	assert.Equal(t, 0, f.Offset())
}

func TestCreateDoctorValidation(t *testing.T) {
	svc, _, doctors := newTestService()

	_, err := svc.CreateDoctor(context.Background(), "admin-1", &CreateDoctorRequest{
		Name:  "Dr. Iyer",
		Email: "iyer@example.com",
		Phone: "9898989898",
		// missing specialty and registration number
		ConsultationFee: -10,
	})

	require.Error(t, err)
	perr := err.(*types.PlatformError)
	assert.Contains(t, perr.Details, "specialty")
	assert.Contains(t, perr.Details, "registration_number")
	assert.Contains(t, perr.Details, "consultation_fee")
	doctors.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateDoctorSuccess(t *testing.T) {
	svc, _, doctors := newTestService()
	doctors.On("Create", mock.Anything, mock.Anything).Return(nil)

	doctor, err := svc.CreateDoctor(context.Background(), "admin-1", &CreateDoctorRequest{
		Name:               "Dr. Iyer",
		Email:              "iyer@example.com",
		Phone:              "9898989898",
		City:               "Chennai",
		Specialty:          "Cardiology",
		RegistrationNumber: "MCI-554433",
		YearsExperience:    12,
		ConsultationFee:    800,
	})

	require.NoError(t, err)
	assert.Equal(t, types.ProviderStatusPending, doctor.Status)
	assert.Equal(t, "Cardiology", doctor.Specialty)
}

func TestDeleteDoctorPropagatesNotFound(t *testing.T) {
	svc, _, doctors := newTestService()
	doctors.On("Delete", mock.Anything, "missing").
		Return(types.NewNotFoundError(types.ErrCodeNotFound, "Doctor not found"))

	err := svc.DeleteDoctor(context.Background(), "admin-1", "missing")
	require.Error(t, err)
}
