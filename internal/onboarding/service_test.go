package onboarding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/monitoring"
	"github.com/medimart/platform/pkg/types"
)

type MockKYCProvider struct {
	mock.Mock
}

func (m *MockKYCProvider) CreateSession(ctx context.Context, sessionID string) (string, string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockKYCProvider) RedirectURL(token, state string) string {
	args := m.Called(token, state)
	return args.String(0)
}

func (m *MockKYCProvider) Exchange(ctx context.Context, token, state string) (*types.KYCData, error) {
	args := m.Called(ctx, token, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.KYCData), args.Error(1)
}

func (m *MockKYCProvider) VerifyStateSession(state string) (string, error) {
	args := m.Called(state)
	return args.String(0), args.Error(1)
}

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, form *types.OnboardingForm) (*types.SubmissionResult, error) {
	args := m.Called(ctx, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SubmissionResult), args.Error(1)
}

var (
	testMetricsOnce sync.Once
	testMetrics     *monitoring.MetricsCollector
)

func newTestService(store SessionStore, kyc KYCProvider, submitter Submitter) *Service {
	testMetricsOnce.Do(func() {
		testMetrics = monitoring.NewMetricsCollector("onboarding-test")
	})
	cfg := &config.OnboardingConfig{
		MaxDocumentBytes:  DefaultMaxDocumentBytes,
		MaxSignatureBytes: DefaultMaxSignatureBytes,
	}
	return NewService(store, kyc, submitter, cfg, logger.New("error"), testMetrics)
}

func startReadySession(t *testing.T, svc *Service, ctx context.Context) string {
	t.Helper()
	sessionID, _, err := svc.StartSession(ctx)
	require.NoError(t, err)

	fill := func(name, value string) {
		_, err := svc.FieldChange(ctx, sessionID, name, value)
		require.NoError(t, err)
	}
	fill("owner_name", "A. Rao")
	fill("lab_name", "City Diagnostics")
	fill("license_number", "LIC123")
	fill("email", "lab@example.com")
	fill("phone", "9876543210")
	fill("address", "12 MG Road, Pune")
	fill("latitude", "18.5204")
	fill("longitude", "73.8567")
	fill("gst_number", "27ABCDE1234F1Z5")
	fill("pan_number", "ABCDE1234F")
	fill("turnaround_time", "24h")
	fill("open_time", "08:00")
	fill("close_time", "20:00")

	_, err = svc.ServiceAdd(ctx, sessionID, "CBC", "250")
	require.NoError(t, err)

	for _, slot := range types.DocumentSlots {
		ct := "application/pdf"
		if slot == types.SlotSignature || slot == types.SlotPhoto {
			ct = "image/png"
		}
		_, err = svc.FileAttach(ctx, sessionID, slot, &types.Attachment{
			FileName: string(slot) + ".bin", ContentType: ct, Size: 8, Data: []byte("12345678"),
		})
		require.NoError(t, err)
	}
	return sessionID
}

func acceptAllAgreements(t *testing.T, svc *Service, ctx context.Context, sessionID string) {
	t.Helper()
	for _, name := range []string{"nda", "terms", "digital_consent", "terms_accepted"} {
		_, err := svc.FieldChange(ctx, sessionID, name, "true")
		require.NoError(t, err)
	}
}

func TestNextPersistsAcrossLoads(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	svc := newTestService(store, &MockKYCProvider{}, &MockSubmitter{})

	sessionID := startReadySession(t, svc, ctx)

	// Step one is not passable until verification is done.
	_, err := svc.Next(ctx, sessionID)
	require.Error(t, err)

	state, _ := svc.GetState(ctx, sessionID)
	require.Equal(t, types.StepFirst, state.Step)

	// Flip verification directly through the store to isolate Next.
	state.Form.IsKYC = true
	require.NoError(t, store.SaveState(ctx, sessionID, state))

	state, err = svc.Next(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, types.StepLocationServices, state.Step)

	reloaded, err := svc.GetState(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, types.StepLocationServices, reloaded.Step)
}

func TestValidationErrorsPersistAfterBlockedNext(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemorySessionStore(), &MockKYCProvider{}, &MockSubmitter{})

	sessionID, _, err := svc.StartSession(ctx)
	require.NoError(t, err)

	state, err := svc.Next(ctx, sessionID)
	require.Error(t, err)
	assert.Contains(t, state.Errors, "owner_name")
	assert.Equal(t, types.StepFirst, state.Step)
}

func TestSubmitRejectedLocallyWithoutNetworkCall(t *testing.T) {
	ctx := context.Background()
	submitter := &MockSubmitter{}
	svc := newTestService(NewMemorySessionStore(), &MockKYCProvider{}, submitter)

	sessionID := startReadySession(t, svc, ctx)
	acceptAllAgreements(t, svc, ctx, sessionID)
	_, err := svc.FieldChange(ctx, sessionID, "digital_consent", "false")
	require.NoError(t, err)

	_, state, err := svc.Submit(ctx, sessionID)

	require.Error(t, err)
	assert.Contains(t, state.Errors, "digital_consent")
	submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestSubmitSuccessClearsSessionAndResets(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	submitter := &MockSubmitter{}
	submitter.On("Submit", mock.Anything, mock.Anything).
		Return(&types.SubmissionResult{Success: true, ApplicationID: "app-1"}, nil)
	svc := newTestService(store, &MockKYCProvider{}, submitter)

	sessionID := startReadySession(t, svc, ctx)
	acceptAllAgreements(t, svc, ctx, sessionID)

	result, state, err := svc.Submit(ctx, sessionID)

	require.NoError(t, err)
	assert.Equal(t, "app-1", result.ApplicationID)
	assert.Equal(t, types.StepFirst, state.Step)
	assert.Empty(t, state.Form.OwnerName)
	assert.False(t, state.Submitting)

	// The durable keys are gone; the session does not survive submission.
	_, err = store.LoadState(ctx, sessionID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

// blockingSubmitter parks every Submit call until released, so a test can
// hold one submission in flight while issuing another.
type blockingSubmitter struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingSubmitter) Submit(ctx context.Context, form *types.OnboardingForm) (*types.SubmissionResult, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-b.release
	return &types.SubmissionResult{Success: true, ApplicationID: "app-slow"}, nil
}

func (b *blockingSubmitter) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestConcurrentSubmitDeliversOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	submitter := &blockingSubmitter{release: make(chan struct{})}
	svc := newTestService(store, &MockKYCProvider{}, submitter)

	sessionID := startReadySession(t, svc, ctx)
	acceptAllAgreements(t, svc, ctx, sessionID)

	firstDone := make(chan error, 1)
	go func() {
		_, _, err := svc.Submit(ctx, sessionID)
		firstDone <- err
	}()

	// Wait until the first submission is on the wire.
	require.Eventually(t, func() bool { return submitter.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	_, state, err := svc.Submit(ctx, sessionID)
	require.Error(t, err)
	perr := err.(*types.PlatformError)
	assert.Equal(t, types.ErrCodeSubmitInFlight, perr.Code)
	require.NotNil(t, state)
	assert.True(t, state.Submitting)

	close(submitter.release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, submitter.callCount())
}

func TestSubmitFailureRetainsState(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	submitter := &MockSubmitter{}
	submitter.On("Submit", mock.Anything, mock.Anything).
		Return(nil, types.NewExternalError(types.ErrCodeExternalError, "endpoint down", nil))
	svc := newTestService(store, &MockKYCProvider{}, submitter)

	sessionID := startReadySession(t, svc, ctx)
	acceptAllAgreements(t, svc, ctx, sessionID)

	_, state, err := svc.Submit(ctx, sessionID)

	require.Error(t, err)
	assert.False(t, state.Submitting)

	reloaded, err := store.LoadState(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "A. Rao", reloaded.Form.OwnerName)
	assert.Len(t, reloaded.Form.Services, 1)
}

func TestKYCFailureRestoresFormButNotStep(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	kyc := &MockKYCProvider{}
	kyc.On("CreateSession", mock.Anything, mock.Anything).Return("tok-1", "state-1", nil)
	kyc.On("RedirectURL", "tok-1", "state-1").Return("https://kyc.example/verify?token=tok-1")
	kyc.On("Exchange", mock.Anything, "tok-1", "state-1").
		Return(nil, types.NewExternalError(types.ErrCodeKYCFailed, "verification declined", nil))
	svc := newTestService(store, kyc, &MockSubmitter{})

	sessionID, _, err := svc.StartSession(ctx)
	require.NoError(t, err)
	_, err = svc.FieldChange(ctx, sessionID, "owner_name", "Before KYC")
	require.NoError(t, err)

	redirect, err := svc.StartKYC(ctx, sessionID)
	require.NoError(t, err)
	assert.Contains(t, redirect, "tok-1")

	// Edits made mid round trip are discarded by the rollback.
	_, err = svc.FieldChange(ctx, sessionID, "owner_name", "During KYC")
	require.NoError(t, err)

	state, err := svc.CompleteKYC(ctx, sessionID, "tok-1", "state-1")

	require.Error(t, err)
	assert.Equal(t, "Before KYC", state.Form.OwnerName)
	assert.False(t, state.Form.IsKYC)
	assert.Equal(t, types.StepFirst, state.Step)

	// Both transient keys are gone regardless of outcome.
	_, err = store.LoadCheckpoint(ctx, sessionID)
	require.Error(t, err)
	_, err = store.LoadKYCToken(ctx, sessionID)
	require.Error(t, err)
}

func TestKYCSuccessMergesIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	kyc := &MockKYCProvider{}
	kyc.On("CreateSession", mock.Anything, mock.Anything).Return("tok-2", "state-2", nil)
	kyc.On("RedirectURL", "tok-2", "state-2").Return("https://kyc.example/verify?token=tok-2")
	kyc.On("Exchange", mock.Anything, "tok-2", "state-2").
		Return(&types.KYCData{Name: "Verified Rao", DocumentID: "XXXX1234"}, nil)
	svc := newTestService(store, kyc, &MockSubmitter{})

	sessionID, _, err := svc.StartSession(ctx)
	require.NoError(t, err)

	_, err = svc.StartKYC(ctx, sessionID)
	require.NoError(t, err)

	state, err := svc.CompleteKYC(ctx, sessionID, "tok-2", "state-2")

	require.NoError(t, err)
	assert.True(t, state.Form.IsKYC)
	assert.Equal(t, "Verified Rao", state.Form.OwnerName)
	require.NotNil(t, state.Form.KYC)
	assert.Equal(t, "XXXX1234", state.Form.KYC.DocumentID)

	_, err = store.LoadCheckpoint(ctx, sessionID)
	require.Error(t, err)
}

func TestCompleteKYCRejectsMismatchedToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	kyc := &MockKYCProvider{}
	kyc.On("CreateSession", mock.Anything, mock.Anything).Return("tok-3", "state-3", nil)
	kyc.On("RedirectURL", "tok-3", "state-3").Return("https://kyc.example/verify")
	svc := newTestService(store, kyc, &MockSubmitter{})

	sessionID, _, err := svc.StartSession(ctx)
	require.NoError(t, err)
	_, err = svc.StartKYC(ctx, sessionID)
	require.NoError(t, err)

	_, err = svc.CompleteKYC(ctx, sessionID, "tok-forged", "state-3")

	require.Error(t, err)
	kyc.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartKYCFailureLeavesNoCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	kyc := &MockKYCProvider{}
	kyc.On("CreateSession", mock.Anything, mock.Anything).
		Return("", "", types.NewExternalError(types.ErrCodeKYCFailed, "provider down", nil))
	svc := newTestService(store, kyc, &MockSubmitter{})

	sessionID, _, err := svc.StartSession(ctx)
	require.NoError(t, err)

	_, err = svc.StartKYC(ctx, sessionID)
	require.Error(t, err)

	_, err = store.LoadCheckpoint(ctx, sessionID)
	require.Error(t, err)
}

func TestSignatureCaptureThroughService(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemorySessionStore(), &MockKYCProvider{}, &MockSubmitter{})

	sessionID, _, err := svc.StartSession(ctx)
	require.NoError(t, err)

	state, err := svc.CaptureSignature(ctx, sessionID, signaturePNGDataURI(t))
	require.NoError(t, err)

	att := state.Form.Documents[types.SlotSignature]
	require.NotNil(t, att)
	assert.Equal(t, "image/png", att.ContentType)
}
