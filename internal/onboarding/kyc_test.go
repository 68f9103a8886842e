package onboarding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

func newKYCTestClient(baseURL string) *HTTPKYCClient {
	return NewHTTPKYCClient(&config.KYCConfig{
		BaseURL:     baseURL,
		CompanyID:   "company-1",
		Secret:      "test-secret",
		RedirectURL: "https://app.example/kyc/callback",
		DocTypes:    []string{"AADHAAR"},
		TimeoutSec:  5,
	}, logger.New("error"))
}

func TestCreateSessionHandshake(t *testing.T) {
	var gotReq kycSessionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/session", r.URL.Path)
		require.Equal(t, "Bearer test-secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(kycSessionResponse{Success: true, Token: "tok-abc"})
	}))
	defer server.Close()

	client := newKYCTestClient(server.URL)
	token, state, err := client.CreateSession(context.Background(), "session-1")

	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
	assert.NotEmpty(t, state)
	assert.Equal(t, "company-1", gotReq.CompanyID)
	assert.Equal(t, []string{"AADHAAR"}, gotReq.DocTypes)

	// The state parameter round-trips back to the originating session.
	sid, err := client.VerifyStateSession(state)
	require.NoError(t, err)
	assert.Equal(t, "session-1", sid)
}

func TestCreateSessionProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(kycSessionResponse{Success: false, Message: "company suspended"})
	}))
	defer server.Close()

	client := newKYCTestClient(server.URL)
	_, _, err := client.CreateSession(context.Background(), "session-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "company suspended")
}

func TestRedirectURLCarriesTokenAndState(t *testing.T) {
	client := newKYCTestClient("https://kyc.example")
	url := client.RedirectURL("tok-1", "state-1")
	assert.Contains(t, url, "https://kyc.example/verify?")
	assert.Contains(t, url, "token=tok-1")
	assert.Contains(t, url, "state=state-1")
}

func TestExchangeReturnsIdentityData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/exchange", r.URL.Path)
		json.NewEncoder(w).Encode(kycExchangeResponse{
			Success: true,
			Data:    &types.KYCData{Name: "A. Rao", DocumentID: "XXXX9999"},
		})
	}))
	defer server.Close()

	client := newKYCTestClient(server.URL)
	state, err := client.signState("session-1")
	require.NoError(t, err)

	data, err := client.Exchange(context.Background(), "tok-1", state)

	require.NoError(t, err)
	assert.Equal(t, "A. Rao", data.Name)
	assert.Equal(t, "XXXX9999", data.DocumentID)
}

func TestExchangeRejectsTamperedState(t *testing.T) {
	client := newKYCTestClient("https://unused.example")

	_, err := client.Exchange(context.Background(), "tok-1", "not-a-jwt")

	require.Error(t, err)
	perr := err.(*types.PlatformError)
	assert.Equal(t, types.ErrCodeKYCFailed, perr.Code)
}

func TestExchangeRejectsStateSignedWithOtherSecret(t *testing.T) {
	other := newKYCTestClient("https://unused.example")
	other.cfg.Secret = "different-secret"
	state, err := other.signState("session-1")
	require.NoError(t, err)

	client := newKYCTestClient("https://unused.example")
	_, err = client.Exchange(context.Background(), "tok-1", state)
	require.Error(t, err)
}

func TestExchangeProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(kycExchangeResponse{Success: false, Message: "document mismatch"})
	}))
	defer server.Close()

	client := newKYCTestClient(server.URL)
	state, err := client.signState("session-1")
	require.NoError(t, err)

	_, err = client.Exchange(context.Background(), "tok-1", state)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "document mismatch")
}

func TestProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newKYCTestClient(server.URL)
	_, _, err := client.CreateSession(context.Background(), "session-1")
	require.Error(t, err)
}
