package notification

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/logger"
)

func testServiceAccountKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func TestFCMSendExchangesTokenThenDelivers(t *testing.T) {
	var tokenCalls, sendCalls int
	var sentPayload map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.Form.Get("grant_type"))
		assert.NotEmpty(t, r.Form.Get("assertion"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "oauth-token-1",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		sendCalls++
		assert.Equal(t, "Bearer oauth-token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sentPayload))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewFCMClient(&config.FCMConfig{
		ProjectID:     "medimart-test",
		ClientEmail:   "svc@medimart-test.iam.gserviceaccount.com",
		PrivateKeyPEM: testServiceAccountKey(t),
		TokenURL:      server.URL + "/token",
		EndpointURL:   server.URL + "/send",
	}, logger.New("error"))

	err := client.Send(context.Background(), "device-1", "Hello", "World", map[string]string{"type": "system"})
	require.NoError(t, err)

	message := sentPayload["message"].(map[string]interface{})
	assert.Equal(t, "device-1", message["token"])

	// A second send reuses the cached access token.
	require.NoError(t, client.Send(context.Background(), "device-2", "Hi", "Again", nil))
	assert.Equal(t, 1, tokenCalls)
	assert.Equal(t, 2, sendCalls)
}

func TestFCMSendMapsGoneTokens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"Requested entity was not found."}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewFCMClient(&config.FCMConfig{
		ClientEmail:   "svc@test",
		PrivateKeyPEM: testServiceAccountKey(t),
		TokenURL:      server.URL + "/token",
		EndpointURL:   server.URL + "/send",
	}, logger.New("error"))

	err := client.Send(context.Background(), "gone-device", "T", "B", nil)
	assert.ErrorIs(t, err, ErrUnregisteredToken)
}

func TestFCMTokenExchangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewFCMClient(&config.FCMConfig{
		ClientEmail:   "svc@test",
		PrivateKeyPEM: testServiceAccountKey(t),
		TokenURL:      server.URL,
		EndpointURL:   server.URL,
	}, logger.New("error"))

	err := client.Send(context.Background(), "device-1", "T", "B", nil)
	require.Error(t, err)
}

func TestFCMRejectsBadKey(t *testing.T) {
	client := NewFCMClient(&config.FCMConfig{
		ClientEmail:   "svc@test",
		PrivateKeyPEM: "not a pem",
		TokenURL:      "http://127.0.0.1:0",
	}, logger.New("error"))

	err := client.Send(context.Background(), "device-1", "T", "B", nil)
	require.Error(t, err)
}
