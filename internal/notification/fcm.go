package notification

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// PushSender delivers one push message to a device token.
type PushSender interface {
	Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}

// ErrUnregisteredToken marks a device token the provider no longer knows.
// Callers drop the registration when they see it.
var ErrUnregisteredToken = types.NewExternalError("FCM_UNREGISTERED", "Device token is no longer registered", nil)

// FCMClient sends pushes through the FCM HTTP v1 API. Authentication is a
// service-account JWT signed with RS256 exchanged for a short-lived OAuth
// access token, cached until shortly before expiry.
type FCMClient struct {
	cfg        *config.FCMConfig
	httpClient *http.Client
	logger     *logger.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewFCMClient creates an FCM client from configuration.
func NewFCMClient(cfg *config.FCMConfig, log *logger.Logger) *FCMClient {
	return &FCMClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log,
	}
}

// Send delivers one message to a device token.
func (c *FCMClient) Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	accessToken, err := c.token(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"token": deviceToken,
			"notification": map[string]string{
				"title": title,
				"body":  body,
			},
			"data": data,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "Failed to encode push payload", err)
	}

	endpoint := c.cfg.EndpointURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", c.cfg.ProjectID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "Failed to build push request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.logger.ExternalCall("fcm", "send", err == nil, time.Since(start).Milliseconds())
	if err != nil {
		return types.NewExternalError(types.ErrCodeExternalError, "Push provider is unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrUnregisteredToken
	default:
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		msg := body.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("push rejected with status %d", resp.StatusCode)
		}
		return types.NewExternalError(types.ErrCodeExternalError, msg, nil)
	}
}

// token returns a valid access token, refreshing it when stale.
func (c *FCMClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt.Add(-1*time.Minute)) {
		return c.accessToken, nil
	}

	assertion, err := c.signAssertion()
	if err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "Failed to sign service-account assertion", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "Failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.logger.ExternalCall("fcm", "token", err == nil, time.Since(start).Milliseconds())
	if err != nil {
		return "", types.NewExternalError(types.ErrCodeExternalError, "OAuth token endpoint is unreachable", err)
	}
	defer resp.Body.Close()

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", types.NewExternalError(types.ErrCodeExternalError, "OAuth token response is unreadable", err)
	}
	if resp.StatusCode != http.StatusOK || tokenResp.AccessToken == "" {
		return "", types.NewExternalError(types.ErrCodeExternalError,
			fmt.Sprintf("OAuth token exchange failed with status %d", resp.StatusCode), nil)
	}

	c.accessToken = tokenResp.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// signAssertion builds the RS256 service-account JWT for the OAuth exchange.
func (c *FCMClient) signAssertion() (string, error) {
	block, _ := pem.Decode([]byte(c.cfg.PrivateKeyPEM))
	if block == nil {
		return "", fmt.Errorf("service-account private key is not valid PEM")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Older service accounts ship PKCS1 keys.
		if rsaKey, rsaErr := x509.ParsePKCS1PrivateKey(block.Bytes); rsaErr == nil {
			key = rsaKey
		} else {
			return "", fmt.Errorf("failed to parse service-account key: %w", err)
		}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.cfg.ClientEmail,
		"scope": "https://www.googleapis.com/auth/firebase.messaging",
		"aud":   c.cfg.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(1 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}
