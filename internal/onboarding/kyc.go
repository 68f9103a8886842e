package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medimart/platform/pkg/config"
	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// KYCProvider is the external identity-verification gateway. The handshake is
// two calls: CreateSession obtains a single-use token the applicant is
// redirected with, Exchange trades the returned token for verified identity
// data once the applicant comes back.
type KYCProvider interface {
	CreateSession(ctx context.Context, sessionID string) (token, state string, err error)
	RedirectURL(token, state string) string
	Exchange(ctx context.Context, token, state string) (*types.KYCData, error)
	VerifyStateSession(state string) (string, error)
}

// HTTPKYCClient talks to the verification gateway over HTTPS.
type HTTPKYCClient struct {
	cfg        *config.KYCConfig
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPKYCClient creates a verification client from configuration.
func NewHTTPKYCClient(cfg *config.KYCConfig, log *logger.Logger) *HTTPKYCClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPKYCClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

type kycSessionRequest struct {
	CompanyID   string   `json:"company_id"`
	RedirectURL string   `json:"redirect_url"`
	DocTypes    []string `json:"doc_types"`
	State       string   `json:"state"`
}

type kycSessionResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

type kycExchangeResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    *types.KYCData `json:"data"`
}

// stateClaims binds the round trip to the originating wizard session so a
// callback cannot be replayed against a different session.
type stateClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CreateSession opens a verification session with the provider and returns
// the provider token plus the signed state parameter.
func (c *HTTPKYCClient) CreateSession(ctx context.Context, sessionID string) (string, string, error) {
	state, err := c.signState(sessionID)
	if err != nil {
		return "", "", types.NewInternalError(types.ErrCodeInternalError, "Failed to sign verification state", err)
	}

	body, err := json.Marshal(kycSessionRequest{
		CompanyID:   c.cfg.CompanyID,
		RedirectURL: c.cfg.RedirectURL,
		DocTypes:    c.cfg.DocTypes,
		State:       state,
	})
	if err != nil {
		return "", "", types.NewInternalError(types.ErrCodeInternalError, "Failed to encode verification request", err)
	}

	start := time.Now()
	var resp kycSessionResponse
	err = c.post(ctx, "/api/v1/session", body, &resp)
	c.logger.ExternalCall("kyc", "create_session", err == nil, time.Since(start).Milliseconds())
	if err != nil {
		return "", "", err
	}
	if !resp.Success || resp.Token == "" {
		return "", "", types.NewExternalError(types.ErrCodeKYCFailed,
			providerMessage(resp.Message, "Verification provider rejected the session request"), nil)
	}

	return resp.Token, state, nil
}

// RedirectURL builds the provider page the applicant is sent to.
func (c *HTTPKYCClient) RedirectURL(token, state string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("state", state)
	return fmt.Sprintf("%s/verify?%s", c.cfg.BaseURL, q.Encode())
}

// Exchange trades a returned token for verified identity data. The state
// parameter must verify against our signing secret before any network call.
func (c *HTTPKYCClient) Exchange(ctx context.Context, token, state string) (*types.KYCData, error) {
	if _, err := c.verifyState(state); err != nil {
		return nil, types.NewExternalError(types.ErrCodeKYCFailed, "Verification state is invalid or expired", err)
	}

	body, err := json.Marshal(map[string]string{
		"company_id": c.cfg.CompanyID,
		"token":      token,
	})
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to encode exchange request", err)
	}

	start := time.Now()
	var resp kycExchangeResponse
	err = c.post(ctx, "/api/v1/exchange", body, &resp)
	c.logger.ExternalCall("kyc", "exchange", err == nil, time.Since(start).Milliseconds())
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, types.NewExternalError(types.ErrCodeKYCFailed,
			providerMessage(resp.Message, "Identity verification was not completed"), nil)
	}

	return resp.Data, nil
}

// VerifyStateSession extracts the wizard session a state parameter was issued
// for. Used by the callback handler to route the round trip.
func (c *HTTPKYCClient) VerifyStateSession(state string) (string, error) {
	claims, err := c.verifyState(state)
	if err != nil {
		return "", err
	}
	return claims.SessionID, nil
}

func (c *HTTPKYCClient) post(ctx context.Context, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "Failed to build verification request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.NewExternalError(types.ErrCodeKYCFailed, "Verification provider is unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return types.NewExternalError(types.ErrCodeKYCFailed,
			fmt.Sprintf("Verification provider returned status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewExternalError(types.ErrCodeKYCFailed, "Verification provider sent an unreadable response", err)
	}
	return nil
}

func (c *HTTPKYCClient) signState(sessionID string) (string, error) {
	now := time.Now()
	claims := stateClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "medimart-onboarding",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(kycRoundTripTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.Secret))
}

func (c *HTTPKYCClient) verifyState(state string) (*stateClaims, error) {
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(c.cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func providerMessage(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
