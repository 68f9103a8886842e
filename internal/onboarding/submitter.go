package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// Submitter delivers a finished form to the registry endpoint.
type Submitter interface {
	Submit(ctx context.Context, form *types.OnboardingForm) (*types.SubmissionResult, error)
}

// HTTPSubmitter posts the multipart body to the registry over HTTP.
type HTTPSubmitter struct {
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPSubmitter creates a registry client for the given endpoint.
func NewHTTPSubmitter(endpoint string, log *logger.Logger) *HTTPSubmitter {
	return &HTTPSubmitter{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     log,
	}
}

// Submit serializes and posts the form. A transport failure or non-2xx status
// is an error; the caller keeps the session intact in that case.
func (s *HTTPSubmitter) Submit(ctx context.Context, form *types.OnboardingForm) (*types.SubmissionResult, error) {
	body, contentType, err := BuildSubmission(form)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to serialize submission", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to build submission request", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	s.logger.ExternalCall("registry", "submit", err == nil, time.Since(start).Milliseconds())
	if err != nil {
		return nil, types.NewExternalError(types.ErrCodeExternalError, "Submission endpoint is unreachable", err)
	}
	defer resp.Body.Close()

	result := &types.SubmissionResult{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, types.NewExternalError(types.ErrCodeExternalError, "Submission endpoint sent an unreadable response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !result.Success {
		msg := result.Message
		if msg == "" {
			msg = fmt.Sprintf("Submission rejected with status %d", resp.StatusCode)
		}
		return nil, types.NewExternalError(types.ErrCodeExternalError, msg, nil)
	}

	return result, nil
}
