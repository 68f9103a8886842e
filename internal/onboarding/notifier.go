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

// HTTPNotifier posts registry events to the notification service. Delivery is
// best effort: the application is already persisted when the announcement
// goes out, so failures are only logged.
type HTTPNotifier struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPNotifier creates a notifier targeting the notification service.
func NewHTTPNotifier(baseURL string, log *logger.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log,
	}
}

// ApplicationReceived announces a freshly registered lab application.
func (n *HTTPNotifier) ApplicationReceived(ctx context.Context, app *types.LabApplication) {
	n.post(ctx, app, "Application received",
		fmt.Sprintf("Your application for %s is under review.", app.LabName))
}

// ApplicationDecided announces a review decision.
func (n *HTTPNotifier) ApplicationDecided(ctx context.Context, app *types.LabApplication) {
	n.post(ctx, app, "Application "+app.Status,
		fmt.Sprintf("Your application for %s has been %s.", app.LabName, app.Status))
}

func (n *HTTPNotifier) post(ctx context.Context, app *types.LabApplication, title, body string) {
	payload := map[string]string{
		"user_id":   app.Email,
		"title":     title,
		"body":      body,
		"type":      types.NotificationTypeOnboarding,
		"reference": app.ID,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		n.logger.WithError(err).Error("Failed to encode notification payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		n.baseURL+"/api/v1/notifications", bytes.NewReader(raw))
	if err != nil {
		n.logger.WithError(err).Error("Failed to build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := n.httpClient.Do(req)
	n.logger.ExternalCall("notification-service", "notify", err == nil, time.Since(start).Milliseconds())
	if err != nil {
		n.logger.WithError(err).WithField("application_id", app.ID).Warn("Failed to announce application")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.WithFields(map[string]interface{}{
			"application_id": app.ID,
			"status":         resp.StatusCode,
		}).Warn("Notification service rejected announcement")
	}
}
