package notification

import (
	"context"
	"errors"
	"time"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/monitoring"
	"github.com/medimart/platform/pkg/types"
)

// DefaultDedupWindow suppresses identical notifications created for the same
// user inside this window.
const DefaultDedupWindow = 10 * time.Minute

// Service is the notification center: it stores notifications with
// deduplication and fans out pushes to the user's registered devices.
type Service struct {
	repo        Repository
	push        PushSender
	dedupWindow time.Duration
	logger      *logger.Logger
	metrics     *monitoring.MetricsCollector
}

// NewService creates a notification service.
func NewService(repo Repository, push PushSender, dedupWindow time.Duration, log *logger.Logger, metrics *monitoring.MetricsCollector) *Service {
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	return &Service{
		repo:        repo,
		push:        push,
		dedupWindow: dedupWindow,
		logger:      log,
		metrics:     metrics,
	}
}

// CreateRequest carries a new notification.
type CreateRequest struct {
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	Reference string `json:"reference,omitempty"`
}

// Create stores a notification and pushes it to the user's devices. An
// identical notification inside the dedup window is silently absorbed: the
// existing entry is returned and no second push goes out.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*types.Notification, bool, error) {
	if req.UserID == "" || req.Title == "" {
		return nil, false, types.NewValidationError(types.ErrCodeInvalidInput,
			"user_id and title are required", nil)
	}
	if req.Type == "" {
		req.Type = types.NotificationTypeSystem
	}

	existing, err := s.repo.FindRecent(ctx, req.UserID, req.Title, req.Body, time.Now().Add(-s.dedupWindow))
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.metrics.RecordNotification(req.Type, "deduplicated")
		s.logger.WithFields(map[string]interface{}{
			"user_id": req.UserID,
			"type":    req.Type,
		}).Debug("Duplicate notification absorbed")
		return existing, true, nil
	}

	n := &types.Notification{
		UserID:    req.UserID,
		Title:     req.Title,
		Body:      req.Body,
		Type:      req.Type,
		Reference: req.Reference,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		s.metrics.RecordNotification(req.Type, "failed")
		return nil, false, err
	}
	s.metrics.RecordNotification(req.Type, "created")

	s.fanOut(ctx, n)
	return n, false, nil
}

// fanOut pushes the notification to each of the user's devices. Push failures
// never fail creation; unregistered tokens are dropped.
func (s *Service) fanOut(ctx context.Context, n *types.Notification) {
	if s.push == nil {
		return
	}
	tokens, err := s.repo.DeviceTokens(ctx, n.UserID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", n.UserID).Warn("Failed to load device tokens")
		return
	}

	data := map[string]string{"type": n.Type}
	if n.Reference != "" {
		data["reference"] = n.Reference
	}

	for _, token := range tokens {
		err := s.push.Send(ctx, token.Token, n.Title, n.Body, data)
		if errors.Is(err, ErrUnregisteredToken) {
			if delErr := s.repo.DeleteDeviceToken(ctx, token.Token); delErr != nil {
				s.logger.WithError(delErr).Warn("Failed to drop unregistered device token")
			}
			continue
		}
		if err != nil {
			s.logger.WithError(err).WithField("user_id", n.UserID).Warn("Push delivery failed")
		}
	}
}

// List returns one page of a user's notifications plus the total.
func (s *Service) List(ctx context.Context, filters *types.NotificationFilters) ([]*types.Notification, int64, error) {
	if filters.UserID == "" {
		return nil, 0, types.NewValidationError(types.ErrCodeInvalidInput, "user_id is required", nil)
	}
	return s.repo.List(ctx, filters)
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}

// MarkAllRead marks all of a user's notifications read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// UnreadCount returns the badge count for a user.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// RegisterDevice binds a push token to a user.
func (s *Service) RegisterDevice(ctx context.Context, token *types.DeviceToken) error {
	if token.UserID == "" || token.Token == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "user_id and token are required", nil)
	}
	return s.repo.SaveDeviceToken(ctx, token)
}
