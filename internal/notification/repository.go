package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medimart/platform/pkg/types"
)

// Repository persists notifications and device tokens.
type Repository interface {
	Insert(ctx context.Context, n *types.Notification) error
	FindRecent(ctx context.Context, userID, title, body string, since time.Time) (*types.Notification, error)
	List(ctx context.Context, filters *types.NotificationFilters) ([]*types.Notification, int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	SaveDeviceToken(ctx context.Context, token *types.DeviceToken) error
	DeviceTokens(ctx context.Context, userID string) ([]*types.DeviceToken, error)
	DeleteDeviceToken(ctx context.Context, token string) error
}

// MongoRepository implements Repository on mongo collections.
type MongoRepository struct {
	notifications *mongo.Collection
	deviceTokens  *mongo.Collection
}

// NewMongoRepository creates a mongo-backed notification repository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		notifications: db.Collection("notifications"),
		deviceTokens:  db.Collection("device_tokens"),
	}
}

// Insert stores one notification.
func (r *MongoRepository) Insert(ctx context.Context, n *types.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if _, err := r.notifications.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// FindRecent returns a notification with the same user, title and body
// created at or after since, or nil when none exists. Drives deduplication.
func (r *MongoRepository) FindRecent(ctx context.Context, userID, title, body string, since time.Time) (*types.Notification, error) {
	filter := bson.M{
		"user_id":    userID,
		"title":      title,
		"body":       body,
		"created_at": bson.M{"$gte": since},
	}

	n := &types.Notification{}
	err := r.notifications.FindOne(ctx, filter).Decode(n)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recent notification: %w", err)
	}
	return n, nil
}

// List returns one page of a user's notifications, newest first, plus the
// total match count.
func (r *MongoRepository) List(ctx context.Context, filters *types.NotificationFilters) ([]*types.Notification, int64, error) {
	filter := bson.M{"user_id": filters.UserID}
	if filters.UnreadOnly {
		filter["read"] = false
	}

	total, err := r.notifications.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	limit := int64(filters.Limit)
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(filters.Offset)).
		SetLimit(limit)

	cursor, err := r.notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []*types.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead marks one of the user's notifications read.
func (r *MongoRepository) MarkRead(ctx context.Context, userID, id string) error {
	result, err := r.notifications.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.MatchedCount == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read.
func (r *MongoRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.notifications.UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.ModifiedCount, nil
}

// UnreadCount returns the user's unread notification count.
func (r *MongoRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := r.notifications.CountDocuments(ctx, bson.M{"user_id": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// SaveDeviceToken registers a device for push delivery, replacing any
// previous registration of the same token.
func (r *MongoRepository) SaveDeviceToken(ctx context.Context, token *types.DeviceToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.deviceTokens.ReplaceOne(ctx, bson.M{"token": token.Token}, token, opts); err != nil {
		return fmt.Errorf("failed to save device token: %w", err)
	}
	return nil
}

// DeviceTokens returns every registered device for a user.
func (r *MongoRepository) DeviceTokens(ctx context.Context, userID string) ([]*types.DeviceToken, error) {
	cursor, err := r.deviceTokens.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer cursor.Close(ctx)

	tokens := []*types.DeviceToken{}
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode device tokens: %w", err)
	}
	return tokens, nil
}

// DeleteDeviceToken drops a registration, typically after the push provider
// reports the token gone.
func (r *MongoRepository) DeleteDeviceToken(ctx context.Context, token string) error {
	if _, err := r.deviceTokens.DeleteOne(ctx, bson.M{"token": token}); err != nil {
		return fmt.Errorf("failed to delete device token: %w", err)
	}
	return nil
}
