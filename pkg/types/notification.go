package types

import "time"

// Notification is one entry in a user's notification center.
type Notification struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Title     string    `json:"title" bson:"title"`
	Body      string    `json:"body" bson:"body"`
	Type      string    `json:"type" bson:"type"`
	Reference string    `json:"reference,omitempty" bson:"reference,omitempty"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Notification type values
const (
	NotificationTypeOnboarding = "onboarding"
	NotificationTypeOrder      = "order"
	NotificationTypeSystem     = "system"
	NotificationTypeSettings   = "settings"
)

// DeviceToken binds a push-capable device to a user.
type DeviceToken struct {
	UserID    string    `json:"user_id" bson:"user_id"`
	Token     string    `json:"token" bson:"token"`
	Platform  string    `json:"platform" bson:"platform"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NotificationFilters narrows notification listings.
type NotificationFilters struct {
	UserID     string `json:"user_id"`
	UnreadOnly bool   `json:"unread_only"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}
