// Package common contains shared constants and sentinel errors used across
// chatdb components.
package common

// Message roles accepted by the messages table check constraint.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NotificationTypeSystem is the type assigned to broadcast notifications.
const NotificationTypeSystem = "system"

// UnreadCountHeaderName is the HTTP response header that carries the
// default user's unread notification count on API responses.
const UnreadCountHeaderName = "X-Unread-Count"
