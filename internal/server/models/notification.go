package models

import "time"

// Payload is the free-form JSON document attached to a notification.
type Payload map[string]any

// ConversationID extracts the conversation reference from the payload,
// when one is present and is a non-empty string.
func (p Payload) ConversationID() (string, bool) {
	v, ok := p["conversation_id"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Payload   Payload   `json:"payload"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationWithTitle is a notification enriched with the title of the
// conversation its payload points at. The title is nil when the payload
// carries no resolvable conversation reference.
type NotificationWithTitle struct {
	Notification
	ConversationTitle *string `json:"conversation_title"`
}
