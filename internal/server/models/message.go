package models

import "time"

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	TokenCount     int       `json:"token_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageWithTotal is a message annotated with the running sum of token
// counts over the conversation up to and including this message. The total
// is recomputed per read, never stored.
type MessageWithTotal struct {
	Message
	RunningTotal int64 `json:"running_total"`
}
