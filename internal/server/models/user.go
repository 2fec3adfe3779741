// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	TokenUsage int64     `json:"token_usage"`
	PlanTier   string    `json:"plan_tier"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
