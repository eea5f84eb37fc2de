package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role separates regular shop users from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a users row. Balance and ReferralBalance are kopecks and
// are only ever mutated through conditional updates; they never go negative.
type User struct {
	ID              uuid.UUID `json:"id"`
	TelegramID      *int64    `json:"telegram_id,omitempty"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name,omitempty"`
	Role            Role      `json:"role"`
	Balance         int64     `json:"balance"`
	ReferralBalance int64     `json:"referral_balance"`
	ReferrerID      *uuid.UUID `json:"referrer_id,omitempty"`
	ExchangeUID     *string   `json:"exchange_uid,omitempty"`
	IsBanned        bool      `json:"is_banned"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user may perform administrative operations.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
