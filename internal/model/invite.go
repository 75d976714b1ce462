package model

import (
	"strings"
	"time"
)

const (
	// InviteCodeLength is the number of characters in a generated code.
	InviteCodeLength = 8
	// InviteCodeAlphabet lists the characters a code is drawn from.
	InviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// InviteCode gates registration. Validity is always computed from the stored
// fields and the current time; it is never persisted.
type InviteCode struct {
	ID             string     `db:"id"`
	Code           string     `db:"code"`
	CreatedByID    *string    `db:"created_by_id"`
	CreatedByEmail *string    `db:"created_by_email"`
	MaxUses        int        `db:"max_uses"`
	Uses           int        `db:"uses"`
	IsActive       bool       `db:"is_active"`
	CreatedAt      time.Time  `db:"created_at"`
	ExpiresAt      *time.Time `db:"expires_at"`
}

// IsExpiredAt reports whether the code has an expiry strictly before now.
func (c *InviteCode) IsExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// IsExhausted reports whether every permitted use has been consumed.
func (c *InviteCode) IsExhausted() bool {
	return c.Uses >= c.MaxUses
}

// IsValidAt reports whether the code can be redeemed at now.
func (c *InviteCode) IsValidAt(now time.Time) bool {
	return c.IsActive && !c.IsExhausted() && !c.IsExpiredAt(now)
}

// IsValid is IsValidAt evaluated against the wall clock.
func (c *InviteCode) IsValid() bool {
	return c.IsValidAt(time.Now())
}

// NormalizeInviteCode trims and upper-cases a user-supplied code.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// InviteCodeUsage records which user redeemed which code. One per user.
type InviteCodeUsage struct {
	ID           string    `db:"id"`
	InviteCodeID string    `db:"invite_code_id"`
	UserID       string    `db:"user_id"`
	Email        string    `db:"email"`
	UsedAt       time.Time `db:"used_at"`
}
