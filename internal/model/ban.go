package model

import "time"

// UserBan is the single ban record a user may carry.
// A ban without ExpiresAt never lapses.
type UserBan struct {
	ID            string     `db:"id"`
	UserID        string     `db:"user_id"`
	UserEmail     string     `db:"user_email"`
	BannedByID    *string    `db:"banned_by_id"`
	BannedByEmail *string    `db:"banned_by_email"`
	Reason        string     `db:"reason"`
	BannedAt      time.Time  `db:"banned_at"`
	ExpiresAt     *time.Time `db:"expires_at"`
}

// IsActiveAt reports whether the ban is in force at now.
func (b *UserBan) IsActiveAt(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// IsActive is IsActiveAt evaluated against the wall clock.
func (b *UserBan) IsActive() bool {
	return b.IsActiveAt(time.Now())
}
