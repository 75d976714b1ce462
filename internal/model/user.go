// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// User is an account keyed by its email address.
//
// Email is stored normalized (trimmed, lowercased), so equality on the
// column is equality of identities. PasswordHash never leaves the server.
type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	PasswordHash string     `db:"password_hash"`
	IsActive     bool       `db:"is_active"`
	IsStaff      bool       `db:"is_staff"`
	IsSuperuser  bool       `db:"is_superuser"`
	DateJoined   time.Time  `db:"date_joined"`
	LastLogin    *time.Time `db:"last_login"`
}

// DisplayName is "First Last", or the email when both names are blank.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}

// IsAdmin reports whether the user may use the management surface.
// Superusers count as staff.
func (u *User) IsAdmin() bool {
	return u.IsStaff || u.IsSuperuser
}

// Theme is the UI colour scheme stored on a profile.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultTheme is used for new and repaired profiles.
const DefaultTheme = ThemeLight

// Valid reports whether t is one of the enumerated themes.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// UserProfile holds per-user preferences. Exactly one exists per user.
type UserProfile struct {
	UserID  string `db:"user_id"`
	UITheme Theme  `db:"ui_theme"`
}
