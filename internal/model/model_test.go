package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptrTime(t time.Time) *time.Time { return &t }

// ===== INVITE CODE TESTS =====

func TestInviteCodeIsValidAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		invite InviteCode
		want   bool
	}{
		{
			name:   "fresh single-use code without expiry",
			invite: InviteCode{Code: "ABCD1234", MaxUses: 1, Uses: 0, IsActive: true},
			want:   true,
		},
		{
			name:   "exhausted code",
			invite: InviteCode{Code: "ABCD1234", MaxUses: 1, Uses: 1, IsActive: true},
			want:   false,
		},
		{
			name:   "exhausted code with future expiry",
			invite: InviteCode{MaxUses: 3, Uses: 3, IsActive: true, ExpiresAt: ptrTime(now.Add(time.Hour))},
			want:   false,
		},
		{
			name:   "inactive code",
			invite: InviteCode{MaxUses: 5, Uses: 0, IsActive: false},
			want:   false,
		},
		{
			name:   "expired code",
			invite: InviteCode{MaxUses: 5, Uses: 0, IsActive: true, ExpiresAt: ptrTime(now.Add(-time.Second))},
			want:   false,
		},
		{
			name:   "expiry exactly now is still valid",
			invite: InviteCode{MaxUses: 5, Uses: 0, IsActive: true, ExpiresAt: ptrTime(now)},
			want:   true,
		},
		{
			name:   "future expiry with uses left",
			invite: InviteCode{MaxUses: 5, Uses: 4, IsActive: true, ExpiresAt: ptrTime(now.Add(24 * time.Hour))},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.invite.IsValidAt(now))
		})
	}
}

func TestInviteCodeBecomesInvalidAfterLastUse(t *testing.T) {
	invite := InviteCode{Code: "ABCD1234", MaxUses: 1, Uses: 0, IsActive: true}
	assert.True(t, invite.IsValid())

	invite.Uses++
	assert.False(t, invite.IsValid())
}

func TestNormalizeInviteCode(t *testing.T) {
	assert.Equal(t, "ABCD1234", NormalizeInviteCode("  abcd1234 "))
	assert.Equal(t, "", NormalizeInviteCode("   "))
}

// ===== USER BAN TESTS =====

func TestUserBanIsActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	permanent := UserBan{UserID: "u1"}
	assert.True(t, permanent.IsActiveAt(now))

	running := UserBan{UserID: "u1", ExpiresAt: ptrTime(now.Add(time.Minute))}
	assert.True(t, running.IsActiveAt(now))

	lapsed := UserBan{UserID: "u1", ExpiresAt: ptrTime(now.Add(-time.Minute))}
	assert.False(t, lapsed.IsActiveAt(now))
}

func TestUserBanWithPastExpiryIsInactiveWithoutCleanup(t *testing.T) {
	ban := UserBan{ExpiresAt: ptrTime(time.Now().Add(-time.Hour))}
	assert.False(t, ban.IsActive())
}

// ===== USER TESTS =====

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"first and last", User{Email: "a@b.com", FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", User{Email: "a@b.com", FirstName: "Ada"}, "Ada"},
		{"whitespace names fall back to email", User{Email: "a@b.com", FirstName: "  ", LastName: " "}, "a@b.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DisplayName())
		})
	}
}

func TestUserIsAdmin(t *testing.T) {
	assert.False(t, (&User{}).IsAdmin())
	assert.True(t, (&User{IsStaff: true}).IsAdmin())
	assert.True(t, (&User{IsSuperuser: true}).IsAdmin())
}

func TestThemeValid(t *testing.T) {
	assert.True(t, ThemeLight.Valid())
	assert.True(t, ThemeDark.Valid())
	assert.False(t, Theme("blue").Valid())
	assert.False(t, Theme("").Valid())
}
