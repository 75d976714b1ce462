// Package repository declares the persistence contracts the services depend
// on. Implementations live in sub-packages (see sqlstore).
//
// Every method takes a context so a cancelled request stops its queries.
// Lookups that find nothing return an apperror.ErrNotFound error.
package repository

import (
	"context"
	"time"

	"github.com/sakif/tubescribe/internal/model"
)

// ListOptions pages a listing. A zero Limit returns every row.
type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// CreateUser inserts u and its profile. ID and DateJoined are filled in.
	// A taken email returns an apperror.ErrValidation error on "email".
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail expects an already normalized email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	// DeleteUser removes the user; posts, profile, ban and usage rows cascade.
	DeleteUser(ctx context.Context, id string) error
	// GetProfile returns the profile, creating a default one if it is missing.
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	UpdateTheme(ctx context.Context, userID string, theme model.Theme) (*model.UserProfile, error)
}

type InviteRepository interface {
	CreateInvite(ctx context.Context, c *model.InviteCode) error
	GetInviteByCode(ctx context.Context, code string) (*model.InviteCode, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	ListInvites(ctx context.Context) ([]model.InviteCode, error)
	ListInviteUsages(ctx context.Context, inviteID string) ([]model.InviteCodeUsage, error)
	DeactivateInvite(ctx context.Context, code string) (*model.InviteCode, error)
	DeleteInvite(ctx context.Context, code string) error

	// RedeemInvite atomically consumes one use of code and creates u with
	// its profile and usage record. Nothing is written if any step fails,
	// and a code that is no longer valid at `at` is rejected with an
	// apperror.ErrValidation error on "invite_code".
	RedeemInvite(ctx context.Context, code string, u *model.User, at time.Time) error
}

type BanRepository interface {
	// UpsertBan creates or replaces the user's ban and deactivates the
	// account in one transaction. Superusers are refused.
	UpsertBan(ctx context.Context, b *model.UserBan) (*model.UserBan, error)
	GetBanByUserID(ctx context.Context, userID string) (*model.UserBan, error)
	ListBans(ctx context.Context) ([]model.UserBan, error)
}

type BlogRepository interface {
	// UpsertBlogPost inserts p, or overwrites the post the same user already
	// has for p.YouTubeURL while keeping its ID and CreatedAt.
	UpsertBlogPost(ctx context.Context, p *model.BlogPost) (*model.BlogPost, error)
	GetBlogPostByURL(ctx context.Context, userID, youtubeURL string) (*model.BlogPost, error)
	GetBlogPost(ctx context.Context, id string) (*model.BlogPost, error)
	// ListBlogPostsByUser returns the user's posts, newest first.
	ListBlogPostsByUser(ctx context.Context, userID string) ([]model.BlogPost, error)
	DeleteBlogPost(ctx context.Context, id string) error
}

type StatsRepository interface {
	// Stats counts rows as of now. monthStart bounds the "this month" counts.
	Stats(ctx context.Context, now, monthStart time.Time) (*model.Stats, error)
}

// Store is the full persistence surface one backend provides.
type Store interface {
	UserRepository
	InviteRepository
	BanRepository
	BlogRepository
	StatsRepository

	Ping(ctx context.Context) error
	Close() error
}
