package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/repository"
)

// ManagedUser is the staff view of an account. Ban is set only while the
// user's ban is in force.
type ManagedUser struct {
	User *model.User
	Ban  *model.UserBan
}

// IsBanned reports whether an active ban is attached.
func (m ManagedUser) IsBanned() bool {
	return m.Ban != nil
}

// UserAdminService backs the staff user-management endpoints.
type UserAdminService struct {
	users    repository.UserRepository
	bans     repository.BanRepository
	accounts *AccountService
	now      func() time.Time
	logger   zerolog.Logger
}

func NewUserAdminService(
	users repository.UserRepository,
	bans repository.BanRepository,
	accounts *AccountService,
	logger zerolog.Logger,
) *UserAdminService {
	return &UserAdminService{
		users:    users,
		bans:     bans,
		accounts: accounts,
		now:      time.Now,
		logger:   logger.With().Str("service", "user_admin").Logger(),
	}
}

// List returns users newest first with their active bans.
func (s *UserAdminService) List(ctx context.Context, opts repository.ListOptions) ([]ManagedUser, error) {
	users, err := s.users.ListUsers(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/user_admin: listing users: %w", err)
	}
	bans, err := s.bans.ListBans(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/user_admin: listing bans: %w", err)
	}

	now := s.now()
	byUser := make(map[string]*model.UserBan, len(bans))
	for i := range bans {
		if bans[i].IsActiveAt(now) {
			byUser[bans[i].UserID] = &bans[i]
		}
	}

	out := make([]ManagedUser, len(users))
	for i := range users {
		out[i] = ManagedUser{User: &users[i], Ban: byUser[users[i].ID]}
	}
	return out, nil
}

func (s *UserAdminService) Get(ctx context.Context, id string) (*ManagedUser, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user_admin: loading user: %w", err)
	}
	return s.withBan(ctx, u)
}

// Create registers a user on behalf of staff. The invite code is
// mandatory and is redeemed atomically with the insert.
func (s *UserAdminService) Create(ctx context.Context, in NewUser) (*ManagedUser, error) {
	if strings.TrimSpace(in.InviteCode) == "" {
		return nil, apperror.ValidationFailed("invite_code", "This field is required.")
	}
	in.IsStaff, in.IsSuperuser, in.IsActive = nil, nil, nil

	acct, err := s.accounts.CreateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	return &ManagedUser{User: acct.User}, nil
}

// Delete hard-deletes a user. Staff cannot delete their own account here.
func (s *UserAdminService) Delete(ctx context.Context, actor *model.User, id string) error {
	if actor != nil && actor.ID == id {
		return apperror.ValidationFailed("id", "Use the account endpoint to delete your own account.")
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("service/user_admin: deleting user %s: %w", id, err)
	}
	s.logger.Info().Str("user_id", id).Msg("user deleted by staff")
	return nil
}

func (s *UserAdminService) withBan(ctx context.Context, u *model.User) (*ManagedUser, error) {
	ban, err := s.bans.GetBanByUserID(ctx, u.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &ManagedUser{User: u}, nil
		}
		return nil, fmt.Errorf("service/user_admin: loading ban: %w", err)
	}
	if !ban.IsActiveAt(s.now()) {
		ban = nil
	}
	return &ManagedUser{User: u, Ban: ban}, nil
}
