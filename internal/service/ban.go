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

// NewBan is the input for banning a user by email.
type NewBan struct {
	Email     string
	Reason    string
	ExpiresAt *time.Time
}

// BanService applies bans. A ban is never lifted automatically: once it
// expires the record stays and the account stays inactive.
type BanService struct {
	users  repository.UserRepository
	bans   repository.BanRepository
	now    func() time.Time
	logger zerolog.Logger
}

func NewBanService(users repository.UserRepository, bans repository.BanRepository, logger zerolog.Logger) *BanService {
	return &BanService{
		users:  users,
		bans:   bans,
		now:    time.Now,
		logger: logger.With().Str("service", "ban").Logger(),
	}
}

// Ban creates or replaces the target's ban and deactivates the account.
// Unknown targets and superusers are rejected on "email" with nothing
// written.
func (s *BanService) Ban(ctx context.Context, admin *model.User, in NewBan) (*model.UserBan, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "This field is required.")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperror.ValidationFailed("reason", "This field is required.")
	}

	target, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("email", "User not found")
		}
		return nil, fmt.Errorf("service/ban: loading user: %w", err)
	}
	if target.IsSuperuser {
		return nil, apperror.ValidationFailed("email", "Cannot ban superuser accounts")
	}

	ban := &model.UserBan{
		UserID:    target.ID,
		Reason:    reason,
		BannedAt:  s.now().UTC(),
		ExpiresAt: in.ExpiresAt,
	}
	if admin != nil {
		ban.BannedByID = &admin.ID
	}

	saved, err := s.bans.UpsertBan(ctx, ban)
	if err != nil {
		return nil, fmt.Errorf("service/ban: saving ban: %w", err)
	}

	s.logger.Info().
		Str("user_id", target.ID).
		Str("banned_by", ptrString(ban.BannedByID)).
		Msg("user banned")
	return saved, nil
}

func ptrString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
