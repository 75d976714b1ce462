package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/repository"
)

// maxCodeAttempts bounds the collision retry loop in Generate.
const maxCodeAttempts = 32

// NewInvite is the input for creating an invite. Nil fields take the
// defaults: one use, active, no expiry.
type NewInvite struct {
	MaxUses   *int
	IsActive  *bool
	ExpiresAt *time.Time
}

// InviteDetail is an invite with the users who redeemed it.
type InviteDetail struct {
	Invite *model.InviteCode
	Usages []model.InviteCodeUsage
}

// InviteService manages invite codes.
type InviteService struct {
	invites  repository.InviteRepository
	now      func() time.Time
	randCode func() (string, error)
	logger   zerolog.Logger
}

func NewInviteService(invites repository.InviteRepository, logger zerolog.Logger) *InviteService {
	return &InviteService{
		invites:  invites,
		now:      time.Now,
		randCode: randomCode,
		logger:   logger.With().Str("service", "invite").Logger(),
	}
}

// Generate returns a code no stored invite uses yet.
func (s *InviteService) Generate(ctx context.Context) (string, error) {
	for range maxCodeAttempts {
		code, err := s.randCode()
		if err != nil {
			return "", fmt.Errorf("service/invite: generating code: %w", err)
		}
		exists, err := s.invites.InviteCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("service/invite: checking code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperror.Internal(fmt.Errorf("service/invite: no free code after %d attempts", maxCodeAttempts))
}

// Create generates a code and stores a new invite owned by creator.
// A code taken between Generate and the insert is retried.
func (s *InviteService) Create(ctx context.Context, creator *model.User, in NewInvite) (*model.InviteCode, error) {
	maxUses := 1
	if in.MaxUses != nil {
		maxUses = *in.MaxUses
	}
	if maxUses < 1 {
		return nil, apperror.ValidationFailed("max_uses", "Ensure this value is greater than or equal to 1.")
	}
	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, apperror.ValidationFailed("expires_at", "Expiry must be in the future.")
	}

	for range maxCodeAttempts {
		code, err := s.Generate(ctx)
		if err != nil {
			return nil, err
		}

		invite := &model.InviteCode{
			Code:      code,
			MaxUses:   maxUses,
			IsActive:  flag(in.IsActive, true),
			CreatedAt: now.UTC(),
			ExpiresAt: in.ExpiresAt,
		}
		if creator != nil {
			invite.CreatedByID = &creator.ID
		}

		err = s.invites.CreateInvite(ctx, invite)
		if errors.Is(err, apperror.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("service/invite: creating invite: %w", err)
		}

		s.logger.Info().Str("code", invite.Code).Int("max_uses", maxUses).Msg("invite created")
		return invite, nil
	}
	return nil, apperror.Internal(fmt.Errorf("service/invite: code collisions on every insert"))
}

// Validate returns the invite for code if it can be redeemed now.
func (s *InviteService) Validate(ctx context.Context, code string) (*model.InviteCode, error) {
	return checkInvite(ctx, s.invites, model.NormalizeInviteCode(code), s.now())
}

// Get returns the invite and its usages.
func (s *InviteService) Get(ctx context.Context, code string) (*InviteDetail, error) {
	invite, err := s.invites.GetInviteByCode(ctx, model.NormalizeInviteCode(code))
	if err != nil {
		return nil, fmt.Errorf("service/invite: loading invite: %w", err)
	}
	usages, err := s.invites.ListInviteUsages(ctx, invite.ID)
	if err != nil {
		return nil, fmt.Errorf("service/invite: listing usages: %w", err)
	}
	return &InviteDetail{Invite: invite, Usages: usages}, nil
}

// Usages lists who redeemed code, oldest first.
func (s *InviteService) Usages(ctx context.Context, code string) ([]model.InviteCodeUsage, error) {
	d, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return d.Usages, nil
}

func (s *InviteService) List(ctx context.Context) ([]model.InviteCode, error) {
	invites, err := s.invites.ListInvites(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/invite: listing invites: %w", err)
	}
	return invites, nil
}

func (s *InviteService) Deactivate(ctx context.Context, code string) (*model.InviteCode, error) {
	invite, err := s.invites.DeactivateInvite(ctx, model.NormalizeInviteCode(code))
	if err != nil {
		return nil, fmt.Errorf("service/invite: deactivating invite: %w", err)
	}
	s.logger.Info().Str("code", invite.Code).Msg("invite deactivated")
	return invite, nil
}

// Delete removes the invite and its usage rows. Users who redeemed it keep
// their accounts.
func (s *InviteService) Delete(ctx context.Context, code string) error {
	code = model.NormalizeInviteCode(code)
	if err := s.invites.DeleteInvite(ctx, code); err != nil {
		return fmt.Errorf("service/invite: deleting invite: %w", err)
	}
	s.logger.Info().Str("code", code).Msg("invite deleted")
	return nil
}

// checkInvite looks up an already normalized code and applies the validity
// predicate at now.
func checkInvite(ctx context.Context, invites repository.InviteRepository, code string, now time.Time) (*model.InviteCode, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("invite_code", "This field is required.")
	}
	invite, err := invites.GetInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Invalid invite code", Field: "invite_code"}
		}
		return nil, fmt.Errorf("service/invite: loading invite: %w", err)
	}
	if !invite.IsValidAt(now) {
		return nil, apperror.ValidationFailed("invite_code", "This invite code is no longer valid")
	}
	return invite, nil
}

var codeAlphabetSize = big.NewInt(int64(len(model.InviteCodeAlphabet)))

// randomCode draws InviteCodeLength characters uniformly from the alphabet.
func randomCode() (string, error) {
	b := make([]byte, model.InviteCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, codeAlphabetSize)
		if err != nil {
			return "", err
		}
		b[i] = model.InviteCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
