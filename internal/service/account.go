// Package service holds the business rules. Services are wired with
// repository interfaces and collaborators in main and know nothing about
// HTTP; they report failures as *apperror.AppError values.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/auth"
	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/repository"
)

const invalidCredentials = "No active account found with the given credentials"

// Account is a user together with its profile.
type Account struct {
	User    *model.User
	Profile *model.UserProfile
}

// NewUser is the input for creating an account. A nil flag takes the
// default: active, not staff, not superuser.
type NewUser struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	IsActive    *bool
	IsStaff     *bool
	IsSuperuser *bool
	// InviteCode, when set, is redeemed in the same transaction that
	// creates the user.
	InviteCode string
}

// TokenResult is returned by Authenticate.
type TokenResult struct {
	Access  string
	Refresh string
	Account Account
}

// AccountConfig tunes AccountService.
type AccountConfig struct {
	// InviteRequired makes Register reject requests without an invite code.
	InviteRequired bool
}

// AccountService owns registration, credentials and profile preferences.
type AccountService struct {
	users     repository.UserRepository
	invites   repository.InviteRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	cfg       AccountConfig
	now       func() time.Time
	logger    zerolog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	invites repository.InviteRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	cfg AccountConfig,
	logger zerolog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		invites:   invites,
		tokens:    tokens,
		passwords: passwords,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With().Str("service", "account").Logger(),
	}
}

// NormalizeEmail trims the address and lowercases it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a regular account from the public sign-up form.
func (s *AccountService) Register(ctx context.Context, in NewUser) (*Account, error) {
	in.IsActive, in.IsStaff, in.IsSuperuser = nil, nil, nil
	if s.cfg.InviteRequired && strings.TrimSpace(in.InviteCode) == "" {
		return nil, apperror.ValidationFailed("invite_code", "This field is required.")
	}
	return s.create(ctx, in, false)
}

// CreateUser creates an account with the given flags.
func (s *AccountService) CreateUser(ctx context.Context, in NewUser) (*Account, error) {
	return s.create(ctx, in, false)
}

// CreateSuperuser forces the staff, superuser and active flags on. Passing
// any of them explicitly as false is a validation error.
func (s *AccountService) CreateSuperuser(ctx context.Context, in NewUser) (*Account, error) {
	for _, f := range []struct {
		name string
		val  *bool
	}{
		{"is_staff", in.IsStaff},
		{"is_superuser", in.IsSuperuser},
		{"is_active", in.IsActive},
	} {
		if f.val != nil && !*f.val {
			return nil, apperror.ValidationFailed(f.name, fmt.Sprintf("Superuser must have %s=True.", f.name))
		}
	}
	yes := true
	in.IsStaff, in.IsSuperuser, in.IsActive = &yes, &yes, &yes
	return s.create(ctx, in, true)
}

func (s *AccountService) create(ctx context.Context, in NewUser, superuser bool) (*Account, error) {
	u, err := s.buildUser(in)
	if err != nil {
		return nil, err
	}

	code := model.NormalizeInviteCode(in.InviteCode)
	if code != "" {
		now := s.now()
		if _, err := checkInvite(ctx, s.invites, code, now); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, apperror.ValidationFailed("invite_code", "Invalid invite code")
			}
			return nil, err
		}
		if err := s.invites.RedeemInvite(ctx, code, u, now); err != nil {
			return nil, fmt.Errorf("service/account: redeeming invite %s: %w", code, err)
		}
	} else if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("service/account: creating user: %w", err)
	}

	s.logger.Info().
		Str("user_id", u.ID).
		Bool("superuser", superuser).
		Bool("invited", code != "").
		Msg("user created")

	return &Account{User: u, Profile: &model.UserProfile{UserID: u.ID, UITheme: model.DefaultTheme}}, nil
}

// buildUser validates in and hashes the password. Fields are checked in
// form order so the first problem a user would see is reported.
func (s *AccountService) buildUser(in NewUser) (*model.User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "This field is required.")
	}
	if !validEmail(email) {
		return nil, apperror.ValidationFailed("email", "Enter a valid email address.")
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first == "" {
		return nil, apperror.ValidationFailed("first_name", "This field is required.")
	}
	if last == "" {
		return nil, apperror.ValidationFailed("last_name", "This field is required.")
	}
	if in.Password == "" {
		return nil, apperror.ValidationFailed("password", "This field is required.")
	}
	if err := checkPassword(in.Password, email, first, last); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/account: hashing password: %w", err)
	}

	return &model.User{
		Email:        email,
		FirstName:    first,
		LastName:     last,
		PasswordHash: hash,
		IsActive:     flag(in.IsActive, true),
		IsStaff:      flag(in.IsStaff, false),
		IsSuperuser:  flag(in.IsSuperuser, false),
	}, nil
}

// Authenticate exchanges credentials for a token pair. Every failure looks
// the same to the caller.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*TokenResult, error) {
	u, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated(invalidCredentials)
		}
		return nil, fmt.Errorf("service/account: loading user: %w", err)
	}

	if err := s.passwords.Verify(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthenticated(invalidCredentials)
		}
		return nil, fmt.Errorf("service/account: verifying password: %w", err)
	}
	if !u.IsActive {
		return nil, apperror.Unauthenticated(invalidCredentials)
	}

	pair, err := s.tokens.IssuePair(u.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: issuing tokens: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.RecordLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("service/account: recording login: %w", err)
	}
	u.LastLogin = &now

	profile, err := s.users.GetProfile(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading profile: %w", err)
	}

	s.logger.Info().Str("user_id", u.ID).Msg("tokens issued")
	return &TokenResult{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		Account: Account{User: u, Profile: profile},
	}, nil
}

// Refresh issues a new access token for a valid refresh token whose user
// still exists and is active.
func (s *AccountService) Refresh(ctx context.Context, refresh string) (string, error) {
	userID, err := s.tokens.Validate(refresh, auth.RefreshToken)
	if err != nil {
		return "", apperror.Unauthenticated("Token is invalid or expired")
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Unauthenticated(invalidCredentials)
		}
		return "", fmt.Errorf("service/account: loading user: %w", err)
	}
	if !u.IsActive {
		return "", apperror.Unauthenticated(invalidCredentials)
	}

	access, err := s.tokens.Issue(u.ID, auth.AccessToken)
	if err != nil {
		return "", fmt.Errorf("service/account: issuing access token: %w", err)
	}
	return access, nil
}

// Me returns u with its profile, repairing a missing profile on the way.
func (s *AccountService) Me(ctx context.Context, u *model.User) (*Account, error) {
	profile, err := s.users.GetProfile(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading profile: %w", err)
	}
	return &Account{User: u, Profile: profile}, nil
}

// ChangePassword verifies old before storing new. A wrong old password
// changes nothing.
func (s *AccountService) ChangePassword(ctx context.Context, u *model.User, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return apperror.ValidationFailed("old_password", "This field is required.")
	}
	if newPassword == "" {
		return apperror.ValidationFailed("new_password", "This field is required.")
	}

	if err := s.passwords.Verify(u.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.IncorrectPassword("Incorrect old password")
		}
		return fmt.Errorf("service/account: verifying password: %w", err)
	}

	if err := checkPassword(newPassword, u.Email, u.FirstName, u.LastName); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			appErr.Field = "new_password"
		}
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/account: hashing password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("service/account: updating password: %w", err)
	}
	u.PasswordHash = hash

	s.logger.Info().Str("user_id", u.ID).Msg("password changed")
	return nil
}

// UpdateTheme stores the user's UI theme.
func (s *AccountService) UpdateTheme(ctx context.Context, u *model.User, theme string) (*model.UserProfile, error) {
	t := model.Theme(strings.TrimSpace(theme))
	if t == "" {
		return nil, apperror.ValidationFailed("ui_theme", "This field is required.")
	}
	if !t.Valid() {
		return nil, apperror.ValidationFailed("ui_theme", fmt.Sprintf("%q is not a valid choice.", theme))
	}

	profile, err := s.users.UpdateTheme(ctx, u.ID, t)
	if err != nil {
		return nil, fmt.Errorf("service/account: updating theme: %w", err)
	}
	return profile, nil
}

// DeleteAccount removes u and everything it owns.
func (s *AccountService) DeleteAccount(ctx context.Context, u *model.User) error {
	if err := s.users.DeleteUser(ctx, u.ID); err != nil {
		return fmt.Errorf("service/account: deleting user %s: %w", u.ID, err)
	}
	s.logger.Info().Str("user_id", u.ID).Msg("account deleted")
	return nil
}

// passwordMessages holds the client-facing text for each strength policy
// violation.
var passwordMessages = map[error]string{
	auth.ErrPasswordTooLong:  fmt.Sprintf("This password is too long. It must contain at most %d bytes.", auth.MaxPasswordBytes),
	auth.ErrPasswordTooShort: fmt.Sprintf("This password is too short. It must contain at least %d characters.", auth.MinPasswordLength),
	auth.ErrPasswordNumeric:  "This password is entirely numeric.",
	auth.ErrPasswordCommon:   "This password is too common.",
	auth.ErrPasswordSimilar:  "The password is too similar to your personal information.",
}

// checkPassword applies the strength policy. email's local part and the
// names count as personal information.
func checkPassword(password, email, first, last string) error {
	local, _, _ := strings.Cut(email, "@")
	err := auth.CheckStrength(password, local, first, last)
	if err == nil {
		return nil
	}
	for sentinel, msg := range passwordMessages {
		if errors.Is(err, sentinel) {
			return apperror.ValidationFailed("password", msg)
		}
	}
	return apperror.ValidationFailed("password", "This password is not allowed.")
}

// validEmail accepts a bare addr-spec with a dotted domain. Display-name
// forms like "Ann <ann@example.com>" are rejected.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	_, domain, ok := strings.Cut(email, "@")
	return ok && strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".")
}

func flag(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
