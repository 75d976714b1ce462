package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/repository"
)

const userColumns = `id, email, first_name, last_name, password_hash,
	is_active, is_staff, is_superuser, date_joined, last_login`

// CreateUser inserts u and its default profile in one transaction.
//
// ID and DateJoined are generated here and written back into u, so the
// caller's struct is the canonical record afterwards.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		return ensureProfile(ctx, tx, u.ID)
	})
}

func insertUser(ctx context.Context, q sqlx.ExtContext, u *model.User) error {
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = utcNow()
	} else {
		u.DateJoined = u.DateJoined.UTC()
	}

	_, err := exec(ctx, q,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash,
		u.IsActive, u.IsStaff, u.IsSuperuser, u.DateJoined, u.LastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("email", "user with this email already exists")
		}
		return fmt.Errorf("sqlstore: inserting user %s: %w", u.Email, err)
	}
	return nil
}

// ensureProfile creates the default profile when the user has none. It is
// idempotent and runs on every user write path.
func ensureProfile(ctx context.Context, q sqlx.ExtContext, userID string) error {
	_, err := exec(ctx, q,
		`INSERT INTO user_profiles (user_id, ui_theme) VALUES (?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, model.DefaultTheme,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: ensuring profile for %s: %w", userID, err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound when no user has that ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return getUser(ctx, s.db, "id", id)
}

// GetUserByEmail looks up an already normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return getUser(ctx, s.db, "email", email)
}

// getUser is shared by the lookups; column is always a literal from this file.
func getUser(ctx context.Context, q sqlx.ExtContext, column, value string) (*model.User, error) {
	var u model.User
	err := get(ctx, q, &u, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlstore: getting user by %s: %w", column, err)
	}
	return &u, nil
}

// ListUsers returns users newest first. A zero Limit returns all of them.
func (s *Store) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY date_joined DESC, id DESC`
	var args []any
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	users := []model.User{}
	if err := selectAll(ctx, s.db, &users, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: listing users: %w", err)
	}
	return users, nil
}

// UpdatePassword stores a new hash and repairs the profile if it is missing.
func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
		if err != nil {
			return fmt.Errorf("sqlstore: updating password for %s: %w", userID, err)
		}
		if err := requireRow(res, "user", userID); err != nil {
			return err
		}
		return ensureProfile(ctx, tx, userID)
	})
}

// RecordLogin sets last_login.
func (s *Store) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := exec(ctx, s.db, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("sqlstore: recording login for %s: %w", userID, err)
	}
	return requireRow(res, "user", userID)
}

// DeleteUser hard-deletes the user. Foreign keys cascade to the profile,
// posts, ban and invite usage, and null out created_by/banned_by references.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := exec(ctx, s.db, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting user %s: %w", id, err)
	}
	return requireRow(res, "user", id)
}

// GetProfile returns the user's profile, creating the default one first if
// it has gone missing.
func (s *Store) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getUser(ctx, tx, "id", userID); err != nil {
			return err
		}
		if err := ensureProfile(ctx, tx, userID); err != nil {
			return err
		}
		return get(ctx, tx, &p, `SELECT user_id, ui_theme FROM user_profiles WHERE user_id = ?`, userID)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateTheme sets the profile theme. The caller validates theme.
func (s *Store) UpdateTheme(ctx context.Context, userID string, theme model.Theme) (*model.UserProfile, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getUser(ctx, tx, "id", userID); err != nil {
			return err
		}
		if err := ensureProfile(ctx, tx, userID); err != nil {
			return err
		}
		_, err := exec(ctx, tx, `UPDATE user_profiles SET ui_theme = ? WHERE user_id = ?`, theme, userID)
		if err != nil {
			return fmt.Errorf("sqlstore: updating theme for %s: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.UserProfile{UserID: userID, UITheme: theme}, nil
}
