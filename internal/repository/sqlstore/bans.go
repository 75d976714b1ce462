package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/model"
)

const banSelect = `SELECT b.id, b.user_id, u.email AS user_email,
	b.banned_by_id, a.email AS banned_by_email,
	b.reason, b.banned_at, b.expires_at
	FROM user_bans b
	JOIN users u ON u.id = b.user_id
	LEFT JOIN users a ON a.id = b.banned_by_id`

// UpsertBan records b against b.UserID, replacing any earlier ban, and
// deactivates the user. Both happen in one transaction.
//
// A missing user or a superuser target is rejected on field "email" before
// anything is written.
func (s *Store) UpsertBan(ctx context.Context, b *model.UserBan) (*model.UserBan, error) {
	if b.BannedAt.IsZero() {
		b.BannedAt = utcNow()
	}
	if b.ExpiresAt != nil {
		utc := b.ExpiresAt.UTC()
		b.ExpiresAt = &utc
	}

	var out model.UserBan
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		target, err := getUser(ctx, tx, "id", b.UserID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.ValidationFailed("email", "User not found")
			}
			return err
		}
		if target.IsSuperuser {
			return apperror.ValidationFailed("email", "Cannot ban superuser accounts")
		}

		_, err = exec(ctx, tx,
			`INSERT INTO user_bans (id, user_id, banned_by_id, reason, banned_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id) DO UPDATE SET
			   banned_by_id = excluded.banned_by_id,
			   reason       = excluded.reason,
			   banned_at    = excluded.banned_at,
			   expires_at   = excluded.expires_at`,
			xid.New().String(), b.UserID, b.BannedByID, b.Reason, b.BannedAt.UTC(), b.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: upserting ban for %s: %w", b.UserID, err)
		}

		res, err := exec(ctx, tx,
			`UPDATE users SET is_active = FALSE WHERE id = ? AND is_superuser = FALSE`, b.UserID)
		if err != nil {
			return fmt.Errorf("sqlstore: deactivating %s: %w", b.UserID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("sqlstore: rows affected: %w", err)
		} else if n == 0 {
			return apperror.ValidationFailed("email", "Cannot ban superuser accounts")
		}

		if err := ensureProfile(ctx, tx, b.UserID); err != nil {
			return err
		}
		return get(ctx, tx, &out, banSelect+` WHERE b.user_id = ?`, b.UserID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBanByUserID returns apperror.ErrNotFound when the user was never banned.
func (s *Store) GetBanByUserID(ctx context.Context, userID string) (*model.UserBan, error) {
	var b model.UserBan
	if err := get(ctx, s.db, &b, banSelect+` WHERE b.user_id = ?`, userID); err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("ban", userID)
		}
		return nil, fmt.Errorf("sqlstore: getting ban for %s: %w", userID, err)
	}
	return &b, nil
}

// ListBans returns every ban, most recent first.
func (s *Store) ListBans(ctx context.Context) ([]model.UserBan, error) {
	bans := []model.UserBan{}
	if err := selectAll(ctx, s.db, &bans, banSelect+` ORDER BY b.banned_at DESC, b.id DESC`); err != nil {
		return nil, fmt.Errorf("sqlstore: listing bans: %w", err)
	}
	return bans, nil
}
