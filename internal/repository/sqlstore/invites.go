package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/model"
)

// inviteSelect joins the creator so responses can show an email instead of
// an opaque ID. The creator may have been deleted, hence the LEFT JOIN.
const inviteSelect = `SELECT i.id, i.code, i.created_by_id, u.email AS created_by_email,
	i.max_uses, i.uses, i.is_active, i.created_at, i.expires_at
	FROM invite_codes i
	LEFT JOIN users u ON u.id = i.created_by_id`

// CreateInvite inserts c. ID and CreatedAt are generated when empty, and
// MaxUses defaults to 1. A duplicate code returns apperror.ErrConflict.
func (s *Store) CreateInvite(ctx context.Context, c *model.InviteCode) error {
	if c.ID == "" {
		c.ID = xid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utcNow()
	}
	if c.MaxUses == 0 {
		c.MaxUses = 1
	}
	if c.ExpiresAt != nil {
		utc := c.ExpiresAt.UTC()
		c.ExpiresAt = &utc
	}

	_, err := exec(ctx, s.db,
		`INSERT INTO invite_codes (id, code, created_by_id, max_uses, uses, is_active, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Code, c.CreatedByID, c.MaxUses, c.Uses, c.IsActive, c.CreatedAt.UTC(), c.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("invite code", c.Code)
		}
		return fmt.Errorf("sqlstore: inserting invite %s: %w", c.Code, err)
	}

	stored, err := s.GetInviteByCode(ctx, c.Code)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// GetInviteByCode expects an already normalized code.
func (s *Store) GetInviteByCode(ctx context.Context, code string) (*model.InviteCode, error) {
	return getInvite(ctx, s.db, code)
}

func getInvite(ctx context.Context, q sqlx.ExtContext, code string) (*model.InviteCode, error) {
	var c model.InviteCode
	if err := get(ctx, q, &c, inviteSelect+` WHERE i.code = ?`, code); err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("invite code", code)
		}
		return nil, fmt.Errorf("sqlstore: getting invite %s: %w", code, err)
	}
	return &c, nil
}

// InviteCodeExists is used by code generation to avoid collisions.
func (s *Store) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	if err := get(ctx, s.db, &n, `SELECT COUNT(*) FROM invite_codes WHERE code = ?`, code); err != nil {
		return false, fmt.Errorf("sqlstore: checking invite %s: %w", code, err)
	}
	return n > 0, nil
}

// ListInvites returns every invite, newest first.
func (s *Store) ListInvites(ctx context.Context) ([]model.InviteCode, error) {
	invites := []model.InviteCode{}
	if err := selectAll(ctx, s.db, &invites, inviteSelect+` ORDER BY i.created_at DESC, i.id DESC`); err != nil {
		return nil, fmt.Errorf("sqlstore: listing invites: %w", err)
	}
	return invites, nil
}

// ListInviteUsages returns who redeemed the invite, oldest first.
func (s *Store) ListInviteUsages(ctx context.Context, inviteID string) ([]model.InviteCodeUsage, error) {
	usages := []model.InviteCodeUsage{}
	err := selectAll(ctx, s.db, &usages,
		`SELECT g.id, g.invite_code_id, g.user_id, u.email, g.used_at
		 FROM invite_code_usages g
		 JOIN users u ON u.id = g.user_id
		 WHERE g.invite_code_id = ?
		 ORDER BY g.used_at, g.id`,
		inviteID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing usages for invite %s: %w", inviteID, err)
	}
	return usages, nil
}

// DeactivateInvite clears is_active and returns the updated invite.
func (s *Store) DeactivateInvite(ctx context.Context, code string) (*model.InviteCode, error) {
	res, err := exec(ctx, s.db, `UPDATE invite_codes SET is_active = FALSE WHERE code = ?`, code)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: deactivating invite %s: %w", code, err)
	}
	if err := requireRow(res, "invite code", code); err != nil {
		return nil, err
	}
	return s.GetInviteByCode(ctx, code)
}

// DeleteInvite removes the invite and, by cascade, its usage records.
// Users who registered with it are kept.
func (s *Store) DeleteInvite(ctx context.Context, code string) error {
	res, err := exec(ctx, s.db, `DELETE FROM invite_codes WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting invite %s: %w", code, err)
	}
	return requireRow(res, "invite code", code)
}

// RedeemInvite consumes one use of code and creates u in a single
// transaction.
//
// THE CONDITIONAL INCREMENT:
// Validity is checked by the UPDATE itself rather than by a prior SELECT.
// Two concurrent redemptions of the last use both run the same UPDATE; the
// database serializes them and only one sees uses < max_uses. The loser
// affects zero rows, returns the validation error and rolls back, so it
// leaves no user, profile or usage row behind.
func (s *Store) RedeemInvite(ctx context.Context, code string, u *model.User, at time.Time) error {
	at = at.UTC()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx,
			`UPDATE invite_codes SET uses = uses + 1
			 WHERE code = ?
			   AND is_active = TRUE
			   AND uses < max_uses
			   AND (expires_at IS NULL OR expires_at >= ?)`,
			code, at,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: consuming invite %s: %w", code, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlstore: rows affected: %w", err)
		}
		if n == 0 {
			return apperror.ValidationFailed("invite_code", "This invite code is no longer valid")
		}

		var inviteID string
		if err := get(ctx, tx, &inviteID, `SELECT id FROM invite_codes WHERE code = ?`, code); err != nil {
			return fmt.Errorf("sqlstore: reading invite %s: %w", code, err)
		}

		if u.DateJoined.IsZero() {
			u.DateJoined = at
		}
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		if err := ensureProfile(ctx, tx, u.ID); err != nil {
			return err
		}

		_, err = exec(ctx, tx,
			`INSERT INTO invite_code_usages (id, invite_code_id, user_id, used_at) VALUES (?, ?, ?, ?)`,
			xid.New().String(), inviteID, u.ID, at,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: recording usage of %s: %w", code, err)
		}
		return nil
	})
}
