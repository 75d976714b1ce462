package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/tubescribe/internal/model"
)

type statsRow struct {
	TotalUsers       int `db:"total_users"`
	ActiveUsers      int `db:"active_users"`
	TotalBlogs       int `db:"total_blogs"`
	ActiveInvites    int `db:"active_invites"`
	BlogsThisMonth   int `db:"blogs_this_month"`
	UsersThisMonth   int `db:"users_this_month"`
	InvitesTotal     int `db:"invites_total"`
	InvitesUsed      int `db:"invites_used"`
	InvitesExpired   int `db:"invites_expired"`
	InvitesAvailable int `db:"invites_available"`
}

// Stats computes every counter in one statement so the numbers describe
// the same snapshot. An invite counts as expired once its expiry is strictly
// before now; one without an expiry never does.
func (s *Store) Stats(ctx context.Context, now, monthStart time.Time) (*model.Stats, error) {
	now, monthStart = now.UTC(), monthStart.UTC()

	var r statsRow
	err := get(ctx, s.db, &r, `SELECT
		(SELECT COUNT(*) FROM users) AS total_users,
		(SELECT COUNT(*) FROM users WHERE is_active = TRUE) AS active_users,
		(SELECT COUNT(*) FROM blog_posts) AS total_blogs,
		(SELECT COUNT(*) FROM invite_codes
			WHERE is_active = TRUE AND (expires_at IS NULL OR expires_at > ?)) AS active_invites,
		(SELECT COUNT(*) FROM blog_posts WHERE created_at >= ?) AS blogs_this_month,
		(SELECT COUNT(*) FROM users WHERE date_joined >= ?) AS users_this_month,
		(SELECT COUNT(*) FROM invite_codes) AS invites_total,
		(SELECT COUNT(*) FROM invite_codes WHERE uses > 0) AS invites_used,
		(SELECT COUNT(*) FROM invite_codes
			WHERE expires_at IS NOT NULL AND expires_at < ?) AS invites_expired,
		(SELECT COUNT(*) FROM invite_codes
			WHERE is_active = TRUE AND uses < max_uses
			  AND (expires_at IS NULL OR expires_at > ?)) AS invites_available`,
		now, monthStart, monthStart, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: computing stats: %w", err)
	}

	return &model.Stats{
		TotalUsers:     r.TotalUsers,
		ActiveUsers:    r.ActiveUsers,
		TotalBlogs:     r.TotalBlogs,
		ActiveInvites:  r.ActiveInvites,
		BlogsThisMonth: r.BlogsThisMonth,
		UsersThisMonth: r.UsersThisMonth,
		InviteUsage: model.InviteUsage{
			Total:     r.InvitesTotal,
			Used:      r.InvitesUsed,
			Expired:   r.InvitesExpired,
			Available: r.InvitesAvailable,
		},
	}, nil
}
