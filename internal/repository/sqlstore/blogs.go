package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/model"
)

const blogColumns = `id, user_id, youtube_url, youtube_title, blog_title,
	content, author_name, created_at, updated_at`

// UpsertBlogPost writes p keyed by (user_id, youtube_url).
//
// ON CONFLICT DO UPDATE:
// A first generation inserts a fresh row. A regeneration hits the unique
// key and overwrites the generated fields and updated_at in place, so the
// post keeps its ID and created_at. The row is read back inside the same
// transaction and returned.
func (s *Store) UpsertBlogPost(ctx context.Context, p *model.BlogPost) (*model.BlogPost, error) {
	now := utcNow()

	var out model.BlogPost
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := exec(ctx, tx,
			`INSERT INTO blog_posts (`+blogColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, youtube_url) DO UPDATE SET
			   youtube_title = excluded.youtube_title,
			   blog_title    = excluded.blog_title,
			   content       = excluded.content,
			   author_name   = excluded.author_name,
			   updated_at    = excluded.updated_at`,
			xid.New().String(), p.UserID, p.YouTubeURL, p.YouTubeTitle, p.BlogTitle,
			p.Content, p.AuthorName, now, now,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: upserting blog post for %s: %w", p.YouTubeURL, err)
		}
		return get(ctx, tx, &out,
			`SELECT `+blogColumns+` FROM blog_posts WHERE user_id = ? AND youtube_url = ?`,
			p.UserID, p.YouTubeURL)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlogPostByURL returns the user's post for youtubeURL.
func (s *Store) GetBlogPostByURL(ctx context.Context, userID, youtubeURL string) (*model.BlogPost, error) {
	var p model.BlogPost
	err := get(ctx, s.db, &p,
		`SELECT `+blogColumns+` FROM blog_posts WHERE user_id = ? AND youtube_url = ?`,
		userID, youtubeURL)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("blog post", youtubeURL)
		}
		return nil, fmt.Errorf("sqlstore: getting blog post by url: %w", err)
	}
	return &p, nil
}

func (s *Store) GetBlogPost(ctx context.Context, id string) (*model.BlogPost, error) {
	var p model.BlogPost
	if err := get(ctx, s.db, &p, `SELECT `+blogColumns+` FROM blog_posts WHERE id = ?`, id); err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("blog post", id)
		}
		return nil, fmt.Errorf("sqlstore: getting blog post %s: %w", id, err)
	}
	return &p, nil
}

// ListBlogPostsByUser returns the user's posts, newest first.
func (s *Store) ListBlogPostsByUser(ctx context.Context, userID string) ([]model.BlogPost, error) {
	posts := []model.BlogPost{}
	err := selectAll(ctx, s.db, &posts,
		`SELECT `+blogColumns+` FROM blog_posts WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing blog posts for %s: %w", userID, err)
	}
	return posts, nil
}

func (s *Store) DeleteBlogPost(ctx context.Context, id string) error {
	res, err := exec(ctx, s.db, `DELETE FROM blog_posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting blog post %s: %w", id, err)
	}
	return requireRow(res, "blog post", id)
}
