package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/generator"
	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/repository"
)

// Generation outcomes reported to a GenerationObserver.
const (
	outcomeCached    = "cached"
	outcomeGenerated = "generated"
	outcomeFailed    = "failed"
)

// GenerationObserver counts generation requests by outcome.
type GenerationObserver interface {
	ObserveGeneration(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveGeneration(string) {}

// GenerateRequest is the input to BlogService.Generate.
type GenerateRequest struct {
	URL   string
	Regen bool
}

// BlogService turns videos into stored articles.
type BlogService struct {
	posts    repository.BlogRepository
	videos   generator.VideoResolver
	captions generator.TranscriptFetcher
	writer   generator.ArticleWriter
	observer GenerationObserver
	logger   zerolog.Logger
}

func NewBlogService(
	posts repository.BlogRepository,
	videos generator.VideoResolver,
	captions generator.TranscriptFetcher,
	writer generator.ArticleWriter,
	logger zerolog.Logger,
) *BlogService {
	return &BlogService{
		posts:    posts,
		videos:   videos,
		captions: captions,
		writer:   writer,
		observer: nopObserver{},
		logger:   logger.With().Str("service", "blog").Logger(),
	}
}

// WithObserver sets the metrics sink and returns s.
func (s *BlogService) WithObserver(o GenerationObserver) *BlogService {
	if o != nil {
		s.observer = o
	}
	return s
}

// Generate returns the user's article for req.URL.
//
// An existing article is returned untouched unless Regen is set, without
// any external call. Otherwise the video is resolved, its transcript
// fetched and an article written, strictly in that order; a failure in
// any of the three is a generation error and nothing is stored. The
// result is upserted on (user, URL), so a regeneration keeps the post's
// ID and creation time.
func (s *BlogService) Generate(ctx context.Context, u *model.User, req GenerateRequest) (*model.BlogPost, error) {
	rawURL := strings.TrimSpace(req.URL)
	if err := validateVideoURL(rawURL); err != nil {
		return nil, err
	}

	existing, err := s.posts.GetBlogPostByURL(ctx, u.ID, rawURL)
	switch {
	case err == nil && !req.Regen:
		s.observer.ObserveGeneration(outcomeCached)
		return existing, nil
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, apperror.Internal(fmt.Errorf("service/blog: looking up post: %w", err))
	}

	log := s.logger.With().Str("user_id", u.ID).Str("url", rawURL).Logger()

	video, err := s.videos.Resolve(ctx, rawURL)
	if err != nil {
		return nil, s.generationFailed(log, "resolving video", err)
	}
	transcript, err := s.captions.Transcript(ctx, video.ID)
	if err != nil {
		return nil, s.generationFailed(log, "fetching transcript", err)
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, s.generationFailed(log, "fetching transcript", generator.ErrEmptyTranscript)
	}
	article, err := s.writer.Write(ctx, video.Title, transcript)
	if err != nil {
		return nil, s.generationFailed(log, "writing article", err)
	}

	post, err := s.posts.UpsertBlogPost(ctx, &model.BlogPost{
		UserID:       u.ID,
		YouTubeURL:   rawURL,
		YouTubeTitle: video.Title,
		BlogTitle:    article.Title,
		Content:      article.Content,
		AuthorName:   u.DisplayName(),
	})
	if err != nil {
		s.observer.ObserveGeneration(outcomeFailed)
		return nil, apperror.Internal(fmt.Errorf("service/blog: saving post: %w", err))
	}

	s.observer.ObserveGeneration(outcomeGenerated)
	log.Info().
		Str("post_id", post.ID).
		Str("video_id", video.ID).
		Bool("regen", existing != nil).
		Msg("blog post generated")
	return post, nil
}

func (s *BlogService) generationFailed(log zerolog.Logger, step string, err error) error {
	s.observer.ObserveGeneration(outcomeFailed)
	log.Error().Err(err).Str("step", step).Msg("blog generation failed")
	return apperror.GenerationFailed(fmt.Errorf("%s: %w", step, err))
}

// List returns the user's posts, newest first.
func (s *BlogService) List(ctx context.Context, u *model.User) ([]model.BlogPost, error) {
	posts, err := s.posts.ListBlogPostsByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("service/blog: listing posts: %w", err)
	}
	return posts, nil
}

// Get returns one post. Another user's post is forbidden, not hidden.
func (s *BlogService) Get(ctx context.Context, u *model.User, id string) (*model.BlogPost, error) {
	post, err := s.posts.GetBlogPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/blog: loading post: %w", err)
	}
	if post.UserID != u.ID {
		return nil, apperror.Forbidden("You do not have permission to perform this action.")
	}
	return post, nil
}

func (s *BlogService) Delete(ctx context.Context, u *model.User, id string) error {
	if _, err := s.Get(ctx, u, id); err != nil {
		return err
	}
	if err := s.posts.DeleteBlogPost(ctx, id); err != nil {
		return fmt.Errorf("service/blog: deleting post: %w", err)
	}
	s.logger.Info().Str("user_id", u.ID).Str("post_id", id).Msg("blog post deleted")
	return nil
}

// validateVideoURL requires an absolute http(s) URL with a host.
func validateVideoURL(raw string) error {
	if raw == "" {
		return apperror.ValidationFailed("url", "This field is required.")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.ValidationFailed("url", "Enter a valid URL.")
	}
	return nil
}

// ParseRegen reads the regen field permissively. JSON true, the number 1
// and the strings "true", "t", "yes", "y" and "1" in any case mean true.
// Anything else, including a missing or null field, means false.
func ParseRegen(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "yes", "y", "1":
			return true
		}
	}
	return false
}
