package generator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakif/tubescribe/internal/cache"
)

// CachedTranscripts memoizes a TranscriptFetcher by video ID, so a
// regeneration for the same video reuses the stored transcript.
// Cache failures are logged and fall through to the wrapped fetcher.
type CachedTranscripts struct {
	next   TranscriptFetcher
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedTranscripts wraps next.
func NewCachedTranscripts(next TranscriptFetcher, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *CachedTranscripts {
	return &CachedTranscripts{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger.With().Str("component", "transcript_cache").Logger(),
	}
}

func (c *CachedTranscripts) Transcript(ctx context.Context, videoID string) (string, error) {
	key := "transcript:" + videoID

	hit, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		return string(hit), nil
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn().Err(err).Str("video_id", videoID).Msg("cache read failed")
	}

	text, err := c.next.Transcript(ctx, videoID)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, []byte(text), c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("video_id", videoID).Msg("cache write failed")
	}
	return text, nil
}
