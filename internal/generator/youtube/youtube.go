// Package youtube resolves videos and downloads their captions with
// github.com/kkdai/youtube/v2. It implements generator.VideoResolver and
// generator.TranscriptFetcher.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	yt "github.com/kkdai/youtube/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/tubescribe/internal/generator"
)

const (
	defaultLanguage = "en"

	// maxResolved bounds the videos kept between Resolve and Transcript.
	maxResolved = 256
)

// API is the subset of *youtube.Client this package calls.
type API interface {
	GetVideoContext(ctx context.Context, url string) (*yt.Video, error)
	GetTranscriptCtx(ctx context.Context, video *yt.Video, lang string) (yt.VideoTranscript, error)
}

// Config configures New.
type Config struct {
	// Timeout bounds each HTTP request to YouTube.
	Timeout time.Duration
	// Language is the caption track to fetch, e.g. "en".
	Language string
	// API replaces the library client. Nil builds one traced with otelhttp.
	API API
}

// Client talks to YouTube. It is safe for concurrent use.
//
// Resolve keeps the video it loaded so the Transcript call that follows in
// the pipeline does not fetch the same metadata again.
type Client struct {
	api  API
	lang string

	mu       sync.Mutex
	resolved map[string]*yt.Video
}

var (
	_ generator.VideoResolver     = (*Client)(nil)
	_ generator.TranscriptFetcher = (*Client)(nil)
)

func New(cfg Config) *Client {
	lang := cfg.Language
	if lang == "" {
		lang = defaultLanguage
	}
	api := cfg.API
	if api == nil {
		api = &yt.Client{
			HTTPClient: &http.Client{
				Timeout:   cfg.Timeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
		}
	}
	return &Client{
		api:      api,
		lang:     lang,
		resolved: make(map[string]*yt.Video),
	}
}

// Resolve accepts any URL form the library understands (watch, youtu.be,
// shorts, embed) as well as a bare video ID.
func (c *Client) Resolve(ctx context.Context, url string) (generator.Video, error) {
	v, err := c.api.GetVideoContext(ctx, url)
	if err != nil {
		return generator.Video{}, fmt.Errorf("youtube: resolving %s: %w", url, err)
	}
	c.remember(v)
	return generator.Video{ID: v.ID, Title: v.Title}, nil
}

// Transcript fetches the caption track in the configured language and joins
// its segments with single spaces.
func (c *Client) Transcript(ctx context.Context, videoID string) (string, error) {
	v, ok := c.take(videoID)
	if !ok {
		var err error
		v, err = c.api.GetVideoContext(ctx, videoID)
		if err != nil {
			return "", fmt.Errorf("youtube: loading video %s: %w", videoID, err)
		}
	}

	segments, err := c.api.GetTranscriptCtx(ctx, v, c.lang)
	if err != nil {
		if errors.Is(err, yt.ErrTranscriptDisabled) {
			return "", fmt.Errorf("youtube: no %s captions for %s: %w", c.lang, videoID, generator.ErrTranscriptUnavailable)
		}
		return "", fmt.Errorf("youtube: fetching transcript for %s: %w", videoID, err)
	}

	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		texts = append(texts, s.Text)
	}

	text := generator.JoinSegments(texts)
	if text == "" {
		return "", generator.ErrEmptyTranscript
	}
	return text, nil
}

func (c *Client) remember(v *yt.Video) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Entries left behind by cached transcripts are dropped wholesale.
	if len(c.resolved) >= maxResolved {
		clear(c.resolved)
	}
	c.resolved[v.ID] = v
}

func (c *Client) take(id string) (*yt.Video, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.resolved[id]
	if ok {
		delete(c.resolved, id)
	}
	return v, ok
}
