// Package generator defines the external collaborators the blog pipeline
// calls, in the order it calls them:
//
//	VideoResolver     - URL -> video ID and title
//	TranscriptFetcher - video ID -> transcript text
//	ArticleWriter     - title + transcript -> article
//
// Concrete implementations live in the youtube and openai sub-packages.
// The service depends only on these interfaces so tests can count calls.
package generator

import (
	"context"
	"strings"
)

// Video is what the pipeline needs to know about a source video.
type Video struct {
	ID    string
	Title string
}

// Article is a generated blog post before it is persisted.
type Article struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type VideoResolver interface {
	Resolve(ctx context.Context, url string) (Video, error)
}

// TranscriptFetcher returns the full transcript as a single string. A video
// without captions is reported as ErrTranscriptUnavailable and an empty
// transcript as ErrEmptyTranscript.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

type ArticleWriter interface {
	Write(ctx context.Context, videoTitle, transcript string) (Article, error)
}

// JoinSegments joins caption segments in order with single spaces.
// Segments that are blank after trimming are skipped.
func JoinSegments(segments []string) string {
	var b strings.Builder
	for _, s := range segments {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return b.String()
}
