package generator

import (
	"context"
	"fmt"
)

// LimitedWriter bounds how many Write calls run at once. A call beyond the
// limit waits for a slot or for its context to end.
type LimitedWriter struct {
	next  ArticleWriter
	slots chan struct{}
}

var _ ArticleWriter = (*LimitedWriter)(nil)

// NewLimitedWriter wraps next with n slots. n below 1 is treated as 1.
func NewLimitedWriter(next ArticleWriter, n int) *LimitedWriter {
	if n < 1 {
		n = 1
	}
	return &LimitedWriter{next: next, slots: make(chan struct{}, n)}
}

func (l *LimitedWriter) Write(ctx context.Context, videoTitle, transcript string) (Article, error) {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return Article{}, fmt.Errorf("generator: waiting for a writer slot: %w", ctx.Err())
	}
	defer func() { <-l.slots }()

	return l.next.Write(ctx, videoTitle, transcript)
}

// InFlight reports how many calls currently hold a slot.
func (l *LimitedWriter) InFlight() int {
	return len(l.slots)
}
