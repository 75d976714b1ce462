package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/generator"
	"github.com/sakif/tubescribe/internal/model"
)

const videoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type blogFixture struct {
	store    *fakeStore
	resolver *fakeResolver
	fetcher  *fakeFetcher
	writer   *fakeWriter
	observer *countingObserver
	svc      *BlogService
	user     *model.User
}

func newBlogFixture(t *testing.T) *blogFixture {
	t.Helper()
	f := &blogFixture{
		store:    newFakeStore(),
		resolver: &fakeResolver{video: generator.Video{ID: "dQw4w9WgXcQ", Title: "Never Gonna"}},
		fetcher:  &fakeFetcher{transcript: "we're no strangers to love"},
		writer: &fakeWriter{articles: []generator.Article{
			{Title: "First Take", Content: "# One"},
			{Title: "Second Take", Content: "# Two"},
		}},
		observer: &countingObserver{},
	}
	f.svc = NewBlogService(f.store, f.resolver, f.fetcher, f.writer, zerolog.Nop()).WithObserver(f.observer)
	f.user = &model.User{ID: "user-1", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	return f
}

func (f *blogFixture) externalCalls() int {
	return f.resolver.calls + f.fetcher.calls + f.writer.calls
}

// =========================================================================
// GENERATE TESTS
// =========================================================================

func TestGenerate_CreatesPost(t *testing.T) {
	f := newBlogFixture(t)

	post, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: videoURL})
	require.NoError(t, err)

	assert.Equal(t, videoURL, post.YouTubeURL)
	assert.Equal(t, "Never Gonna", post.YouTubeTitle)
	assert.Equal(t, "First Take", post.BlogTitle)
	assert.Equal(t, "# One", post.Content)
	assert.Equal(t, "Ada Lovelace", post.AuthorName)
	assert.Equal(t, "Never Gonna", f.writer.gotTitle)
	assert.Equal(t, 1, f.observer.outcomes[outcomeGenerated])
}

func TestGenerate_ExistingPostWithoutRegenMakesNoExternalCalls(t *testing.T) {
	f := newBlogFixture(t)
	first, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: videoURL})
	require.NoError(t, err)
	callsAfterFirst := f.externalCalls()

	again, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: videoURL})
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, f.externalCalls())
	assert.Equal(t, first, again)
	assert.Equal(t, 1, f.observer.outcomes[outcomeCached])
}

func TestGenerate_RegenOverwritesInPlace(t *testing.T) {
	f := newBlogFixture(t)
	first, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: videoURL})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	second, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: videoURL, Regen: true})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, "Second Take", second.BlogTitle)
	assert.Equal(t, "# Two", second.Content)
	assert.Equal(t, 1, f.store.postCount())
}

func TestGenerate_AuthorFallsBackToEmail(t *testing.T) {
	f := newBlogFixture(t)
	f.user.FirstName, f.user.LastName = " ", ""

	post, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: videoURL})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", post.AuthorName)
}

func TestGenerate_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a url", "ftp://example.com/video", "https://", "/watch?v=x"} {
		t.Run(raw, func(t *testing.T) {
			f := newBlogFixture(t)

			_, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: raw})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))
			assert.Equal(t, "url", fieldOf(t, err))
			assert.Equal(t, 0, f.externalCalls())
		})
	}
}

func TestGenerate_PipelineFailuresPersistNothing(t *testing.T) {
	boom := errors.New("upstream exploded")

	tests := []struct {
		name  string
		setup func(*blogFixture)
		calls [3]int // resolver, fetcher, writer
	}{
		{"video lookup fails", func(f *blogFixture) { f.resolver.err = boom }, [3]int{1, 0, 0}},
		{"transcript fetch fails", func(f *blogFixture) { f.fetcher.err = generator.ErrEmptyTranscript }, [3]int{1, 1, 0}},
		{"video has no captions", func(f *blogFixture) { f.fetcher.err = generator.ErrTranscriptUnavailable }, [3]int{1, 1, 0}},
		{"transcript is blank", func(f *blogFixture) { f.fetcher.transcript = "   " }, [3]int{1, 1, 0}},
		{"article is malformed", func(f *blogFixture) { f.writer.err = generator.ErrMalformedArticle }, [3]int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBlogFixture(t)
			tt.setup(f)

			_, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: videoURL})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrGeneration))
			assert.Equal(t, "Error generating blog post", err.(*apperror.AppError).Message)
			assert.Equal(t, tt.calls, [3]int{f.resolver.calls, f.fetcher.calls, f.writer.calls})

			_, err = f.store.GetBlogPostByURL(context.Background(), f.user.ID, videoURL)
			assert.True(t, errors.Is(err, apperror.ErrNotFound))
			assert.Equal(t, 1, f.observer.outcomes[outcomeFailed])
		})
	}
}

func TestGenerate_StoreFailureIsInternal(t *testing.T) {
	f := newBlogFixture(t)
	f.store.upsertPostErr = errors.New("disk full")

	_, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: videoURL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrInternal))
}

// =========================================================================
// OWNERSHIP TESTS
// =========================================================================

func TestBlogOwnership(t *testing.T) {
	f := newBlogFixture(t)
	post, err := f.svc.Generate(context.Background(), f.user, GenerateRequest{URL: videoURL})
	require.NoError(t, err)

	stranger := &model.User{ID: "user-2", Email: "eve@example.com"}

	_, err = f.svc.Get(context.Background(), stranger, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	err = f.svc.Delete(context.Background(), stranger, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	assert.Equal(t, 1, f.store.postCount())

	posts, err := f.svc.List(context.Background(), stranger)
	require.NoError(t, err)
	assert.Empty(t, posts)

	got, err := f.svc.Get(context.Background(), f.user, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	require.NoError(t, f.svc.Delete(context.Background(), f.user, post.ID))
	_, err = f.svc.Get(context.Background(), f.user, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// =========================================================================
// REGEN PARSING TESTS
// =========================================================================

func TestParseRegen(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{``, false},
		{`null`, false},
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{`2`, false},
		{`"true"`, true},
		{`" TRUE "`, true},
		{`"T"`, true},
		{`"yes"`, true},
		{`"Y"`, true},
		{`"1"`, true},
		{`"false"`, false},
		{`"no"`, false},
		{`"maybe"`, false},
		{`{}`, false},
		{`[true]`, false},
		{`not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRegen(json.RawMessage(tt.raw)))
		})
	}
}

// =========================================================================
// STATS TESTS
// =========================================================================

func TestStats_UsesUTCMonthStart(t *testing.T) {
	store := newFakeStore()
	svc := NewStatsService(store)
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 2026-03-01 05:00 at UTC+10 is still February in UTC.
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 5, 0, 0, 0, loc) }

	_, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 2, 28, 19, 0, 0, 0, time.UTC), store.statsArgs[0])
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), store.statsArgs[1])
}

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2026, 12, 31, 23, 59, 59, 999, time.UTC))
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), got)
}
