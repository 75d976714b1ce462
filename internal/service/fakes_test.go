package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/auth"
	"github.com/sakif/tubescribe/internal/generator"
	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory repository.Store. It keeps just enough of the
// SQL store's behaviour (unique email, conditional invite redemption,
// upsert on user+URL) for the services to be exercised without a database.
type fakeStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*model.User
	profiles map[string]*model.UserProfile
	invites  map[string]*model.InviteCode // by code
	usages   []model.InviteCodeUsage
	bans     map[string]*model.UserBan // by user id
	posts    map[string]*model.BlogPost

	// failures injected by tests
	upsertPostErr error
	statsArgs     [2]time.Time
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*model.User{},
		profiles: map[string]*model.UserProfile{},
		invites:  map[string]*model.InviteCode{},
		bans:     map[string]*model.UserBan{},
		posts:    map[string]*model.BlogPost{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%03d", prefix, f.seq)
}

func (f *fakeStore) insertUserLocked(u *model.User) error {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.ValidationFailed("email", "user with this email already exists")
		}
	}
	u.ID = f.nextID("user")
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	cp := *u
	f.users[u.ID] = &cp
	f.profiles[u.ID] = &model.UserProfile{UserID: u.ID, UITheme: model.DefaultTheme}
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertUserLocked(u)
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) ListUsers(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if opts.Limit > 0 {
		end := min(opts.Offset+opts.Limit, len(out))
		out = out[min(opts.Offset, len(out)):end]
	}
	return out, nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) RecordLogin(_ context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.LastLogin = &at
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	delete(f.profiles, id)
	delete(f.bans, id)
	for pid, p := range f.posts {
		if p.UserID == id {
			delete(f.posts, pid)
		}
	}
	return nil
}

func (f *fakeStore) GetProfile(_ context.Context, userID string) (*model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return nil, apperror.NotFound("user", userID)
	}
	p, ok := f.profiles[userID]
	if !ok {
		p = &model.UserProfile{UserID: userID, UITheme: model.DefaultTheme}
		f.profiles[userID] = p
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdateTheme(ctx context.Context, userID string, theme model.Theme) (*model.UserProfile, error) {
	if _, err := f.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[userID].UITheme = theme
	cp := *f.profiles[userID]
	return &cp, nil
}

func (f *fakeStore) CreateInvite(_ context.Context, c *model.InviteCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invites[c.Code]; ok {
		return apperror.Conflict("invite code", c.Code)
	}
	c.ID = f.nextID("invite")
	cp := *c
	f.invites[c.Code] = &cp
	return nil
}

func (f *fakeStore) GetInviteByCode(_ context.Context, code string) (*model.InviteCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.invites[code]
	if !ok {
		return nil, apperror.NotFound("invite code", code)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) InviteCodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.invites[code]
	return ok, nil
}

func (f *fakeStore) ListInvites(_ context.Context) ([]model.InviteCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.InviteCode{}
	for _, c := range f.invites {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) ListInviteUsages(_ context.Context, inviteID string) ([]model.InviteCodeUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.InviteCodeUsage{}
	for _, u := range f.usages {
		if u.InviteCodeID == inviteID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) DeactivateInvite(_ context.Context, code string) (*model.InviteCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.invites[code]
	if !ok {
		return nil, apperror.NotFound("invite code", code)
	}
	c.IsActive = false
	cp := *c
	return &cp, nil
}

func (f *fakeStore) DeleteInvite(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invites[code]; !ok {
		return apperror.NotFound("invite code", code)
	}
	delete(f.invites, code)
	return nil
}

func (f *fakeStore) RedeemInvite(_ context.Context, code string, u *model.User, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.invites[code]
	if !ok || !c.IsValidAt(at) {
		return apperror.ValidationFailed("invite_code", "This invite code is no longer valid")
	}
	if err := f.insertUserLocked(u); err != nil {
		return err
	}
	c.Uses++
	f.usages = append(f.usages, model.InviteCodeUsage{
		ID: f.nextID("usage"), InviteCodeID: c.ID, UserID: u.ID, Email: u.Email, UsedAt: at,
	})
	return nil
}

func (f *fakeStore) UpsertBan(_ context.Context, b *model.UserBan) (*model.UserBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[b.UserID]
	if !ok {
		return nil, apperror.ValidationFailed("email", "User not found")
	}
	if u.IsSuperuser {
		return nil, apperror.ValidationFailed("email", "Cannot ban superuser accounts")
	}
	if prev, ok := f.bans[b.UserID]; ok {
		b.ID = prev.ID
	} else {
		b.ID = f.nextID("ban")
	}
	b.UserEmail = u.Email
	cp := *b
	f.bans[b.UserID] = &cp
	u.IsActive = false
	return &cp, nil
}

func (f *fakeStore) GetBanByUserID(_ context.Context, userID string) (*model.UserBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bans[userID]
	if !ok {
		return nil, apperror.NotFound("ban", userID)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) ListBans(_ context.Context) ([]model.UserBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.UserBan{}
	for _, b := range f.bans {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeStore) UpsertBlogPost(_ context.Context, p *model.BlogPost) (*model.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertPostErr != nil {
		return nil, f.upsertPostErr
	}
	now := time.Now().UTC()
	for _, existing := range f.posts {
		if existing.UserID == p.UserID && existing.YouTubeURL == p.YouTubeURL {
			existing.YouTubeTitle = p.YouTubeTitle
			existing.BlogTitle = p.BlogTitle
			existing.Content = p.Content
			existing.AuthorName = p.AuthorName
			existing.UpdatedAt = now
			cp := *existing
			return &cp, nil
		}
	}
	cp := *p
	cp.ID = f.nextID("post")
	cp.CreatedAt, cp.UpdatedAt = now, now
	f.posts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) GetBlogPostByURL(_ context.Context, userID, youtubeURL string) (*model.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.UserID == userID && p.YouTubeURL == youtubeURL {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("blog post", youtubeURL)
}

func (f *fakeStore) GetBlogPost(_ context.Context, id string) (*model.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("blog post", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListBlogPostsByUser(_ context.Context, userID string) ([]model.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.BlogPost{}
	for _, p := range f.posts {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteBlogPost(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("blog post", id)
	}
	delete(f.posts, id)
	return nil
}

func (f *fakeStore) Stats(_ context.Context, now, monthStart time.Time) (*model.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsArgs = [2]time.Time{now, monthStart}
	return &model.Stats{TotalUsers: len(f.users)}, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func (f *fakeStore) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeStore) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

// =========================================================================
// FAKE GENERATOR COLLABORATORS
// =========================================================================

type fakeResolver struct {
	calls int
	video generator.Video
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (generator.Video, error) {
	f.calls++
	return f.video, f.err
}

type fakeFetcher struct {
	calls      int
	transcript string
	err        error
}

func (f *fakeFetcher) Transcript(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.transcript, f.err
}

type fakeWriter struct {
	calls    int
	articles []generator.Article // returned in turn; the last one repeats
	err      error
	gotTitle string
}

func (f *fakeWriter) Write(_ context.Context, videoTitle, _ string) (generator.Article, error) {
	f.calls++
	f.gotTitle = videoTitle
	if f.err != nil {
		return generator.Article{}, f.err
	}
	i := min(f.calls-1, len(f.articles)-1)
	return f.articles[i], nil
}

type countingObserver struct {
	outcomes map[string]int
}

func (o *countingObserver) ObserveGeneration(outcome string) {
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

// =========================================================================
// HELPERS
// =========================================================================

const testPassword = "correct-horse-battery"

func newTestAccounts(t *testing.T, store *fakeStore, cfg AccountConfig) *AccountService {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret-at-least-16-chars!!"})
	require.NoError(t, err)
	// Cost 4 is the bcrypt minimum and keeps the tests fast.
	return NewAccountService(store, store, tokens, auth.NewPasswordServiceForTest(4), cfg, zerolog.Nop())
}

func mustCreateUser(t *testing.T, svc *AccountService, email string) *model.User {
	t.Helper()
	acct, err := svc.CreateUser(context.Background(), NewUser{
		Email: email, Password: testPassword, FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)
	return acct.User
}

func seedInvite(t *testing.T, store *fakeStore, code string, maxUses int) *model.InviteCode {
	t.Helper()
	c := &model.InviteCode{Code: code, MaxUses: maxUses, IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateInvite(context.Background(), c))
	return c
}

func boolPtr(b bool) *bool { return &b }
