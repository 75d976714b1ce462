package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tubescribe/internal/auth"
	"github.com/sakif/tubescribe/internal/generator"
	"github.com/sakif/tubescribe/internal/handler"
	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/repository/sqlstore"
	"github.com/sakif/tubescribe/internal/service"
)

const testPassword = "correct-horse-battery"

// stubPipeline stands in for YouTube and the article writer.
type stubPipeline struct {
	writes int
	err    error
}

func (s *stubPipeline) Resolve(_ context.Context, url string) (generator.Video, error) {
	if s.err != nil {
		return generator.Video{}, s.err
	}
	return generator.Video{ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up"}, nil
}

func (s *stubPipeline) Transcript(_ context.Context, videoID string) (string, error) {
	return "we're no strangers to love", nil
}

func (s *stubPipeline) Write(_ context.Context, title, transcript string) (generator.Article, error) {
	s.writes++
	return generator.Article{Title: "On Commitment", Content: "# Body"}, nil
}

// testEnv is a fully wired set of handlers over an in-memory database.
type testEnv struct {
	store    *sqlstore.Store
	accounts *service.AccountService
	invites  *service.InviteService
	pipeline *stubPipeline

	auth       *handler.AuthHandler
	blog       *handler.BlogHandler
	management *handler.ManagementHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	store, err := sqlstore.Open(context.Background(), sqlstore.Config{Driver: sqlstore.DriverSQLite, Path: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     "handler-test-secret-0123456789",
		Issuer:     "tubescribe-test",
		AccessTTL:  5 * time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)

	accounts := service.NewAccountService(store, store, tokens, auth.NewPasswordServiceForTest(4), service.AccountConfig{}, logger)
	invites := service.NewInviteService(store, logger)
	pipeline := &stubPipeline{}

	return &testEnv{
		store:      store,
		accounts:   accounts,
		invites:    invites,
		pipeline:   pipeline,
		auth:       handler.NewAuthHandler(accounts, logger),
		blog:       handler.NewBlogHandler(service.NewBlogService(store, pipeline, pipeline, pipeline, logger), logger),
		management: handler.NewManagementHandler(
			service.NewUserAdminService(store, store, accounts, logger),
			invites,
			service.NewBanService(store, store, logger),
			service.NewStatsService(store),
			logger,
		),
	}
}

func (e *testEnv) createUser(t *testing.T, email string, superuser bool) *model.User {
	t.Helper()
	in := service.NewUser{Email: email, Password: testPassword, FirstName: "Grace", LastName: "Hopper"}
	create := e.accounts.CreateUser
	if superuser {
		create = e.accounts.CreateSuperuser
	}
	acct, err := create(context.Background(), in)
	require.NoError(t, err)
	return acct.User
}

func (e *testEnv) createInvite(t *testing.T, creator *model.User) string {
	t.Helper()
	invite, err := e.invites.Create(context.Background(), creator, service.NewInvite{})
	require.NoError(t, err)
	return invite.Code
}

// serve routes a single request through a chi router registered with
// pattern, so URL parameters resolve the way they do in production. A
// non-nil user is attached as the authenticated caller.
func serve(t *testing.T, h http.HandlerFunc, method, pattern, path string, body any, user *model.User) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	r := chi.NewRouter()
	r.MethodFunc(method, pattern, func(w http.ResponseWriter, req *http.Request) {
		if user != nil {
			req = req.WithContext(auth.WithUser(req.Context(), user))
		}
		h(w, req)
	})

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

var errUpstream = errors.New("upstream unavailable")
