package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sakif/tubescribe/internal/access"
	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// UserLoader resolves a token subject to the current user record.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Middleware authenticates bearer tokens and enforces the access policy.
// The user row is reloaded on every request, so a ban or deletion applies
// to tokens that are already issued.
type Middleware struct {
	tokens *TokenService
	users  UserLoader
	policy access.Policy
	logger zerolog.Logger
}

// NewMiddleware wires a Middleware.
func NewMiddleware(tokens *TokenService, users UserLoader, policy access.Policy, logger zerolog.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		users:  users,
		policy: policy,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Require returns a chi-compatible middleware guarding op. Public operations
// pass straight through; everything else needs a valid access token for an
// active user satisfying the policy predicate.
//
//	r.With(mw.Require(access.OpViewStats)).Get("/stats/", h.HandleStats)
func (m *Middleware) Require(op access.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.policy.Requirement(op) == access.Public {
				next.ServeHTTP(w, r)
				return
			}

			user, err := m.authenticate(r)
			if err == nil {
				err = m.policy.Check(op, user)
			}
			if err != nil {
				m.logger.Debug().
					Str("operation", string(op)).
					Str("path", r.URL.Path).
					Err(err).
					Msg("request rejected")
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func (m *Middleware) authenticate(r *http.Request) (*model.User, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, apperror.Unauthenticated("Authentication credentials were not provided.")
	}

	userID, err := m.tokens.Validate(raw, AccessToken)
	if err != nil {
		return nil, apperror.Unauthenticated("Given token not valid for any token type")
	}

	user, err := m.users.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("User not found")
		}
		return nil, err
	}
	return user, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithUser stores the authenticated user in ctx. Exposed for handler tests.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user stored by Require, if any.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// writeAuthError renders rejections in the same shape as handler errors.
// It cannot call the handler package, which imports this one.
func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal_error"
	message := "An unexpected error occurred"

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrUnauthenticated):
			status, kind, message = http.StatusUnauthorized, "unauthorized", appErr.Message
		case errors.Is(err, apperror.ErrForbidden):
			status, kind, message = http.StatusForbidden, "forbidden", appErr.Message
		}
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}
