// Package auth issues and verifies bearer tokens, hashes passwords and
// enforces the access policy on incoming requests.
//
// TOKEN PAIRS:
// A successful login returns two HS256-signed JWTs:
//
//	access  - short lived, sent as "Authorization: Bearer <token>" on every call
//	refresh - long lived, only accepted by POST /api/auth/token/refresh/
//
// Both carry the user ID in "sub" and their kind in "token_type". A refresh
// token presented as an access token (or the other way round) is rejected.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

const (
	defaultIssuer     = "tubescribe"
	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
)

var (
	// ErrTokenExpired is returned by Validate for a well-formed but expired token.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrInvalidToken covers every other validation failure.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// TokenConfig configures a TokenService. Zero TTLs and an empty issuer fall
// back to the defaults.
type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService signs and verifies JWTs with a shared HMAC secret.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService validates cfg and returns a TokenService.
// The secret should be at least 32 bytes of random data in production:
//
//	TUBESCRIBE_AUTH_JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	s := &TokenService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
	if s.issuer == "" {
		s.issuer = defaultIssuer
	}
	if s.accessTTL <= 0 {
		s.accessTTL = defaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = defaultRefreshTTL
	}
	return s, nil
}

type claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
}

// TokenPair is what a login hands back to the client.
type TokenPair struct {
	Access  string
	Refresh string
}

// IssuePair signs a fresh access and refresh token for userID.
func (s *TokenService) IssuePair(userID string) (TokenPair, error) {
	access, err := s.Issue(userID, AccessToken)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.Issue(userID, RefreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Issue signs a token of the given type using the configured lifetime.
func (s *TokenService) Issue(userID string, typ TokenType) (string, error) {
	ttl := s.accessTTL
	if typ == RefreshToken {
		ttl = s.refreshTTL
	}
	return s.IssueWithTTL(userID, typ, ttl)
}

// IssueWithTTL signs a token with an explicit lifetime. A negative ttl
// yields an already expired token, which tests rely on.
func (s *TokenService) IssueWithTTL(userID string, typ TokenType, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a subject")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.issuer,
		},
		TokenType: typ,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing %s token: %w", typ, err)
	}
	return signed, nil
}

// Validate verifies signature, issuer, expiry and token type, and returns
// the user ID from the subject claim.
//
// Only HS256 is accepted. Without WithValidMethods a token declaring
// "alg":"none" could be accepted by a careless key function.
func (s *TokenService) Validate(tokenStr string, want TokenType) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: unreadable claims", ErrInvalidToken)
	}
	if c.TokenType != want {
		return "", fmt.Errorf("%w: got %q token, want %q", ErrInvalidToken, c.TokenType, want)
	}
	if c.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	return c.Subject, nil
}
