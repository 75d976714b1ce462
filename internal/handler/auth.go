package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/auth"
	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/service"
)

// AuthHandler serves /api/auth/: registration, tokens and the caller's own
// account.
type AuthHandler struct {
	accounts *service.AccountService
	logger   zerolog.Logger
}

func NewAuthHandler(accounts *service.AccountService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   logger.With().Str("handler", "auth").Logger(),
	}
}

// UserResponse is how an account is shown to its owner.
type UserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	UITheme   model.Theme `json:"ui_theme"`
	Roles     Roles       `json:"roles"`
}

type Roles struct {
	IsSuperuser bool `json:"is_superuser"`
	IsStaff     bool `json:"is_staff"`
	IsActive    bool `json:"is_active"`
}

// TokenResponse is the body of a successful login.
type TokenResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    UserResponse `json:"user"`
}

func newUserResponse(a *service.Account) UserResponse {
	theme := model.DefaultTheme
	if a.Profile != nil {
		theme = a.Profile.UITheme
	}
	return UserResponse{
		ID:        a.User.ID,
		Email:     a.User.Email,
		FirstName: a.User.FirstName,
		LastName:  a.User.LastName,
		UITheme:   theme,
		Roles: Roles{
			IsSuperuser: a.User.IsSuperuser,
			IsStaff:     a.User.IsStaff,
			IsActive:    a.User.IsActive,
		},
	}
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	InviteCode string `json:"invite_code"`
}

// HandleRegister handles POST /api/auth/register/.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	account, err := h.accounts.Register(r.Context(), service.NewUser{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(account))
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleToken handles POST /api/auth/token/.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Access:  result.Access,
		Refresh: result.Refresh,
		User:    newUserResponse(&result.Account),
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// HandleRefresh handles POST /api/auth/token/refresh/.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Refresh == "" {
		writeError(w, h.logger, apperror.ValidationFailed("refresh", "This field is required."))
		return
	}

	access, err := h.accounts.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// HandleMe handles GET /api/auth/me/.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	account, err := h.accounts.Me(r.Context(), user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(account))
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// HandleChangePassword handles POST /api/auth/password/change/.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), user, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

type themeRequest struct {
	UITheme string `json:"ui_theme"`
}

// HandleUpdateTheme handles POST /api/auth/theme/.
func (h *AuthHandler) HandleUpdateTheme(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req themeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	profile, err := h.accounts.UpdateTheme(r.Context(), user, req.UITheme)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]model.Theme{"ui_theme": profile.UITheme})
}

// HandleDeleteAccount handles DELETE /api/auth/delete-account/.
func (h *AuthHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), user); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// currentUser returns the user the auth middleware attached. Routes that
// reach a handler without one are misconfigured, so the client gets a 401
// rather than a panic.
func currentUser(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, logger, apperror.Unauthenticated("Authentication credentials were not provided."))
		return nil, false
	}
	return user, true
}
