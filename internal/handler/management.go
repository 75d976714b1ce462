package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/repository"
	"github.com/sakif/tubescribe/internal/service"
)

// ManagementHandler serves /api/management/. Access is decided by the
// route middleware; handlers only shape requests and responses.
type ManagementHandler struct {
	users   *service.UserAdminService
	invites *service.InviteService
	bans    *service.BanService
	stats   *service.StatsService
	logger  zerolog.Logger
}

func NewManagementHandler(
	users *service.UserAdminService,
	invites *service.InviteService,
	bans *service.BanService,
	stats *service.StatsService,
	logger zerolog.Logger,
) *ManagementHandler {
	return &ManagementHandler{
		users:   users,
		invites: invites,
		bans:    bans,
		stats:   stats,
		logger:  logger.With().Str("handler", "management").Logger(),
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// AdminUserResponse is the staff view of an account.
type AdminUserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login"`
	IsBanned    bool       `json:"is_banned"`
	BanInfo     *BanInfo   `json:"ban_info"`
}

type BanInfo struct {
	Reason    string     `json:"reason"`
	BannedAt  time.Time  `json:"banned_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func newAdminUserResponse(m service.ManagedUser) AdminUserResponse {
	out := AdminUserResponse{
		ID:          m.User.ID,
		Email:       m.User.Email,
		FirstName:   m.User.FirstName,
		LastName:    m.User.LastName,
		IsActive:    m.User.IsActive,
		IsStaff:     m.User.IsStaff,
		IsSuperuser: m.User.IsSuperuser,
		DateJoined:  m.User.DateJoined,
		LastLogin:   m.User.LastLogin,
		IsBanned:    m.IsBanned(),
	}
	if m.Ban != nil {
		out.BanInfo = &BanInfo{
			Reason:    m.Ban.Reason,
			BannedAt:  m.Ban.BannedAt,
			ExpiresAt: m.Ban.ExpiresAt,
		}
	}
	return out
}

// HandleListUsers handles GET /api/management/users/?limit=&offset=.
func (h *ManagementHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	users, err := h.users.List(r.Context(), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]AdminUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newAdminUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateUser handles POST /api/management/users/.
func (h *ManagementHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	created, err := h.users.Create(r.Context(), service.NewUser{
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

	writeJSON(w, http.StatusCreated, newAdminUserResponse(*created))
}

// HandleGetUser handles GET /api/management/users/{id}/.
func (h *ManagementHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserResponse(*user))
}

// HandleDeleteUser handles DELETE /api/management/users/{id}/.
func (h *ManagementHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Invites
// ---------------------------------------------------------------------------

// InviteResponse is an invite as staff see it. IsValid is computed at
// response time.
type InviteResponse struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	CreatedBy *string    `json:"created_by"`
	MaxUses   int        `json:"max_uses"`
	Uses      int        `json:"uses"`
	IsActive  bool       `json:"is_active"`
	IsValid   bool       `json:"is_valid"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// InviteDetailResponse adds who redeemed the code.
type InviteDetailResponse struct {
	InviteResponse
	Usages []InviteUsageResponse `json:"usages"`
}

type InviteUsageResponse struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	UsedAt time.Time `json:"used_at"`
}

func newInviteResponse(c *model.InviteCode, now time.Time) InviteResponse {
	return InviteResponse{
		ID:        c.ID,
		Code:      c.Code,
		CreatedBy: c.CreatedByEmail,
		MaxUses:   c.MaxUses,
		Uses:      c.Uses,
		IsActive:  c.IsActive,
		IsValid:   c.IsValidAt(now),
		CreatedAt: c.CreatedAt,
		ExpiresAt: c.ExpiresAt,
	}
}

// HandleListInvites handles GET /api/management/invites/.
func (h *ManagementHandler) HandleListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.invites.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := time.Now()
	out := make([]InviteResponse, 0, len(invites))
	for i := range invites {
		out = append(out, newInviteResponse(&invites[i], now))
	}
	writeJSON(w, http.StatusOK, out)
}

type createInviteRequest struct {
	MaxUses   *int       `json:"max_uses"`
	IsActive  *bool      `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// HandleCreateInvite handles POST /api/management/invites/. An empty body
// creates a single-use invite without expiry.
func (h *ManagementHandler) HandleCreateInvite(w http.ResponseWriter, r *http.Request) {
	creator, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req createInviteRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	invite, err := h.invites.Create(r.Context(), creator, service.NewInvite{
		MaxUses:   req.MaxUses,
		IsActive:  req.IsActive,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if invite.CreatedByEmail == nil {
		invite.CreatedByEmail = &creator.Email
	}

	writeJSON(w, http.StatusCreated, newInviteResponse(invite, time.Now()))
}

// HandleGetInvite handles GET /api/management/invites/{code}/.
func (h *ManagementHandler) HandleGetInvite(w http.ResponseWriter, r *http.Request) {
	detail, err := h.invites.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := InviteDetailResponse{
		InviteResponse: newInviteResponse(detail.Invite, time.Now()),
		Usages:         make([]InviteUsageResponse, 0, len(detail.Usages)),
	}
	for _, u := range detail.Usages {
		out.Usages = append(out.Usages, InviteUsageResponse{UserID: u.UserID, Email: u.Email, UsedAt: u.UsedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDeactivateInvite handles POST /api/management/invites/{code}/deactivate/.
func (h *ManagementHandler) HandleDeactivateInvite(w http.ResponseWriter, r *http.Request) {
	invite, err := h.invites.Deactivate(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newInviteResponse(invite, time.Now()))
}

// HandleDeleteInvite handles DELETE /api/management/invites/{code}/.
func (h *ManagementHandler) HandleDeleteInvite(w http.ResponseWriter, r *http.Request) {
	if err := h.invites.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Bans and stats
// ---------------------------------------------------------------------------

type BanResponse struct {
	Email     string     `json:"email"`
	Reason    string     `json:"reason"`
	BannedBy  *string    `json:"banned_by"`
	BannedAt  time.Time  `json:"banned_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type banRequest struct {
	Email     string     `json:"email"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// HandleBan handles POST /api/management/ban/.
func (h *ManagementHandler) HandleBan(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req banRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ban, err := h.bans.Ban(r.Context(), admin, service.NewBan{
		Email:     req.Email,
		Reason:    req.Reason,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, BanResponse{
		Email:     ban.UserEmail,
		Reason:    ban.Reason,
		BannedBy:  ban.BannedByEmail,
		BannedAt:  ban.BannedAt,
		ExpiresAt: ban.ExpiresAt,
	})
}

// HandleStats handles GET /api/management/stats/.
func (h *ManagementHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// listOptions reads optional limit and offset query parameters.
func listOptions(r *http.Request) (repository.ListOptions, error) {
	var opts repository.ListOptions
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("limit", "A valid non-negative integer is required.")
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("offset", "A valid non-negative integer is required.")
		}
		opts.Offset = n
	}
	return opts, nil
}
