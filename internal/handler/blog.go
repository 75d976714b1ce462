package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/service"
)

// BlogHandler serves /api/blog/.
type BlogHandler struct {
	blogs  *service.BlogService
	logger zerolog.Logger
}

func NewBlogHandler(blogs *service.BlogService, logger zerolog.Logger) *BlogHandler {
	return &BlogHandler{
		blogs:  blogs,
		logger: logger.With().Str("handler", "blog").Logger(),
	}
}

// BlogSummary is a list entry; it leaves out the article body.
type BlogSummary struct {
	ID           string    `json:"id"`
	YouTubeTitle string    `json:"youtube_title"`
	BlogTitle    string    `json:"blog_title"`
	AuthorName   string    `json:"author_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type generateRequest struct {
	URL string `json:"url"`
	// Regen is read permissively; clients send booleans, numbers and strings.
	Regen json.RawMessage `json:"regen"`
}

// HandleGenerate handles POST /api/blog/generate-from-youtube/.
func (h *BlogHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.blogs.Generate(r.Context(), user, service.GenerateRequest{
		URL:   req.URL,
		Regen: service.ParseRegen(req.Regen),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// HandleList handles GET /api/blog/my-blogs/.
func (h *BlogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	posts, err := h.blogs.List(r.Context(), user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]BlogSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, newBlogSummary(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /api/blog/my-blogs/{id}/.
func (h *BlogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	post, err := h.blogs.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// HandleDelete handles DELETE /api/blog/my-blogs/{id}/.
func (h *BlogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.blogs.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func newBlogSummary(p model.BlogPost) BlogSummary {
	return BlogSummary{
		ID:           p.ID,
		YouTubeTitle: p.YouTubeTitle,
		BlogTitle:    p.BlogTitle,
		AuthorName:   p.AuthorName,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
