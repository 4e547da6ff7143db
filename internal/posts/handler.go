package posts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/platform/httpx"
	"github.com/quillpost/quillpost/internal/shared"
)

// Handler wires HTTP endpoints for posts and reposts.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers post routes on the root router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/status", h.transition)
		r.Post("/{id}/repost", h.repost)
	})
	r.Get("/me/posts", h.listMine)
}

type postResponse struct {
	ID             int64     `json:"id"`
	AuthorID       int64     `json:"author_id"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug"`
	Content        string    `json:"content,omitempty"`
	Excerpt        string    `json:"excerpt,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Status         string    `json:"status"`
	IsRepost       bool      `json:"is_repost,omitempty"`
	OriginalPostID int64     `json:"original_post_id,omitempty"`
	RepostComment  string    `json:"repost_comment,omitempty"`
	LikesCount     int       `json:"likes_count"`
	CommentsCount  int       `json:"comments_count"`
	RepostsCount   int       `json:"reposts_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toResponse(p *Post) postResponse {
	return postResponse{
		ID:             p.ID,
		AuthorID:       p.AuthorID,
		Title:          p.Title,
		Slug:           p.Slug,
		Content:        p.Content,
		Excerpt:        p.Excerpt,
		Tags:           p.Tags,
		Status:         string(p.Status),
		IsRepost:       p.IsRepost,
		OriginalPostID: p.OriginalPostID,
		RepostComment:  p.RepostComment,
		LikesCount:     p.LikesCount,
		CommentsCount:  p.CommentsCount,
		RepostsCount:   p.RepostsCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type createPostRequest struct {
	Title   string   `json:"title" validate:"required,max=200"`
	Content string   `json:"content" validate:"required"`
	Excerpt string   `json:"excerpt" validate:"max=500"`
	Tags    []string `json:"tags" validate:"dive,max=50"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := authz.ActorFromContext(r.Context())
	post, err := h.service.Create(r.Context(), actor, CreateRequest{
		Title:   req.Title,
		Content: req.Content,
		Excerpt: req.Excerpt,
		Tags:    req.Tags,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(post))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := authz.ActorFromContext(r.Context())
	post, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(post))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, false)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, true)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, mine bool) {
	actor := authz.ActorFromContext(r.Context())
	page, perPage := paginationParams(r)
	rows, pagination, err := h.service.List(r.Context(), actor, page, perPage, mine)
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]postResponse, 0, len(rows))
	for i := range rows {
		items = append(items, toResponse(&rows[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"posts": items,
		"pagination": map[string]int{
			"page":        pagination.Page,
			"per_page":    pagination.PerPage,
			"total":       pagination.Total,
			"total_pages": pagination.TotalPages,
		},
	})
}

type updatePostRequest struct {
	Title   *string  `json:"title" validate:"omitempty,max=200"`
	Content *string  `json:"content"`
	Excerpt *string  `json:"excerpt" validate:"omitempty,max=500"`
	Tags    []string `json:"tags" validate:"omitempty,dive,max=50"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updatePostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := authz.ActorFromContext(r.Context())
	post, err := h.service.Update(r.Context(), actor, id, UpdateRequest{
		Title:   req.Title,
		Content: req.Content,
		Excerpt: req.Excerpt,
		Tags:    req.Tags,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(post))
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=draft published archived"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := authz.ActorFromContext(r.Context())
	post, err := h.service.Transition(r.Context(), actor, id, Status(req.Status))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(post))
}

type repostRequest struct {
	Comment string `json:"comment" validate:"max=500"`
}

func (h *Handler) repost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req repostRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	actor := authz.ActorFromContext(r.Context())
	repost, err := h.service.Repost(r.Context(), actor, id, req.Comment)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(repost))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := authz.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidTransition) {
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
		return
	}
	if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrAccessDenied) && !errors.Is(err, shared.ErrValidation) {
		h.logger.Error("posts handler", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid post id")
		return 0, false
	}
	return id, true
}

func paginationParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
