package interactions

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

// Handler wires HTTP endpoints for likes and comments.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers interaction routes on the root router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/posts/{id}/like", h.toggleLike)
	r.Post("/posts/{id}/comments", h.createComment)
	r.Get("/posts/{id}/interactions", h.listForPost)
	r.Get("/posts/{id}/interactions/summary", h.summary)
	r.Patch("/comments/{id}", h.updateComment)
	r.Delete("/interactions/{id}", h.delete)
	r.Get("/me/interactions", h.history)
}

type interactionResponse struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	PostID          int64     `json:"post_id"`
	Type            string    `json:"type"`
	Content         string    `json:"content,omitempty"`
	ParentCommentID int64     `json:"parent_comment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toResponse(in *Interaction) interactionResponse {
	return interactionResponse{
		ID:              in.ID,
		UserID:          in.UserID,
		PostID:          in.PostID,
		Type:            string(in.Type),
		Content:         in.Content,
		ParentCommentID: in.ParentCommentID,
		CreatedAt:       in.CreatedAt,
		UpdatedAt:       in.UpdatedAt,
	}
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := authz.ActorFromContext(r.Context())
	liked, err := h.service.ToggleLike(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

type createCommentRequest struct {
	Content         string `json:"content" validate:"required,max=2000"`
	ParentCommentID int64  `json:"parent_comment_id" validate:"omitempty,gt=0"`
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req createCommentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := authz.ActorFromContext(r.Context())
	comment, err := h.service.CreateComment(r.Context(), actor, id, req.Content, req.ParentCommentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(comment))
}

func (h *Handler) listForPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := authz.ActorFromContext(r.Context())
	page, perPage := paginationParams(r)
	typ := Type(r.URL.Query().Get("type"))
	rows, pagination, err := h.service.ListForPost(r.Context(), actor, id, typ, page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondList(w, rows, pagination)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := authz.ActorFromContext(r.Context())
	sum, err := h.service.Summarize(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	recent := make([]interactionResponse, 0, len(sum.RecentComments))
	for i := range sum.RecentComments {
		recent = append(recent, toResponse(&sum.RecentComments[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"likes_count":     sum.LikesCount,
		"comments_count":  sum.CommentsCount,
		"recent_comments": recent,
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	actor := authz.ActorFromContext(r.Context())
	page, perPage := paginationParams(r)
	rows, pagination, err := h.service.History(r.Context(), actor, page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondList(w, rows, pagination)
}

func (h *Handler) respondList(w http.ResponseWriter, rows []Interaction, pagination shared.Pagination) {
	items := make([]interactionResponse, 0, len(rows))
	for i := range rows {
		items = append(items, toResponse(&rows[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"interactions": items,
		"pagination": map[string]int{
			"page":        pagination.Page,
			"per_page":    pagination.PerPage,
			"total":       pagination.Total,
			"total_pages": pagination.TotalPages,
		},
	})
}

type updateCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateCommentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := authz.ActorFromContext(r.Context())
	comment, err := h.service.UpdateComment(r.Context(), actor, id, req.Content)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(comment))
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
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "interaction deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrAccessDenied) &&
		!errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrDuplicate) {
		h.logger.Error("interactions handler", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
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
