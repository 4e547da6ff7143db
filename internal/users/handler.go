package users

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

// Handler wires HTTP endpoints for account management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers account routes. The collection listing is pre-gated
// by the matrix so unidentified callers bounce before reaching the handler.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.Require(authz.KindUsers, authz.ActionRead)).Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Put("/{id}/role", h.setRole)
	r.Post("/{id}/deactivate", h.deactivate)
	r.Delete("/{id}", h.delete)
}

type userResponse struct {
	ID                int64      `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email,omitempty"`
	Role              string     `json:"role"`
	IsActive          bool       `json:"is_active"`
	FirstName         string     `json:"first_name,omitempty"`
	LastName          string     `json:"last_name,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	LastDeactivatedAt *time.Time `json:"last_deactivated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toResponse(u *User) userResponse {
	return userResponse{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Role:              string(u.Role),
		IsActive:          u.IsActive,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Bio:               u.Bio,
		LastDeactivatedAt: u.LastDeactivatedAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := authz.ActorFromContext(r.Context())
	page, perPage := paginationParams(r)
	role := authz.Role(r.URL.Query().Get("role"))
	rows, pagination, err := h.service.List(r.Context(), actor, role, page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]userResponse, 0, len(rows))
	for i := range rows {
		items = append(items, toResponse(&rows[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users": items,
		"pagination": map[string]int{
			"page":        pagination.Page,
			"per_page":    pagination.PerPage,
			"total":       pagination.Total,
			"total_pages": pagination.TotalPages,
		},
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := authz.ActorFromContext(r.Context())
	user, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Bio       *string `json:"bio" validate:"omitempty,max=1000"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := authz.ActorFromContext(r.Context())
	user, err := h.service.UpdateProfile(r.Context(), actor, id, UpdateProfileRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req setRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := authz.ActorFromContext(r.Context())
	user, err := h.service.SetRole(r.Context(), actor, id, authz.Role(req.Role))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := authz.ActorFromContext(r.Context())
	if err := h.service.Deactivate(r.Context(), actor, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "account deactivated"})
}

type deleteAccountRequest struct {
	Password     string `json:"password"`
	Confirmation string `json:"confirmation" validate:"required"`
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req deleteAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := authz.ActorFromContext(r.Context())
	err := h.service.Delete(r.Context(), actor, id, DeleteRequest{
		Password:       req.Password,
		Confirmation:   req.Confirmation,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrAccessDenied) &&
		!errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrInvalidCredentials) &&
		!errors.Is(err, shared.ErrDuplicate) {
		h.logger.Error("users handler", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
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
