package user

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/modules/storage/file"
	"github.com/mx-space/wiki/internal/pkg/pagination"
	"github.com/mx-space/wiki/internal/pkg/response"
)

// AvatarUploader stores a profile picture and returns its public URL.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, userID string, fh *multipart.FileHeader) (string, error)
}

type Handler struct {
	svc     *Service
	avatars AvatarUploader
}

func NewHandler(svc *Service, avatars AvatarUploader) *Handler {
	return &Handler{svc: svc, avatars: avatars}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	p := rg.Group("/profile", authMW)
	p.GET("", h.getProfile)
	p.PATCH("", h.updateProfile)
	p.POST("/avatar", h.uploadAvatar)

	u := rg.Group("/users", authMW, middleware.RequireAdmin())
	u.GET("", h.list)
	u.PATCH("/:id/role", h.toggleRole)
	u.DELETE("/:id", h.delete)
}

// getProfile GET /profile
func (h *Handler) getProfile(c *gin.Context) {
	p, err := h.svc.GetByID(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toResponse(p))
}

// updateProfile PATCH /profile
func (h *Handler) updateProfile(c *gin.Context) {
	var dto UpdateProfileDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.UpdateProfile(middleware.CurrentUserID(c), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(p))
}

// uploadAvatar POST /profile/avatar
//
// The URL is returned, not saved: the client sends it back with PATCH
// /profile.
func (h *Handler) uploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "Veuillez sélectionner une image.")
		return
	}
	url, err := h.avatars.UploadAvatar(c.Request.Context(), middleware.CurrentUserID(c), fh)
	if err != nil {
		file.WriteError(c, err)
		return
	}
	response.Created(c, gin.H{"url": url})
}

// list GET /users
func (h *Handler) list(c *gin.Context) {
	profiles, pag, err := h.svc.List(pagination.FromContext(c), c.Query("q"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	items := make([]userResponse, len(profiles))
	for i := range profiles {
		items[i] = toResponse(&profiles[i])
	}
	response.Paged(c, items, pag)
}

// toggleRole PATCH /users/:id/role
func (h *Handler) toggleRole(c *gin.Context) {
	p, err := h.svc.ToggleRole(middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(p))
}

// delete DELETE /users/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c)
	case errors.Is(err, ErrUsernameTaken):
		response.Conflict(c, "Ce nom d'utilisateur est déjà pris")
	case errors.Is(err, ErrSelf):
		response.ForbiddenMsg(c, "Vous ne pouvez pas modifier votre propre compte administrateur")
	default:
		response.InternalError(c, err)
	}
}
