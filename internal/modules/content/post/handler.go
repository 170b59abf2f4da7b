package post

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/pkg/pagination"
	"github.com/mx-space/wiki/internal/pkg/response"
)

// Handler handles post HTTP requests.
type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

// RegisterRoutes mounts post routes onto the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, optionalAuthMW gin.HandlerFunc) {
	posts := rg.Group("/posts")

	public := posts.Group("", optionalAuthMW)
	public.GET("", h.list)
	public.GET("/templates", h.templates)
	public.GET("/:id", h.get)
	public.POST("/:id/views", h.view)

	admin := posts.Group("", authMW, middleware.RequireAdmin())
	admin.POST("", h.create)
	admin.PUT("/:id", h.update)
	admin.PATCH("/:id", h.update)
	admin.DELETE("/:id", h.delete)
	admin.GET("/:id/versions", h.versions)
	admin.GET("/:id/versions/:versionId", h.version)
	admin.GET("/:id/versions/:versionId/restore", h.restore)
}

// list GET /posts
func (h *Handler) list(c *gin.Context) {
	var lq ListQuery
	if err := c.ShouldBindQuery(&lq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	posts, pag, err := h.svc.List(pagination.FromContext(c), lq, middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}

	items := make([]postResponse, len(posts))
	for i := range posts {
		items[i] = toResponse(&posts[i], false)
	}
	response.Paged(c, items, pag)
}

// templates GET /posts/templates
func (h *Handler) templates(c *gin.Context) {
	response.OK(c, Templates(h.now()))
}

// get GET /posts/:id accepts an id or a slug.
func (h *Handler) get(c *gin.Context) {
	post, err := h.lookup(c)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if post == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toResponse(post, true))
}

// view POST /posts/:id/views
func (h *Handler) view(c *gin.Context) {
	post, err := h.lookup(c)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if post == nil {
		response.NotFound(c)
		return
	}

	userID := middleware.CurrentUserID(c)
	viewer := userID
	if viewer == "" {
		viewer = c.ClientIP()
	}
	counted, err := h.svc.RecordView(c.Request.Context(), post, viewer, userID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	views := post.Views
	if counted {
		views++
	}
	response.OK(c, gin.H{"counted": counted, "views": views})
}

// create POST /posts
func (h *Handler) create(c *gin.Context) {
	var dto CreatePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}

	post, err := h.svc.Create(&dto)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, toResponse(post, true))
}

// update PUT|PATCH /posts/:id
func (h *Handler) update(c *gin.Context) {
	var dto UpdatePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}

	post, err := h.svc.Update(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, toResponse(post, true))
}

// delete DELETE /posts/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// versions GET /posts/:id/versions
func (h *Handler) versions(c *gin.Context) {
	versions, err := h.svc.Versions(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]versionResponse, len(versions))
	for i := range versions {
		out[i] = toVersionResponse(&versions[i], false)
	}
	response.OK(c, out)
}

// version GET /posts/:id/versions/:versionId
func (h *Handler) version(c *gin.Context) {
	v, err := h.svc.Version(c.Param("id"), c.Param("versionId"))
	if err != nil && !errors.Is(err, ErrWrongParent) {
		response.InternalError(c, err)
		return
	}
	if v == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toVersionResponse(v, true))
}

// restore GET /posts/:id/versions/:versionId/restore returns the snapshot
// as an editor payload. Nothing is written until the editor saves.
func (h *Handler) restore(c *gin.Context) {
	v, err := h.svc.Version(c.Param("id"), c.Param("versionId"))
	if err != nil && !errors.Is(err, ErrWrongParent) {
		response.InternalError(c, err)
		return
	}
	if v == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, gin.H{"title": v.Title, "content": v.Content, "version_id": v.ID})
}

func (h *Handler) lookup(c *gin.Context) (*models.PostModel, error) {
	isAdmin := middleware.IsAdmin(c)
	id := c.Param("id")
	post, err := h.svc.GetByID(id)
	if err != nil {
		return nil, err
	}
	if post != nil {
		if !isAdmin && !post.IsPublic {
			return nil, nil
		}
		return post, nil
	}
	return h.svc.GetBySlug(id, isAdmin)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSlugTaken):
		response.Conflict(c, "Ce slug est déjà utilisé")
	case errors.Is(err, ErrEmptySlug):
		response.UnprocessableEntity(c, "Titre invalide pour générer un slug")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c)
	default:
		response.InternalError(c, err)
	}
}
