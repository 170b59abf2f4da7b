package favorite

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/favorites", authMW)
	g.GET("", h.list)
	g.GET("/ids", h.ids)
	g.POST("/:postId", h.toggle)
}

type favoriteResponse struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Slug   string   `json:"slug"`
	Folder string   `json:"folder"`
	Tags   []string `json:"tags"`
	Views  int      `json:"views"`
}

// list GET /favorites
func (h *Handler) list(c *gin.Context) {
	posts, err := h.svc.List(middleware.CurrentUserID(c), middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]favoriteResponse, len(posts))
	for i, p := range posts {
		tags := []string(p.Tags)
		if tags == nil {
			tags = []string{}
		}
		out[i] = favoriteResponse{ID: p.ID, Title: p.Title, Slug: p.Slug, Folder: p.Folder, Tags: tags, Views: p.Views}
	}
	response.OK(c, out)
}

// ids GET /favorites/ids
func (h *Handler) ids(c *gin.Context) {
	ids, err := h.svc.IDs(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	response.OK(c, ids)
}

// toggle POST /favorites/:postId
func (h *Handler) toggle(c *gin.Context) {
	favorited, err := h.svc.Toggle(middleware.CurrentUserID(c), c.Param("postId"), middleware.IsAdmin(c))
	if errors.Is(err, ErrPostNotFound) {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"favorited": favorited})
}
