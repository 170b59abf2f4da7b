package markdown

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/pkg/response"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	renderer *Renderer
}

func NewHandler(db *gorm.DB, renderer *Renderer) *Handler {
	return &Handler{db: db, renderer: renderer}
}

// RegisterRoutes mounts the render endpoint. optionalAuthMW lets admins
// render private drafts.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, optionalAuthMW gin.HandlerFunc) {
	rg.GET("/posts/:id/render", optionalAuthMW, h.render)
	rg.POST("/markdown/preview", optionalAuthMW, h.preview)
}

type renderedResponse struct {
	HTML  string         `json:"html"`
	TOC   []Heading      `json:"toc"`
	Links []OutboundLink `json:"links"`
}

func (h *Handler) build(src string) (renderedResponse, error) {
	html := h.renderer.Render(src)
	links, err := Links(html)
	if err != nil {
		return renderedResponse{}, err
	}
	return renderedResponse{HTML: html, TOC: TOC(src), Links: links}, nil
}

// render GET /posts/:id/render
func (h *Handler) render(c *gin.Context) {
	var post models.PostModel
	err := h.db.Scopes(models.VisibleTo(middleware.IsAdmin(c))).
		Where("id = ? OR slug = ?", c.Param("id"), c.Param("id")).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}

	out, err := h.build(post.Content)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, out)
}

type previewDTO struct {
	Content string `json:"content"`
}

// preview POST /markdown/preview renders unsaved editor content.
func (h *Handler) preview(c *gin.Context) {
	var dto previewDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	out, err := h.build(dto.Content)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, out)
}
