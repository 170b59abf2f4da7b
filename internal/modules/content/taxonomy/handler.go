package taxonomy

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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, optionalAuthMW gin.HandlerFunc) {
	rg.GET("/tags", optionalAuthMW, h.tags)
	rg.GET("/folders", optionalAuthMW, h.folders)

	admin := rg.Group("", authMW, middleware.RequireAdmin())
	admin.PATCH("/tags/:name", h.renameTag)
	admin.DELETE("/tags/:name", h.deleteTag)
	admin.PATCH("/folders", h.renameFolder)
}

type renameTagDTO struct {
	To string `json:"to" binding:"required,tag"`
}

type renameFolderDTO struct {
	From string `json:"from" binding:"required,folderpath"`
	To   string `json:"to"   binding:"required,folderpath"`
}

// tags GET /tags
func (h *Handler) tags(c *gin.Context) {
	out, err := h.svc.Tags(middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, out)
}

// folders GET /folders
func (h *Handler) folders(c *gin.Context) {
	out, err := h.svc.Folders(middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, out)
}

// renameTag PATCH /tags/:name
func (h *Handler) renameTag(c *gin.Context) {
	var dto renameTagDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	batch, err := h.svc.RenameTag(c.Param("name"), dto.To)
	h.reply(c, batch, err)
}

// deleteTag DELETE /tags/:name
func (h *Handler) deleteTag(c *gin.Context) {
	batch, err := h.svc.DeleteTag(c.Param("name"))
	h.reply(c, batch, err)
}

// renameFolder PATCH /folders
func (h *Handler) renameFolder(c *gin.Context) {
	var dto renameFolderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	batch, err := h.svc.RenameFolder(dto.From, dto.To)
	h.reply(c, batch, err)
}

func (h *Handler) reply(c *gin.Context, batch Batch, err error) {
	switch {
	case errors.Is(err, ErrEmptyName), errors.Is(err, ErrSameName):
		response.BadRequest(c, err.Error())
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, batch)
	}
}
