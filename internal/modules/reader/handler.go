package reader

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/pkg/response"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/reader", authMW)
	g.GET("/history", h.history)
	g.DELETE("/history", h.clearHistory)
	g.GET("/draft/:key", h.getDraft)
	g.PUT("/draft/:key", h.saveDraft)
	g.DELETE("/draft/:key", h.deleteDraft)
}

type draftDTO struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *Handler) history(c *gin.Context) {
	response.OK(c, h.svc.History(c.Request.Context(), middleware.CurrentUserID(c)))
}

func (h *Handler) clearHistory(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		h.svc.logger.Warn("clear history failed", zap.Error(err))
	}
	response.NoContent(c)
}

func (h *Handler) getDraft(c *gin.Context) {
	d, err := h.svc.Draft(c.Request.Context(), middleware.CurrentUserID(c), c.Param("key"))
	if errors.Is(err, ErrInvalidDraftKey) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil || d == nil {
		response.NoContent(c)
		return
	}
	response.OK(c, d)
}

func (h *Handler) saveDraft(c *gin.Context) {
	var dto draftDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	d, err := h.svc.SaveDraft(c.Request.Context(), middleware.CurrentUserID(c), c.Param("key"), Draft{
		Title:   dto.Title,
		Content: dto.Content,
	})
	if errors.Is(err, ErrInvalidDraftKey) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		h.svc.logger.Warn("save draft failed", zap.Error(err))
		response.NoContent(c)
		return
	}
	response.OK(c, d)
}

func (h *Handler) deleteDraft(c *gin.Context) {
	err := h.svc.DiscardDraft(c.Request.Context(), middleware.CurrentUserID(c), c.Param("key"))
	if errors.Is(err, ErrInvalidDraftKey) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		h.svc.logger.Warn("delete draft failed", zap.Error(err))
	}
	response.NoContent(c)
}
