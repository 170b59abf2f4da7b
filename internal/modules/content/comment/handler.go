package comment

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/pkg/response"
	"gorm.io/gorm"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts comment routes. writeMW runs after auth on create,
// typically a rate limiter.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, optionalAuthMW gin.HandlerFunc, writeMW ...gin.HandlerFunc) {
	rg.GET("/posts/:id/comments", optionalAuthMW, h.list)

	create := append([]gin.HandlerFunc{authMW}, writeMW...)
	create = append(create, h.create)
	rg.POST("/posts/:id/comments", create...)
	rg.DELETE("/comments/:id", authMW, h.delete)
}

type createDTO struct {
	Content string `json:"content" binding:"required"`
}

type authorResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

type commentResponse struct {
	ID        string          `json:"id"`
	PostID    string          `json:"post_id"`
	UserID    string          `json:"user_id"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	Author    *authorResponse `json:"author"`
}

func toResponse(c *models.CommentModel) commentResponse {
	resp := commentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
	if c.Author != nil {
		resp.Author = &authorResponse{
			ID:        c.Author.ID,
			Username:  c.Author.Username,
			Role:      c.Author.Role,
			AvatarURL: c.Author.AvatarURL,
		}
	}
	return resp
}

// list GET /posts/:id/comments
func (h *Handler) list(c *gin.Context) {
	comments, err := h.svc.List(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]commentResponse, len(comments))
	for i := range comments {
		out[i] = toResponse(&comments[i])
	}
	response.OK(c, out)
}

// create POST /posts/:id/comments
func (h *Handler) create(c *gin.Context) {
	var dto createDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	cm, err := h.svc.Create(c.Param("id"), middleware.CurrentUserID(c), dto.Content, middleware.IsAdmin(c))
	switch {
	case errors.Is(err, ErrPostNotFound):
		response.NotFound(c)
	case errors.Is(err, ErrEmpty), errors.Is(err, ErrTooLong):
		response.UnprocessableEntity(c, err.Error())
	case err != nil:
		response.InternalError(c, err)
	default:
		response.Created(c, toResponse(cm))
	}
}

// delete DELETE /comments/:id
func (h *Handler) delete(c *gin.Context) {
	err := h.svc.Delete(c.Param("id"), middleware.CurrentUserID(c), middleware.IsAdmin(c))
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		response.NotFound(c)
	case errors.Is(err, ErrForbidden):
		response.ForbiddenMsg(c, "Vous ne pouvez supprimer que vos propres commentaires")
	case err != nil:
		response.InternalError(c, err)
	default:
		response.NoContent(c)
	}
}
