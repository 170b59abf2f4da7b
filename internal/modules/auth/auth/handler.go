package auth

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

// RegisterRoutes mounts auth routes. limitMW guards the credential
// endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, limitMW ...gin.HandlerFunc) {
	a := rg.Group("/auth")

	a.POST("/register", chain(limitMW, h.register)...)
	a.POST("/login", chain(limitMW, h.login)...)

	me := a.Group("", authMW)
	me.POST("/logout", h.logout)
	me.GET("/me", h.me)
	me.PUT("/password", h.changePassword)
	me.GET("/sessions", h.listSessions)
	me.DELETE("/sessions", h.revokeOtherSessions)
}

func chain(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	return append(append(out, mw...), h)
}

// register POST /auth/register
func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, profile, err := h.svc.Register(&dto, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			response.Conflict(c, "Ce nom d'utilisateur est déjà pris")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, tokenResponse{Token: token, User: toProfile(profile)})
}

// login POST /auth/login
func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, profile, err := h.svc.Login(dto.Username, dto.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.ForbiddenMsg(c, "Identifiants incorrects")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, tokenResponse{Token: token, User: toProfile(profile)})
}

// logout POST /auth/logout
func (h *Handler) logout(c *gin.Context) {
	if err := h.svc.Logout(middleware.CurrentUserID(c), middleware.CurrentSessionID(c)); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// me GET /auth/me
func (h *Handler) me(c *gin.Context) {
	profile, err := h.svc.Me(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if profile == nil {
		response.Unauthorized(c)
		return
	}
	response.OK(c, toProfile(profile))
}

// changePassword PUT /auth/password
func (h *Handler) changePassword(c *gin.Context) {
	var dto ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err := h.svc.ChangePassword(middleware.CurrentUserID(c), middleware.CurrentSessionID(c), &dto)
	switch {
	case err == nil:
		response.NoContent(c)
	case errors.Is(err, ErrWrongPassword):
		response.ForbiddenMsg(c, "Mot de passe actuel incorrect")
	case errors.Is(err, ErrSamePassword):
		response.UnprocessableEntity(c, "Le nouveau mot de passe doit être différent")
	case errors.Is(err, ErrInvalidCredentials):
		response.Unauthorized(c)
	default:
		response.InternalError(c, err)
	}
}

// listSessions GET /auth/sessions
func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.svc.Sessions(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	current := middleware.CurrentSessionID(c)
	items := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		items[i] = sessionResponse{
			ID:        s.ID,
			IP:        s.IP,
			UA:        s.UA,
			Current:   s.ID == current,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		}
	}
	response.OK(c, items)
}

// revokeOtherSessions DELETE /auth/sessions
func (h *Handler) revokeOtherSessions(c *gin.Context) {
	if err := h.svc.RevokeOtherSessions(middleware.CurrentUserID(c), middleware.CurrentSessionID(c)); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
