package ai

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/pkg/aistream"
	"github.com/mx-space/wiki/internal/pkg/response"
)

// SSE event names of the chat stream.
const (
	EventDelta = "delta"
	EventDone  = "done"
	EventError = "error"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts AI routes. generateMW runs after the admin check
// on batch generation.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, generateMW ...gin.HandlerFunc) {
	g := rg.Group("/ai", authMW)
	g.GET("/chat/welcome", h.welcome)
	g.POST("/chat/:postId", h.chat)
	g.DELETE("/chat/:postId", h.stop)

	gen := append([]gin.HandlerFunc{middleware.RequireAdmin()}, generateMW...)
	gen = append(gen, h.generate)
	g.POST("/generate", gen...)
}

type chatDTO struct {
	Message string `json:"message" binding:"required,max=4000"`
	History []Turn `json:"history" binding:"omitempty,max=100,dive"`
}

type generateDTO struct {
	Titles []string `json:"titles" binding:"required,min=1"`
}

type deltaEvent struct {
	Delta string `json:"delta"`
	Text  string `json:"text"`
}

type doneEvent struct {
	State string `json:"state"`
	Text  string `json:"text"`
}

type errorEvent struct {
	Message string `json:"message"`
	Text    string `json:"text"`
}

// welcome GET /ai/chat/welcome
func (h *Handler) welcome(c *gin.Context) {
	response.OK(c, gin.H{"role": RoleModel, "text": WelcomeMessage, "enabled": h.svc.Enabled()})
}

// chat POST /ai/chat/:postId
//
// The answer is streamed as server-sent events: one delta per parsed
// fragment carrying the accumulated text, then exactly one done or error.
func (h *Handler) chat(c *gin.Context) {
	var dto chatDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	started := false
	emit := func(u aistream.Update) {
		if !started {
			started = true
			setSSEHeaders(c)
		}
		c.SSEvent(EventDelta, deltaEvent{Delta: u.Delta, Text: u.Text})
		c.Writer.Flush()
	}

	res, err := h.svc.Chat(c.Request.Context(), middleware.CurrentUserID(c), c.Param("postId"),
		middleware.IsAdmin(c), dto.History, dto.Message, emit)
	if err != nil {
		writeError(c, err)
		return
	}

	if !started {
		setSSEHeaders(c)
	}
	if res.State == aistream.StateErrored {
		c.SSEvent(EventError, errorEvent{Message: aistream.FallbackMessage, Text: res.Text})
	} else {
		c.SSEvent(EventDone, doneEvent{State: string(res.State), Text: res.Text})
	}
	c.Writer.Flush()
}

// stop DELETE /ai/chat/:postId
func (h *Handler) stop(c *gin.Context) {
	stopped := h.svc.Stop(middleware.CurrentUserID(c), c.Param("postId"))
	response.OK(c, gin.H{"stopped": stopped})
}

// generate POST /ai/generate
func (h *Handler) generate(c *gin.Context) {
	var dto generateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	results, err := h.svc.Generate(c.Request.Context(), dto.Titles)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, results)
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnavailable):
		response.ServiceUnavailable(c, "Assistant IA indisponible")
	case errors.Is(err, ErrPostNotFound):
		response.NotFoundMsg(c, "Article introuvable")
	case errors.Is(err, ErrRateLimited):
		response.TooManyRequests(c)
	case errors.Is(err, ErrNoQuestion), errors.Is(err, ErrNoTitles), errors.Is(err, ErrTooManyTitles):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
