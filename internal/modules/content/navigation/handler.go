package navigation

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the /wiki views. Every route accepts anonymous
// callers.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, optionalAuthMW gin.HandlerFunc) {
	g := rg.Group("/wiki", optionalAuthMW)
	g.GET("/tree", h.tree)
	g.GET("/search", h.search)
	g.GET("/home", h.home)
	g.GET("/:slug", h.page)
	g.GET("/:slug/backlinks", h.backlinks)
	g.GET("/:slug/links", h.links)
}

// tree GET /wiki/tree
func (h *Handler) tree(c *gin.Context) {
	root, err := h.svc.Tree(middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, root)
}

// search GET /wiki/search?q=&limit=
func (h *Handler) search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	hits, err := h.svc.Search(c.Query("q"), limit, middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if hits == nil {
		hits = []Hit{}
	}
	response.OK(c, hits)
}

// home GET /wiki/home
func (h *Handler) home(c *gin.Context) {
	home, err := h.svc.Home(c.Request.Context(), middleware.CurrentUserID(c), middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, home)
}

// page GET /wiki/:slug resolves a wiki-link target.
func (h *Handler) page(c *gin.Context) {
	post, ok := h.resolve(c)
	if !ok {
		return
	}
	response.OK(c, toSummary(post))
}

// backlinks GET /wiki/:slug/backlinks
func (h *Handler) backlinks(c *gin.Context) {
	post, ok := h.resolve(c)
	if !ok {
		return
	}
	out, err := h.svc.Backlinks(post, middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, out)
}

// links GET /wiki/:slug/links
func (h *Handler) links(c *gin.Context) {
	post, ok := h.resolve(c)
	if !ok {
		return
	}
	out, err := h.svc.Links(post, middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, out)
}

func (h *Handler) resolve(c *gin.Context) (*models.PostModel, bool) {
	post, err := h.svc.BySlug(c.Param("slug"), middleware.IsAdmin(c))
	if err != nil {
		response.InternalError(c, err)
		return nil, false
	}
	if post == nil {
		response.NotFound(c)
		return nil, false
	}
	return post, true
}
