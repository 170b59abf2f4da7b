package backup

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/pkg/response"
)

// maxImportSize bounds an uploaded backup.
const maxImportSize = 64 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/backup", authMW, middleware.RequireAdmin())
	g.GET("", h.stats)
	g.GET("/export", h.export)
	g.POST("/import", h.importPosts)
	g.DELETE("/posts", h.reset)
}

// GET /backup
func (h *Handler) stats(c *gin.Context) {
	st, err := h.svc.Stats()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, st)
}

// GET /backup/export
func (h *Handler) export(c *gin.Context) {
	doc, err := h.svc.Export()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, FileName(doc.Date)))
	c.IndentedJSON(http.StatusOK, doc)
}

// POST /backup/import
//
// Accepts the document either as a multipart "file" field or as the raw
// request body.
func (h *Handler) importPosts(c *gin.Context) {
	var body io.Reader = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "Format de fichier invalide")
			return
		}
		defer f.Close()
		body = io.LimitReader(f, maxImportSize)
	}

	n, err := h.svc.Import(c.Request.Context(), body)
	if err != nil {
		if errors.Is(err, ErrInvalidFormat) {
			response.BadRequest(c, "Format de fichier invalide")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{
		"imported": n,
		"message":  fmt.Sprintf("%d articles restaurés/mis à jour !", n),
	})
}

// DELETE /backup/posts
func (h *Handler) reset(c *gin.Context) {
	n, err := h.svc.Reset(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": n})
}
