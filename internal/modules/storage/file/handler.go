package file

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/pkg/response"
)

// Handler serves uploads.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/files", authMW)
	g.POST("/images", h.uploadImage)
}

// uploadImage POST /files/images
func (h *Handler) uploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	img, err := h.svc.UploadImage(c.Request.Context(), fh)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.Created(c, img)
}

// WriteError maps upload errors to responses.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrDisabled):
		response.ServiceUnavailable(c, "Stockage indisponible")
	case errors.Is(err, ErrTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "Fichier trop volumineux")
	case errors.Is(err, ErrNotImage):
		response.UnprocessableEntity(c, "Le fichier doit être une image")
	default:
		response.InternalError(c, err)
	}
}
