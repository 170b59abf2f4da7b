package gateway

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/pkg/response"
)

// RegisterRoutes mounts socket.io and the stats endpoint.
func RegisterRoutes(rg *gin.RouterGroup, hub *Hub, authMW gin.HandlerFunc, adminMW gin.HandlerFunc) {
	handler := gin.WrapH(hub.Handler())
	rg.Any("/socket.io", handler)
	rg.Any("/socket.io/*any", handler)

	rg.GET("/gateway/stats", authMW, adminMW, func(c *gin.Context) {
		response.OK(c, hub.Stats())
	})
}
