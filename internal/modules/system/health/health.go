package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/pkg/cron"
	"github.com/mx-space/wiki/internal/pkg/nativelog"
	"github.com/mx-space/wiki/internal/pkg/response"
	"gorm.io/gorm"
)

type logItem struct {
	Size     string `json:"size"`
	Filename string `json:"filename"`
	Today    bool   `json:"today"`
	Created  int64  `json:"created"`
}

// Pinger is implemented by caches that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db     *gorm.DB
	cache  Pinger
	sched  *cron.Scheduler
	logDir string
}

// NewHandler builds the health handler. cache may be nil when the app runs
// on the in-process store.
func NewHandler(db *gorm.DB, cache Pinger, sched *cron.Scheduler, logDir string) *Handler {
	return &Handler{db: db, cache: cache, sched: sched, logDir: logDir}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/health", h.status)

	admin := rg.Group("/health", authMW, middleware.RequireAdmin())
	admin.GET("/cron", h.listJobs)
	admin.POST("/cron/run/:name", h.runJob)
	admin.GET("/logs", h.listLogs)
	admin.GET("/logs/:filename", h.readLog)
}

// GET /health
func (h *Handler) status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	dbOK := err == nil && sqlDB.PingContext(ctx) == nil

	cache := "memory"
	if h.cache != nil {
		cache = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			cache = "down"
		}
	}

	status, code := "ok", http.StatusOK
	if !dbOK {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "database": dbOK, "cache": cache})
}

// GET /health/cron
func (h *Handler) listJobs(c *gin.Context) {
	response.OK(c, h.sched.List())
}

// POST /health/cron/run/:name
func (h *Handler) runJob(c *gin.Context) {
	if err := h.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	response.OK(c, gin.H{"message": "job triggered"})
}

// GET /health/logs
func (h *Handler) listLogs(c *gin.Context) {
	entries, err := os.ReadDir(h.logDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.OK(c, []logItem{})
			return
		}
		response.InternalError(c, err)
		return
	}

	today := nativelog.DailyFilename(time.Now())
	items := make([]logItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, logItem{
			Size:     formatByteSize(info.Size()),
			Filename: entry.Name(),
			Today:    entry.Name() == today,
			Created:  info.ModTime().UnixMilli(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Created > items[j].Created })
	response.OK(c, items)
}

// GET /health/logs/:filename
func (h *Handler) readLog(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	if filename == "." || !strings.HasSuffix(filename, ".log") {
		response.UnprocessableEntity(c, "filename must be a .log file")
		return
	}
	data, err := os.ReadFile(filepath.Join(h.logDir, filename))
	if err != nil {
		response.NotFoundMsg(c, "log file not exists")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

func formatByteSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
