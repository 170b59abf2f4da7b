package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/modules/auth/auth"
	"github.com/mx-space/wiki/internal/modules/auth/user"
	"github.com/mx-space/wiki/internal/modules/content/comment"
	"github.com/mx-space/wiki/internal/modules/content/favorite"
	"github.com/mx-space/wiki/internal/modules/content/navigation"
	"github.com/mx-space/wiki/internal/modules/content/post"
	"github.com/mx-space/wiki/internal/modules/content/taxonomy"
	"github.com/mx-space/wiki/internal/modules/gateway/gateway"
	"github.com/mx-space/wiki/internal/modules/processing/ai"
	"github.com/mx-space/wiki/internal/modules/processing/markdown"
	"github.com/mx-space/wiki/internal/modules/reader"
	"github.com/mx-space/wiki/internal/modules/stats/dashboard"
	"github.com/mx-space/wiki/internal/modules/storage/backup"
	"github.com/mx-space/wiki/internal/modules/storage/file"
	"github.com/mx-space/wiki/internal/modules/system/health"
	"github.com/mx-space/wiki/internal/pkg/response"
	"go.uber.org/zap"
)

const apiPrefix = "/api"

// services exposes what background jobs need from the route graph.
type services struct {
	navigation *navigation.Service
}

func (a *App) registerRoutes() services {
	r := a.router
	db, kv, cfg, logger := a.db, a.kv, a.cfg, a.logger

	authn := middleware.NewAuthenticator(a.sessions, db)
	authMW := authn.Auth()
	optionalAuthMW := authn.OptionalAuth()

	r.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	root := r.Group("")
	root.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	gateway.RegisterRoutes(root, a.hub, authMW, middleware.RequireAdmin())

	api := r.Group(apiPrefix)
	cache, _ := kv.(health.Pinger)
	health.NewHandler(db, cache, a.sched, cfg.LogsDir()).RegisterRoutes(api, authMW)
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		up := time.Since(a.started)
		c.JSON(http.StatusOK, gin.H{
			"timestamp": up.Milliseconds(),
			"humanize":  humanizeDuration(up),
		})
	})

	// Reader state backs post views and the home page.
	readerSvc := reader.NewService(kv, cfg.Wiki.HistoryLimit, cfg.Wiki.DraftTTL, logger)
	reader.NewHandler(readerSvc).RegisterRoutes(api, authMW)

	// Auth & users
	sessionLimit := middleware.RateLimit(kv, "auth", 10, time.Minute)
	auth.NewHandler(auth.NewService(db, a.sessions, logger)).RegisterRoutes(api, authMW, sessionLimit)

	fileSvc := file.NewService(a.objectStore(), cfg.Storage.Buckets, logger)
	file.NewHandler(fileSvc).RegisterRoutes(api, authMW)
	user.NewHandler(user.NewService(db, a.hub, logger), fileSvc).RegisterRoutes(api, authMW)

	// Content
	postSvc := post.NewService(db, kv, a.hub, readerSvc, logger)
	post.NewHandler(postSvc).RegisterRoutes(api, authMW, optionalAuthMW)

	navSvc := navigation.NewService(db, kv, readerSvc, navigation.Options{
		DefaultFolder: cfg.Wiki.DefaultFolder,
		PaletteLimit:  cfg.Wiki.PaletteLimit,
	}, logger)
	navigation.NewHandler(navSvc).RegisterRoutes(api, optionalAuthMW)

	taxonomy.NewHandler(taxonomy.NewService(db, a.hub, cfg.Wiki.DefaultFolder, logger)).
		RegisterRoutes(api, authMW, optionalAuthMW)
	comment.NewHandler(comment.NewService(db, a.hub, logger)).
		RegisterRoutes(api, authMW, optionalAuthMW, middleware.RateLimit(kv, "comment", 10, time.Minute))
	favorite.NewHandler(favorite.NewService(db, logger)).RegisterRoutes(api, authMW)

	// Processing
	markdown.NewHandler(db, markdown.NewRenderer()).RegisterRoutes(api, optionalAuthMW)

	provider, err := ai.NewProvider(cfg.AI, &http.Client{})
	if err != nil {
		logger.Warn("AI disabled", zap.String("provider", cfg.AI.Provider), zap.Error(err))
	}
	aiSvc := ai.NewService(db, provider, postSvc, a.metrics, ai.Options{StreamTimeout: cfg.AI.StreamTimeout}, logger)
	ai.NewHandler(aiSvc).RegisterRoutes(api, authMW,
		middleware.Idempotence(kv),
		middleware.RateLimit(kv, "ai_generate", 5, time.Minute),
	)

	// Admin
	backup.NewHandler(backup.NewService(db, kv, readerSvc, a.hub, logger)).RegisterRoutes(api, authMW)
	dashboard.NewHandler(dashboard.NewService(db)).RegisterRoutes(api, authMW)

	return services{navigation: navSvc}
}

// objectStore returns the S3 store, or nil when storage is not configured.
func (a *App) objectStore() file.Store {
	if !a.cfg.Storage.Enabled() {
		a.logger.Info("object storage not configured, uploads disabled")
		return nil
	}
	store, err := file.NewS3Store(a.cfg.Storage, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		a.logger.Warn("object storage unavailable", zap.Error(err))
		return nil
	}
	return store
}
