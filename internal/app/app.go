package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/config"
	"github.com/mx-space/wiki/internal/database"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/modules/gateway/gateway"
	pkgcron "github.com/mx-space/wiki/internal/pkg/cron"
	jwtpkg "github.com/mx-space/wiki/internal/pkg/jwt"
	"github.com/mx-space/wiki/internal/pkg/metrics"
	pkgredis "github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/mx-space/wiki/internal/pkg/session"
	"github.com/mx-space/wiki/internal/pkg/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	kv       pkgredis.KV
	rc       *pkgredis.Client
	hub      *gateway.Hub
	sessions *session.Store
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cancel   context.CancelFunc
	sched    *pkgcron.Scheduler
	started  time.Time
}

// New initializes the application: config → DB → Redis → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var (
		kv  pkgredis.KV
		bus gateway.Bus
	)
	rc, err := pkgredis.Connect(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, using in-process cache", zap.Error(err))
		kv = pkgredis.NewMemory()
	} else {
		kv = rc
		bus = gateway.NewRedisBus(rc)
	}

	a := build(logger, cfg, db, kv, bus)
	a.rc = rc
	return a, nil
}

// build wires routes and background work onto already opened stores.
func build(logger *zap.Logger, cfg *config.AppConfig, db *gorm.DB, kv pkgredis.KV, bus gateway.Bus) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.Register()

	signer := jwtpkg.NewSigner(cfg.JWTSecret)
	if signer.UsesDefaultSecret() {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}
	sessions := session.NewStore(db, signer)
	m := metrics.New()

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(m))
	router.Use(cors.New(corsConfig(cfg)))

	hub := gateway.NewHub(bus, logger, m, adminChecker(db, sessions))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	a := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		kv:       kv,
		hub:      hub,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
		cancel:   cancel,
		sched:    pkgcron.New(logger),
		started:  time.Now(),
	}
	svcs := a.registerRoutes()
	registerCronJobs(a.sched, sessions, svcs.navigation, logger)
	a.sched.Start(ctx)
	return a
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines and releases connections.
func (a *App) Shutdown() {
	a.cancel()
	a.sched.Wait()
	if a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
}
