package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mx-space/wiki/internal/modules/content/navigation"
	pkgcron "github.com/mx-space/wiki/internal/pkg/cron"
	"github.com/mx-space/wiki/internal/pkg/session"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, sessions *session.Store, nav *navigation.Service, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        "purge_sessions",
		Description: "Delete expired and revoked sessions",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := sessions.Purge(time.Now())
			if err != nil {
				cronLogger.Warn("purge sessions failed", zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("purged %d sessions", n))
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "refresh_trending",
		Description: "Warm the trending posts cache",
		Interval:    time.Hour,
		RunOnStart:  true,
		Fn: func(ctx context.Context) error {
			posts, err := nav.RefreshTrending(ctx)
			if err != nil {
				cronLogger.Warn("refresh trending failed", zap.Error(err))
				return err
			}
			cronLogger.Debug("trending refreshed", zap.Int("posts", len(posts)))
			return nil
		},
	})
}
