package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mx-space/wiki/internal/app"
	"github.com/mx-space/wiki/internal/config"
	"github.com/mx-space/wiki/internal/database"
	"github.com/mx-space/wiki/internal/modules/storage/backup"
	"github.com/mx-space/wiki/internal/pkg/nativelog"
	pkgredis "github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	configPath string
	exportOut  string

	rootCmd = &cobra.Command{
		Use:           "server",
		Short:         "Personal wiki server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE:  runMigrate,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write every post to a JSON backup",
		RunE:  runExport,
	}

	importCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Restore posts from a JSON backup, upserting on slug",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to YAML config file")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", `Output file ("-" for stdout, default wiki-os-backup-<date>.json)`)
	rootCmd.AddCommand(serveCmd, migrateCmd, exportCmd, importCmd)
}

// setup loads the config and builds the logger every command shares.
func setup() (*config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := nativelog.NewZapLogger(cfg.LogsDir(), !cfg.IsProduction())
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("native log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	return cfg, logger, nil
}

func openDB(cfg *config.AppConfig) (*gorm.DB, error) {
	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return db, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	application, err := app.New(logger, cfg)
	if err != nil {
		logger.Error("failed to initialize app", zap.Error(err))
		return err
	}

	srv := &http.Server{
		Addr:              application.Addr(),
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		application.Shutdown()
		return err
	}

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	application.Shutdown()
	logger.Info("server exited")
	return nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	logger.Info("schema up to date", zap.String("driver", cfg.Database.Driver))
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	out := cmd.OutOrStdout()
	target := exportOut
	if target == "" {
		target = backup.FileName(time.Now())
	}
	if target != "-" {
		f, err := os.Create(target)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	doc, err := backup.NewService(db, nil, nil, nil, logger).WriteExport(out)
	if err != nil {
		return err
	}
	logger.Info("backup exported", zap.Int("posts", len(doc.Posts)), zap.String("file", target))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc := backup.NewService(db, nil, nil, nil, logger)
	if rc, err := pkgredis.Connect(ctx, cfg.RedisURL); err == nil {
		defer rc.Close()
		svc = backup.NewService(db, rc, nil, nil, logger)
	} else {
		logger.Warn("redis unavailable, trending cache left as is", zap.Error(err))
	}

	n, err := svc.Import(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d articles restaurés/mis à jour !\n", n)
	return nil
}
