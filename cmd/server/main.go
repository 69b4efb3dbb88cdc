package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolabo/syncpad/internal/config"
	"github.com/kolabo/syncpad/pkg/audit"
	"github.com/kolabo/syncpad/pkg/document"
	"github.com/kolabo/syncpad/pkg/engine"
	"github.com/kolabo/syncpad/pkg/hub"
	"github.com/kolabo/syncpad/pkg/logger"
	"github.com/kolabo/syncpad/pkg/metadataapi"
	"github.com/kolabo/syncpad/pkg/metrics"
	"github.com/kolabo/syncpad/pkg/transport"
)

var (
	version = "0.1.0"
	commit  = "dev"

	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "syncpadd",
		Short: "syncpad collaborative editing server",
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (defaults to ./.env if present)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("syncpadd v%s (%s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket and metadata HTTP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      logger.Level(cfg.LogLevel),
		FilePath:   cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 28,
		JSON:       true,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting syncpad server", zap.String("version", version), zap.String("listenAddr", cfg.ListenAddr))

	var mirror document.Mirror
	if cfg.S3Bucket != "" {
		m, err := document.NewS3Mirror(context.Background(), cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return fmt.Errorf("configure s3 mirror: %w", err)
		}
		mirror = m
		log.Info("document mirror enabled", zap.String("bucket", cfg.S3Bucket))
	}

	store, err := document.NewFileStore(cfg.StoreDir, log, mirror)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer store.Close()

	auditLog, err := audit.Open(cfg.SQLiteURI, log)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer auditLog.Close()

	collectors := metrics.New(prometheus.DefaultRegisterer)

	h := hub.New(log)
	engineCfg := engine.Config{
		DebounceDelay: cfg.DebounceDelay,
		TailSize:      cfg.TailSize,
		IdleEviction:  cfg.IdleEviction,
	}
	mgr := engine.NewManager(store, h, auditLog, collectors, log, engineCfg)
	h.AttachManager(mgr)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	mgr.StartIdleSweep(sweepCtx, cfg.IdleEviction/2)

	wsSrv := transport.NewServer(cfg.ListenAddr, h, transport.Config{
		ReadTimeout:         cfg.WSReadTimeout,
		WriteTimeout:        cfg.WSWriteTimeout,
		BroadcastBufferSize: cfg.BroadcastBuffer,
	}, cfg.AllowedOrigin, log)

	metaAPI := metadataapi.New(store, mgr, auditLog, log)
	metaSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metaAPI.Handler()}

	errCh := make(chan error, 2)
	go func() {
		log.Info("websocket server listening", zap.String("addr", cfg.ListenAddr))
		errCh <- wsSrv.ListenAndServe()
	}()
	go func() {
		log.Info("metadata api listening", zap.String("addr", cfg.MetricsAddr))
		if err := metaSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrain)
	defer cancel()

	stopSweep()
	drainErr := mgr.DrainAll(drainCtx)
	_ = wsSrv.Shutdown(drainCtx)
	_ = metaSrv.Shutdown(drainCtx)

	if drainErr != nil {
		log.Error("drain did not complete within deadline", zap.Error(drainErr), zap.Duration("deadline", cfg.ShutdownDrain))
		time.Sleep(10 * time.Millisecond) // let zap flush async cores
		return fmt.Errorf("shutdown drain: %w", drainErr)
	}

	log.Info("shutdown complete")
	time.Sleep(10 * time.Millisecond) // let zap flush async cores
	return nil
}
