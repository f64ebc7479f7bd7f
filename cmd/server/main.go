// driftsync server
//
// Serves the sync API: client registration, sync sessions, snapshot diffs,
// chunked uploads with staged promotion, and downloads. Structured logging
// (zap), Prometheus metrics, and an optional S3 mirror of promoted content.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/driftsync/driftsync/internal/api"
	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/events"
	"github.com/driftsync/driftsync/internal/logging"
	"github.com/driftsync/driftsync/internal/metadata"
	"github.com/driftsync/driftsync/internal/metrics"
	"github.com/driftsync/driftsync/internal/observer"
	"github.com/driftsync/driftsync/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("driftsync server starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("data_root", cfg.DataRoot),
		zap.String("staging_root", cfg.StagingRoot))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	store := metadata.NewStore()

	svc, err := sync.NewService(cfg.DataRoot, cfg.StagingRoot, bus, store)
	if err != nil {
		logging.Fatal("sync service init failed", zap.Error(err))
	}
	svc.StartJanitor(ctx, cfg.SessionTTL)

	observer.NewLogger(bus)
	observer.NewMetrics(bus)
	queue := observer.NewSyncQueue(bus)
	defer queue.Shutdown()
	go drainSyncQueue(queue)

	if cfg.S3MirrorBucket != "" {
		archiver, err := observer.NewArchiver(ctx, observer.ArchiverConfig{
			Bucket:    cfg.S3MirrorBucket,
			Prefix:    cfg.S3MirrorPrefix,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		}, bus, svc)
		if err != nil {
			logging.Fatal("s3 mirror init failed", zap.Error(err))
		}
		defer archiver.Close()
		logging.Info("s3 mirror enabled", zap.String("bucket", cfg.S3MirrorBucket))
	}

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", zap.Error(err))
		}
	}()

	apiServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(svc, bus).Handler(),
	}
	go func() {
		bus.Emit(events.NewServerStarted(cfg.ListenAddr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("api server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	bus.Emit(events.NewServerShuttingDown(sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("api shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("metrics shutdown failed", zap.Error(err))
	}
}

// drainSyncQueue consumes the queue-for-sync observer. The server has no
// downstream replicator yet, so entries are surfaced in the debug log.
func drainSyncQueue(queue *observer.SyncQueue) {
	for {
		path, ok := queue.Pop()
		if !ok {
			return
		}
		logging.Debug("queued for downstream sync", zap.String("path", path))
	}
}
