// Package observer provides bus subscribers that derive views from sync
// events: structured logging, metrics, a downstream sync queue, and an
// optional S3 mirror of promoted content.
package observer

import (
	"go.uber.org/zap"

	"github.com/driftsync/driftsync/internal/events"
	"github.com/driftsync/driftsync/internal/logging"
)

// Logger writes one structured record per event. It stays subscribed for
// the life of the bus.
type Logger struct{}

// NewLogger subscribes to every event type on bus.
func NewLogger(bus *events.Bus) *Logger {
	events.Subscribe(bus, func(e events.FileAdded) {
		logging.Info("file added",
			zap.String("path", e.Metadata.FilePath),
			zap.String("hash", e.Metadata.Hash),
			zap.Uint64("size", e.Metadata.Size),
			zap.String("source", e.Source))
	})

	events.Subscribe(bus, func(e events.FileModified) {
		logging.Info("file modified",
			zap.String("path", e.FilePath),
			zap.String("old_hash", e.OldHash),
			zap.String("new_hash", e.NewHash),
			zap.Uint64("old_size", e.OldSize),
			zap.Uint64("new_size", e.NewSize),
			zap.String("source", e.Source))
	})

	events.Subscribe(bus, func(e events.FileDeleted) {
		logging.Info("file deleted",
			zap.String("path", e.FilePath),
			zap.String("source", e.Source))
	})

	events.Subscribe(bus, func(e events.FileUploadStarted) {
		logging.Info("upload started",
			zap.String("session", e.SessionID),
			zap.String("path", e.FilePath),
			zap.Uint64("total_bytes", e.TotalBytes))
	})

	events.Subscribe(bus, func(e events.FileChunkReceived) {
		logging.Debug("chunk received",
			zap.String("session", e.SessionID),
			zap.String("path", e.FilePath),
			zap.Uint32("chunk", e.ChunkIndex+1),
			zap.Uint32("total", e.TotalChunks),
			zap.Int("bytes", e.BytesReceived))
	})

	events.Subscribe(bus, func(e events.FileUploadCompleted) {
		logging.Info("upload completed",
			zap.String("session", e.SessionID),
			zap.String("path", e.FilePath),
			zap.String("hash", e.Hash),
			zap.Uint64("bytes", e.TotalBytes),
			zap.Duration("duration", e.Duration))
	})

	events.Subscribe(bus, func(e events.FileDownloadCompleted) {
		logging.Info("download completed",
			zap.String("session", e.SessionID),
			zap.String("path", e.FilePath),
			zap.Uint64("bytes", e.TotalBytes))
	})

	events.Subscribe(bus, func(e events.FileConflictDetected) {
		logging.Warn("conflict detected",
			zap.String("session", e.SessionID),
			zap.String("path", e.Local.FilePath),
			zap.String("local_hash", e.Local.Hash),
			zap.String("remote_hash", e.Remote.Hash))
	})

	events.Subscribe(bus, func(e events.FileConflictResolved) {
		logging.Info("conflict resolved",
			zap.String("session", e.SessionID),
			zap.String("path", e.Resolved.FilePath),
			zap.Stringer("strategy", e.Strategy),
			zap.String("winner_hash", e.Resolved.Hash))
	})

	events.Subscribe(bus, func(e events.SyncStarted) {
		logging.Info("sync started",
			zap.String("client", e.ClientID),
			zap.Int("file_count", e.FileCount))
	})

	events.Subscribe(bus, func(e events.SyncCompleted) {
		logging.Info("sync completed",
			zap.String("client", e.ClientID),
			zap.Int("files_synced", e.FilesSynced),
			zap.Duration("duration", e.Duration))
	})

	events.Subscribe(bus, func(e events.SyncFailed) {
		logging.Error("sync failed",
			zap.String("client", e.ClientID),
			zap.String("reason", e.Reason))
	})

	events.Subscribe(bus, func(e events.ServerStarted) {
		logging.Info("server started", zap.String("addr", e.Addr))
	})

	events.Subscribe(bus, func(e events.ServerShuttingDown) {
		logging.Info("server shutting down", zap.String("reason", e.Reason))
	})

	return &Logger{}
}
