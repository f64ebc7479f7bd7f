package observer

import (
	"sync/atomic"

	"github.com/driftsync/driftsync/internal/events"
	"github.com/driftsync/driftsync/internal/metrics"
)

// Stats is a point-in-time copy of the metrics counters.
type Stats struct {
	FilesAdded        uint64
	FilesModified     uint64
	FilesDeleted      uint64
	FilesUploaded     uint64
	FilesDownloaded   uint64
	BytesAdded        uint64
	BytesModified     uint64
	BytesUploaded     uint64
	BytesDownloaded   uint64
	ConflictsDetected uint64
	ConflictsResolved uint64
}

// Metrics keeps atomic counters updated from events and forwards each
// observation to the Prometheus registry.
type Metrics struct {
	filesAdded        atomic.Uint64
	filesModified     atomic.Uint64
	filesDeleted      atomic.Uint64
	filesUploaded     atomic.Uint64
	filesDownloaded   atomic.Uint64
	bytesAdded        atomic.Uint64
	bytesModified     atomic.Uint64
	bytesUploaded     atomic.Uint64
	bytesDownloaded   atomic.Uint64
	conflictsDetected atomic.Uint64
	conflictsResolved atomic.Uint64
}

// NewMetrics subscribes a metrics observer on bus.
func NewMetrics(bus *events.Bus) *Metrics {
	m := &Metrics{}

	events.Subscribe(bus, func(e events.FileAdded) {
		m.filesAdded.Add(1)
		m.bytesAdded.Add(e.Metadata.Size)
		metrics.RecordFileAdded()
	})

	events.Subscribe(bus, func(e events.FileModified) {
		m.filesModified.Add(1)
		m.bytesModified.Add(e.NewSize)
		metrics.RecordFileModified()
	})

	events.Subscribe(bus, func(e events.FileDeleted) {
		m.filesDeleted.Add(1)
		metrics.RecordFileDeleted()
	})

	events.Subscribe(bus, func(e events.FileChunkReceived) {
		metrics.RecordChunkReceived()
	})

	events.Subscribe(bus, func(e events.FileUploadCompleted) {
		m.filesUploaded.Add(1)
		m.bytesUploaded.Add(e.TotalBytes)
		metrics.RecordUpload(e.TotalBytes)
		metrics.ObserveUploadSeconds(e.Duration.Seconds())
	})

	events.Subscribe(bus, func(e events.FileDownloadCompleted) {
		m.filesDownloaded.Add(1)
		m.bytesDownloaded.Add(e.TotalBytes)
		metrics.RecordDownload(e.TotalBytes)
	})

	events.Subscribe(bus, func(e events.FileConflictDetected) {
		m.conflictsDetected.Add(1)
		metrics.RecordConflictDetected()
	})

	events.Subscribe(bus, func(e events.FileConflictResolved) {
		m.conflictsResolved.Add(1)
		metrics.RecordConflictResolved()
	})

	events.Subscribe(bus, func(e events.SyncStarted) {
		metrics.RecordSessionStarted()
	})

	events.Subscribe(bus, func(e events.SyncCompleted) {
		metrics.RecordSessionCompleted()
	})

	events.Subscribe(bus, func(e events.SyncFailed) {
		metrics.RecordSessionFailed()
	})

	return m
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		FilesAdded:        m.filesAdded.Load(),
		FilesModified:     m.filesModified.Load(),
		FilesDeleted:      m.filesDeleted.Load(),
		FilesUploaded:     m.filesUploaded.Load(),
		FilesDownloaded:   m.filesDownloaded.Load(),
		BytesAdded:        m.bytesAdded.Load(),
		BytesModified:     m.bytesModified.Load(),
		BytesUploaded:     m.bytesUploaded.Load(),
		BytesDownloaded:   m.bytesDownloaded.Load(),
		ConflictsDetected: m.conflictsDetected.Load(),
		ConflictsResolved: m.conflictsResolved.Load(),
	}
}
