// Package metrics provides Prometheus metrics for the driftsync server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	filesAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_files_added_total",
		Help: "Total files added to the metadata store",
	})

	filesModified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_files_modified_total",
		Help: "Total file modifications recorded",
	})

	filesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_files_deleted_total",
		Help: "Total file deletions recorded",
	})

	filesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_files_uploaded_total",
		Help: "Total completed file uploads",
	})

	bytesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_bytes_uploaded_total",
		Help: "Total bytes promoted into the data root",
	})

	filesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_files_downloaded_total",
		Help: "Total completed file downloads",
	})

	bytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_bytes_downloaded_total",
		Help: "Total bytes served to clients",
	})

	chunksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_chunks_received_total",
		Help: "Total chunks accepted into staging",
	})

	conflictsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_conflicts_detected_total",
		Help: "Total conflicts detected between replicas",
	})

	conflictsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftsync_conflicts_resolved_total",
		Help: "Total conflicts resolved",
	})

	syncSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftsync_sync_sessions_total",
		Help: "Total sync sessions by outcome",
	}, []string{"outcome"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftsync_sessions_active",
		Help: "Sessions currently tracked by the sync service",
	})

	storeSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftsync_metadata_store_size",
		Help: "Number of records in the metadata store",
	})

	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "driftsync_upload_duration_seconds",
		Help:    "Time from session start to upload finalize",
		Buckets: prometheus.DefBuckets,
	})
)

func RecordFileAdded()        { filesAdded.Inc() }
func RecordFileModified()     { filesModified.Inc() }
func RecordFileDeleted()      { filesDeleted.Inc() }
func RecordChunkReceived()    { chunksReceived.Inc() }
func RecordConflictDetected() { conflictsDetected.Inc() }
func RecordConflictResolved() { conflictsResolved.Inc() }

func RecordSessionStarted()   { syncSessions.WithLabelValues("started").Inc() }
func RecordSessionCompleted() { syncSessions.WithLabelValues("completed").Inc() }
func RecordSessionFailed()    { syncSessions.WithLabelValues("failed").Inc() }

func SetSessionsActive(n int) { sessionsActive.Set(float64(n)) }
func SetStoreSize(n int)      { storeSize.Set(float64(n)) }

func ObserveUploadSeconds(s float64) { uploadDuration.Observe(s) }

func RecordUpload(bytes uint64) {
	filesUploaded.Inc()
	bytesUploaded.Add(float64(bytes))
}

func RecordDownload(bytes uint64) {
	filesDownloaded.Inc()
	bytesDownloaded.Add(float64(bytes))
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
