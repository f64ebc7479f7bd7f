// Package events defines the lifecycle events published by the sync engine
// and the type-indexed bus that fans them out to observers.
package events

import (
	"time"

	"github.com/driftsync/driftsync/internal/metadata"
)

// Event is implemented by every concrete event type. The timestamp is
// captured once at construction and never mutated.
type Event interface {
	OccurredAt() time.Time
}

type stamp struct {
	Timestamp time.Time `json:"timestamp"`
}

func (s stamp) OccurredAt() time.Time { return s.Timestamp }

func now() stamp { return stamp{Timestamp: time.Now()} }

// ConflictStrategy selects how competing metadata records are reconciled.
type ConflictStrategy uint8

const (
	LastWriteWins ConflictStrategy = iota
	Manual
	Merge
)

func (s ConflictStrategy) String() string {
	switch s {
	case LastWriteWins:
		return "last-write-wins"
	case Manual:
		return "manual"
	case Merge:
		return "merge"
	default:
		return "unknown"
	}
}

// FileAdded is emitted when a file's metadata first enters the system.
type FileAdded struct {
	stamp
	Metadata metadata.FileMetadata
	Source   string // "sync", "http", "watcher"
}

func NewFileAdded(m metadata.FileMetadata, source string) FileAdded {
	return FileAdded{stamp: now(), Metadata: m, Source: source}
}

// FileModified is emitted when an existing file's content changes.
type FileModified struct {
	stamp
	FilePath string
	OldHash  string
	NewHash  string
	OldSize  uint64
	NewSize  uint64
	Source   string
}

func NewFileModified(path, oldHash, newHash string, oldSize, newSize uint64, source string) FileModified {
	return FileModified{stamp: now(), FilePath: path, OldHash: oldHash, NewHash: newHash,
		OldSize: oldSize, NewSize: newSize, Source: source}
}

// FileDeleted is emitted when a file's metadata is removed.
type FileDeleted struct {
	stamp
	FilePath     string
	LastMetadata metadata.FileMetadata
	Source       string
}

func NewFileDeleted(path string, last metadata.FileMetadata, source string) FileDeleted {
	return FileDeleted{stamp: now(), FilePath: path, LastMetadata: last, Source: source}
}

// FileUploadStarted is emitted on the first chunk received for a path.
type FileUploadStarted struct {
	stamp
	SessionID  string
	FilePath   string
	TotalBytes uint64
}

func NewFileUploadStarted(sessionID, path string, totalBytes uint64) FileUploadStarted {
	return FileUploadStarted{stamp: now(), SessionID: sessionID, FilePath: path, TotalBytes: totalBytes}
}

// FileChunkReceived is emitted after a chunk is staged.
type FileChunkReceived struct {
	stamp
	SessionID     string
	FilePath      string
	ChunkIndex    uint32
	TotalChunks   uint32
	BytesReceived int
}

func NewFileChunkReceived(sessionID, path string, index, total uint32, n int) FileChunkReceived {
	return FileChunkReceived{stamp: now(), SessionID: sessionID, FilePath: path,
		ChunkIndex: index, TotalChunks: total, BytesReceived: n}
}

// FileUploadCompleted is emitted after finalize promotes a file.
type FileUploadCompleted struct {
	stamp
	SessionID  string
	FilePath   string
	Hash       string
	TotalBytes uint64
	Duration   time.Duration
}

func NewFileUploadCompleted(sessionID, path, hash string, totalBytes uint64, d time.Duration) FileUploadCompleted {
	return FileUploadCompleted{stamp: now(), SessionID: sessionID, FilePath: path,
		Hash: hash, TotalBytes: totalBytes, Duration: d}
}

// FileDownloadCompleted is emitted after file content is served to a client.
type FileDownloadCompleted struct {
	stamp
	SessionID  string
	FilePath   string
	TotalBytes uint64
}

func NewFileDownloadCompleted(sessionID, path string, totalBytes uint64) FileDownloadCompleted {
	return FileDownloadCompleted{stamp: now(), SessionID: sessionID, FilePath: path, TotalBytes: totalBytes}
}

// FileConflictDetected is emitted when two replicas disagree about a path.
type FileConflictDetected struct {
	stamp
	SessionID string
	Local     metadata.FileMetadata
	Remote    metadata.FileMetadata
}

func NewFileConflictDetected(sessionID string, local, remote metadata.FileMetadata) FileConflictDetected {
	return FileConflictDetected{stamp: now(), SessionID: sessionID, Local: local, Remote: remote}
}

// FileConflictResolved is emitted after a resolver picks a winner.
type FileConflictResolved struct {
	stamp
	SessionID string
	Resolved  metadata.FileMetadata
	Other     metadata.FileMetadata
	Strategy  ConflictStrategy
}

func NewFileConflictResolved(sessionID string, resolved, other metadata.FileMetadata, strategy ConflictStrategy) FileConflictResolved {
	return FileConflictResolved{stamp: now(), SessionID: sessionID, Resolved: resolved, Other: other, Strategy: strategy}
}

// SyncStarted is emitted when a client opens a session.
type SyncStarted struct {
	stamp
	ClientID  string
	FileCount int
}

func NewSyncStarted(clientID string, fileCount int) SyncStarted {
	return SyncStarted{stamp: now(), ClientID: clientID, FileCount: fileCount}
}

// SyncCompleted is emitted when a session reaches Complete.
type SyncCompleted struct {
	stamp
	ClientID    string
	FilesSynced int
	Duration    time.Duration
}

func NewSyncCompleted(clientID string, filesSynced int, d time.Duration) SyncCompleted {
	return SyncCompleted{stamp: now(), ClientID: clientID, FilesSynced: filesSynced, Duration: d}
}

// SyncFailed is emitted when a session aborts.
type SyncFailed struct {
	stamp
	ClientID string
	Reason   string
}

func NewSyncFailed(clientID, reason string) SyncFailed {
	return SyncFailed{stamp: now(), ClientID: clientID, Reason: reason}
}

// ServerStarted is emitted once the listener is up.
type ServerStarted struct {
	stamp
	Addr string
}

func NewServerStarted(addr string) ServerStarted {
	return ServerStarted{stamp: now(), Addr: addr}
}

// ServerShuttingDown is emitted when shutdown begins.
type ServerShuttingDown struct {
	stamp
	Reason string
}

func NewServerShuttingDown(reason string) ServerShuttingDown {
	return ServerShuttingDown{stamp: now(), Reason: reason}
}
