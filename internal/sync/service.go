package sync

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftsync/driftsync/internal/digest"
	"github.com/driftsync/driftsync/internal/events"
	"github.com/driftsync/driftsync/internal/logging"
	"github.com/driftsync/driftsync/internal/metadata"
	"github.com/driftsync/driftsync/internal/syncerr"
)

// DiffResponse instructs a client which actions converge both sides.
// FilesToDeleteRemote is reserved for tombstone propagation and is
// currently always empty.
type DiffResponse struct {
	FilesToUpload       []string `json:"files_to_upload"`
	FilesToDownload     []string `json:"files_to_download"`
	FilesToDeleteRemote []string `json:"files_to_delete_remote"`
}

type sessionData struct {
	session          *Session
	pendingUploads   map[string]struct{}
	startedUploads   map[string]struct{}
	totalUploadBytes uint64
	uploadedBytes    uint64
	startedAt        time.Time
}

// Service orchestrates sync sessions: it owns the sessions and clients
// tables and the staging tree, delegates chunk I/O to Transfer, and emits
// lifecycle events over the bus.
//
// A single mutex serializes the in-memory session structures. Chunk and
// finalize I/O run outside the lock, so sessions progress concurrently.
type Service struct {
	store    *metadata.Store
	bus      *events.Bus
	transfer Transfer

	dataRoot    string
	stagingRoot string

	mu             gosync.Mutex
	clients        map[string]struct{}
	sessions       map[string]*sessionData
	clientCounter  uint64
	sessionCounter uint64
}

// NewService creates a service rooted at dataRoot/stagingRoot, creating
// both directories. The two roots must live on the same filesystem for the
// finalize rename to be atomic.
func NewService(dataRoot, stagingRoot string, bus *events.Bus, store *metadata.Store) (*Service, error) {
	for _, dir := range []string{dataRoot, stagingRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create root %s: %w", dir, err)
		}
	}
	return &Service{
		store:       store,
		bus:         bus,
		dataRoot:    dataRoot,
		stagingRoot: stagingRoot,
		clients:     make(map[string]struct{}),
		sessions:    make(map[string]*sessionData),
	}, nil
}

// Store returns the metadata store backing this service.
func (s *Service) Store() *metadata.Store { return s.store }

// RegisterClient allocates a unique client id. A non-empty preferred id is
// used as-is when free; otherwise a counter suffix is appended until the
// candidate is unique.
func (s *Service) RegisterClient(preferredID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clientCounter++
	candidate := preferredID
	if candidate == "" {
		candidate = fmt.Sprintf("client-%d", s.clientCounter)
	}
	for _, taken := s.clients[candidate]; taken; _, taken = s.clients[candidate] {
		s.clientCounter++
		candidate = fmt.Sprintf("%s-%d", preferredOrClient(preferredID), s.clientCounter)
	}
	s.clients[candidate] = struct{}{}
	return candidate
}

func preferredOrClient(preferredID string) string {
	if preferredID == "" {
		return "client"
	}
	return preferredID
}

// StartSession opens a new session for a registered client and emits
// SyncStarted.
func (s *Service) StartSession(clientID string) (SessionInfo, error) {
	s.mu.Lock()
	if _, ok := s.clients[clientID]; !ok {
		s.mu.Unlock()
		return SessionInfo{}, syncerr.NotFound("client", clientID)
	}
	s.sessionCounter++
	sessionID := fmt.Sprintf("session-%d", s.sessionCounter)
	sess := NewSession(sessionID, clientID)
	if err := sess.Start(0, 0); err != nil {
		s.mu.Unlock()
		return SessionInfo{}, err
	}
	data := &sessionData{
		session:        sess,
		pendingUploads: make(map[string]struct{}),
		startedUploads: make(map[string]struct{}),
		startedAt:      time.Now(),
	}
	s.sessions[sessionID] = data
	info := sess.Info()
	s.mu.Unlock()

	s.bus.Emit(events.NewSyncStarted(clientID, s.store.Size()))
	return info, nil
}

// ComputeDiff compares the client snapshot against the server's current
// view and returns the upload/download/delete lists. The session moves to
// TransferringFiles with its pending-upload bookkeeping reset.
func (s *Service) ComputeDiff(sessionID string, clientSnapshot []metadata.FileMetadata) (DiffResponse, error) {
	serverSnapshot := s.store.ListAll()

	var clientTree, serverTree MerkleTree
	clientTree.Build(clientSnapshot)
	serverTree.Build(serverSnapshot)
	differing := clientTree.Diff(&serverTree)

	clientByPath := snapshotMap(clientSnapshot)
	serverByPath := snapshotMap(serverSnapshot)

	var resp DiffResponse
	resp.FilesToDeleteRemote = []string{}
	var totalUploadBytes uint64
	download := make(map[string]struct{})

	for _, path := range differing {
		clientMeta, clientHas := clientByPath[path]
		serverMeta, serverHas := serverByPath[path]
		switch {
		case clientHas && (!serverHas || clientMeta.Hash != serverMeta.Hash):
			resp.FilesToUpload = append(resp.FilesToUpload, path)
			totalUploadBytes += clientMeta.Size
		case !clientHas && serverHas:
			download[path] = struct{}{}
		}
	}
	// Server-only paths the Merkle walk already covered land here too; the
	// set keeps the download list free of duplicates.
	for path := range serverByPath {
		if _, ok := clientByPath[path]; !ok {
			download[path] = struct{}{}
		}
	}
	for _, path := range sortedKeys(download) {
		resp.FilesToDownload = append(resp.FilesToDownload, path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.findSession(sessionID)
	if err != nil {
		return DiffResponse{}, err
	}

	data.pendingUploads = make(map[string]struct{}, len(resp.FilesToUpload))
	for _, path := range resp.FilesToUpload {
		data.pendingUploads[path] = struct{}{}
	}
	data.startedUploads = make(map[string]struct{})
	data.totalUploadBytes = totalUploadBytes
	data.uploadedBytes = 0

	data.session.UpdatePending(len(data.pendingUploads), totalUploadBytes)
	if err := data.session.TransitionTo(StateRequestingMetadata); err != nil {
		return DiffResponse{}, err
	}
	if err := data.session.TransitionTo(StateTransferringFiles); err != nil {
		return DiffResponse{}, err
	}
	return resp, nil
}

// IngestChunk validates and stages one uploaded chunk. The first chunk for
// a path emits FileUploadStarted; every staged chunk emits
// FileChunkReceived. A staging failure fails the whole session.
func (s *Service) IngestChunk(chunk ChunkEnvelope) error {
	s.mu.Lock()
	data, err := s.findSession(chunk.SessionID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, scheduled := data.pendingUploads[chunk.FilePath]; !scheduled {
		s.mu.Unlock()
		return syncerr.InvalidInput("file not scheduled for upload: %s", chunk.FilePath)
	}
	_, alreadyStarted := data.startedUploads[chunk.FilePath]
	if !alreadyStarted {
		data.startedUploads[chunk.FilePath] = struct{}{}
	}
	clientID := data.session.ClientID()
	s.mu.Unlock()

	if !alreadyStarted {
		s.bus.Emit(events.NewFileUploadStarted(chunk.SessionID, chunk.FilePath,
			uint64(chunk.TotalChunks)*uint64(chunk.ChunkSize)))
	}

	if err := s.transfer.ApplyChunk(chunk, s.stagingRoot); err != nil {
		s.failSession(chunk.SessionID, clientID, err)
		return err
	}

	s.bus.Emit(events.NewFileChunkReceived(chunk.SessionID, chunk.FilePath,
		chunk.ChunkIndex, chunk.TotalChunks, len(chunk.Data)))
	return nil
}

// FinalizeUpload validates the assembled file end-to-end, promotes it into
// the data root, bumps the client's replica version, and updates the store.
// When the last pending upload finalizes the session completes.
func (s *Service) FinalizeUpload(sessionID, filePath, expectedHash string) (metadata.FileMetadata, error) {
	s.mu.Lock()
	data, err := s.findSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return metadata.FileMetadata{}, err
	}
	clientID := data.session.ClientID()
	startedAt := data.startedAt
	s.mu.Unlock()

	if err := s.transfer.FinalizeFile(sessionID, filePath, s.stagingRoot, s.dataRoot, expectedHash); err != nil {
		s.failSession(sessionID, clientID, err)
		return metadata.FileMetadata{}, err
	}

	newMeta, err := s.metadataFromDisk(filePath)
	if err != nil {
		s.failSession(sessionID, clientID, err)
		return metadata.FileMetadata{}, err
	}
	if newMeta.Hash != expectedHash {
		err := syncerr.Integrity("hash mismatch after finalize for %s", filePath)
		s.failSession(sessionID, clientID, err)
		return metadata.FileMetadata{}, err
	}

	previous, prevErr := s.store.Get(filePath)
	hadPrevious := prevErr == nil

	nextVersion := uint32(1)
	if hadPrevious {
		newMeta.Replicas = previous.Replicas
		newMeta.CreatedTime = previous.CreatedTime
		if replica, ok := previous.Replica(clientID); ok {
			nextVersion = replica.Version + 1
		}
	}
	newMeta.UpdateReplica(clientID, nextVersion, newMeta.ModifiedTime)

	if hadPrevious {
		s.bus.Emit(events.NewFileModified(filePath, previous.Hash, newMeta.Hash,
			previous.Size, newMeta.Size, "sync"))
	} else {
		s.bus.Emit(events.NewFileAdded(newMeta, "sync"))
	}

	s.store.Upsert(newMeta)

	s.bus.Emit(events.NewFileUploadCompleted(sessionID, filePath, newMeta.Hash,
		newMeta.Size, time.Since(startedAt)))

	s.mu.Lock()
	data, err = s.findSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return metadata.FileMetadata{}, err
	}
	delete(data.pendingUploads, filePath)
	delete(data.startedUploads, filePath)
	data.uploadedBytes += newMeta.Size
	remaining := data.totalUploadBytes
	if data.uploadedBytes < remaining {
		remaining -= data.uploadedBytes
	} else {
		remaining = 0
	}
	data.session.UpdatePending(len(data.pendingUploads), remaining)

	var completed bool
	if len(data.pendingUploads) == 0 {
		if err := data.session.TransitionTo(StateApplyingChanges); err != nil {
			s.mu.Unlock()
			return metadata.FileMetadata{}, err
		}
		if err := data.session.TransitionTo(StateComplete); err != nil {
			s.mu.Unlock()
			return metadata.FileMetadata{}, err
		}
		completed = true
	}
	s.mu.Unlock()

	if completed {
		s.bus.Emit(events.NewSyncCompleted(clientID, s.store.Size(), time.Since(startedAt)))
	}
	return newMeta, nil
}

// SessionInfo returns a snapshot of the session's current state.
func (s *Service) SessionInfo(sessionID string) (SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.findSession(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	return data.session.Info(), nil
}

// SessionCount returns the number of tracked sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ReadFile returns the authoritative bytes for a logical path.
func (s *Service) ReadFile(filePath string) ([]byte, error) {
	absolute := filepath.Join(s.dataRoot, filepath.FromSlash(filePath))
	data, err := os.ReadFile(absolute)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syncerr.NotFound("file", filePath)
		}
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	return data, nil
}

// ReadFileHex returns the complete file contents hex-encoded, the symmetric
// server-to-client transfer encoding.
func (s *Service) ReadFileHex(filePath string) (string, error) {
	data, err := s.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(data), nil
}

// EvictExpired drops terminal sessions whose last transition is older than
// ttl. It returns the number of sessions evicted.
func (s *Service) EvictExpired(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, data := range s.sessions {
		if data.session.State().Terminal() && data.session.LastTransition().Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartJanitor evicts expired sessions every ttl/2 until ctx is cancelled.
func (s *Service) StartJanitor(ctx context.Context, ttl time.Duration) {
	interval := ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.EvictExpired(ttl); n > 0 {
					logging.Debug("evicted expired sessions", zap.Int("count", n))
				}
			}
		}
	}()
}

func (s *Service) failSession(sessionID, clientID string, cause error) {
	s.mu.Lock()
	if data, err := s.findSession(sessionID); err == nil {
		_ = data.session.MarkFailed(cause.Error())
	}
	s.mu.Unlock()
	s.bus.Emit(events.NewSyncFailed(clientID, cause.Error()))
}

func (s *Service) findSession(sessionID string) (*sessionData, error) {
	data, ok := s.sessions[sessionID]
	if !ok {
		return nil, syncerr.NotFound("session", sessionID)
	}
	return data, nil
}

func (s *Service) metadataFromDisk(filePath string) (metadata.FileMetadata, error) {
	absolute := filepath.Join(s.dataRoot, filepath.FromSlash(filePath))
	info, err := os.Stat(absolute)
	if err != nil {
		return metadata.FileMetadata{}, fmt.Errorf("stat %s: %w", filePath, err)
	}
	hash, err := digest.File(absolute)
	if err != nil {
		return metadata.FileMetadata{}, fmt.Errorf("hash %s: %w", filePath, err)
	}
	mtime := info.ModTime().Unix()
	return metadata.FileMetadata{
		FilePath:     filePath,
		Hash:         hash,
		Size:         uint64(info.Size()),
		ModifiedTime: mtime,
		CreatedTime:  mtime,
		SyncState:    metadata.StateSynced,
	}, nil
}

func snapshotMap(snapshot []metadata.FileMetadata) map[string]metadata.FileMetadata {
	out := make(map[string]metadata.FileMetadata, len(snapshot))
	for _, m := range snapshot {
		out[m.FilePath] = m
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
