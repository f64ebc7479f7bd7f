// Package api exposes the sync engine over HTTP. Handlers translate JSON
// requests into core operations and map the error taxonomy onto status
// codes; the engine itself never sees an http.Request.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/driftsync/driftsync/internal/events"
	"github.com/driftsync/driftsync/internal/logging"
	"github.com/driftsync/driftsync/internal/metrics"
	"github.com/driftsync/driftsync/internal/protocol"
	"github.com/driftsync/driftsync/internal/sync"
	"github.com/driftsync/driftsync/internal/syncerr"
)

// Server is the HTTP front end for one sync service.
type Server struct {
	svc *sync.Service
	bus *events.Bus
}

// NewServer creates a server around svc.
func NewServer(svc *sync.Service, bus *events.Bus) *Server {
	return &Server{svc: svc, bus: bus}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/clients", s.handleRegister)
	mux.HandleFunc("POST /api/v1/sessions", s.handleStartSession)
	mux.HandleFunc("GET /api/v1/sessions/{sessionID}", s.handleSessionStatus)
	mux.HandleFunc("POST /api/v1/sessions/{sessionID}/diff", s.handleDiff)
	mux.HandleFunc("POST /api/v1/sessions/{sessionID}/chunks", s.handleChunk)
	mux.HandleFunc("POST /api/v1/sessions/{sessionID}/finalize", s.handleFinalize)
	mux.HandleFunc("GET /api/v1/download/{path...}", s.handleDownload)
	mux.HandleFunc("GET /api/v1/files/{path...}", s.handleContent)
	mux.HandleFunc("GET /api/v1/metadata", s.handleSnapshot)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	clientID := s.svc.RegisterClient(req.PreferredID)
	s.sendJSON(w, http.StatusCreated, protocol.RegisterResponse{ClientID: clientID})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req protocol.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" {
		s.sendError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	info, err := s.svc.StartSession(req.ClientID)
	if err != nil {
		s.sendCoreError(w, err)
		return
	}
	metrics.SetSessionsActive(s.svc.SessionCount())
	s.sendJSON(w, http.StatusCreated, protocol.StartSessionResponse{
		Session:  info,
		Snapshot: s.svc.Store().ListAll(),
	})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.SessionInfo(r.PathValue("sessionID"))
	if err != nil {
		s.sendCoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, info)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req protocol.DiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.svc.ComputeDiff(r.PathValue("sessionID"), req.Snapshot)
	if err != nil {
		s.sendCoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	env, err := req.Envelope(r.PathValue("sessionID"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "chunk data is not valid hex")
		return
	}
	if err := s.svc.IngestChunk(env); err != nil {
		s.sendCoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.ChunkAck{
		FilePath:   env.FilePath,
		ChunkIndex: env.ChunkIndex,
		Accepted:   true,
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req protocol.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FilePath == "" || req.ExpectedHash == "" {
		s.sendError(w, http.StatusBadRequest, "file_path and expected_hash are required")
		return
	}
	meta, err := s.svc.FinalizeUpload(r.PathValue("sessionID"), req.FilePath, req.ExpectedHash)
	if err != nil {
		s.sendCoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.FinalizeResponse{Metadata: meta})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path := cleanLogicalPath(r.PathValue("path"))
	encoded, err := s.svc.ReadFileHex(path)
	if err != nil {
		s.sendCoreError(w, err)
		return
	}
	size := uint64(len(encoded) / 2)
	s.bus.Emit(events.NewFileDownloadCompleted(r.URL.Query().Get("session_id"), path, size))
	s.sendJSON(w, http.StatusOK, protocol.DownloadResponse{
		FilePath: path,
		Size:     size,
		DataHex:  encoded,
	})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	path := cleanLogicalPath(r.PathValue("path"))
	data, err := s.svc.ReadFile(path)
	if err != nil {
		s.sendCoreError(w, err)
		return
	}
	s.bus.Emit(events.NewFileDownloadCompleted(r.URL.Query().Get("session_id"), path, uint64(len(data))))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	files := s.svc.Store().ListAll()
	metrics.SetStoreSize(len(files))
	s.sendJSON(w, http.StatusOK, protocol.SnapshotResponse{Files: files})
}

// cleanLogicalPath strips leading slashes and rejects traversal segments by
// normalizing them away; logical paths are always relative POSIX paths.
func cleanLogicalPath(p string) string {
	p = strings.TrimPrefix(p, "/")
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			continue
		}
		out = append(out, part)
	}
	return strings.Join(out, "/")
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encode response", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, msg string) {
	s.sendJSON(w, code, protocol.ErrorResponse{Error: msg, Code: code})
}

// sendCoreError maps the engine's error taxonomy onto HTTP status codes.
func (s *Server) sendCoreError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, syncerr.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, syncerr.ErrAlreadyExists), errors.Is(err, syncerr.ErrState):
		code = http.StatusConflict
	case errors.Is(err, syncerr.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, syncerr.ErrIntegrity):
		code = http.StatusUnprocessableEntity
	}
	s.sendError(w, code, err.Error())
}
