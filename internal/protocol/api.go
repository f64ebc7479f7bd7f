// Package protocol defines the API request/response types shared by the
// server and the client.
package protocol

import (
	"encoding/hex"

	"github.com/driftsync/driftsync/internal/metadata"
	"github.com/driftsync/driftsync/internal/sync"
)

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// RegisterRequest is the body for POST /api/v1/clients.
type RegisterRequest struct {
	PreferredID string `json:"preferred_id,omitempty"`
}

// RegisterResponse is returned by POST /api/v1/clients.
type RegisterResponse struct {
	ClientID string `json:"client_id"`
}

// StartSessionRequest is the body for POST /api/v1/sessions.
type StartSessionRequest struct {
	ClientID string `json:"client_id"`
}

// StartSessionResponse carries the new session plus the server's snapshot,
// so a client can diff locally before uploading.
type StartSessionResponse struct {
	Session  sync.SessionInfo        `json:"session"`
	Snapshot []metadata.FileMetadata `json:"snapshot"`
}

// DiffRequest is the body for POST /api/v1/sessions/{id}/diff.
type DiffRequest struct {
	Snapshot []metadata.FileMetadata `json:"snapshot"`
}

// DiffResponse mirrors sync.DiffResponse.
type DiffResponse = sync.DiffResponse

// ChunkRequest is the body for POST /api/v1/sessions/{id}/chunks. Chunk
// bytes travel hex-encoded, matching the download encoding.
type ChunkRequest struct {
	FilePath    string `json:"file_path"`
	ChunkIndex  uint32 `json:"chunk_index"`
	TotalChunks uint32 `json:"total_chunks"`
	ChunkSize   uint32 `json:"chunk_size"`
	DataHex     string `json:"data_hex"`
	ChunkHash   string `json:"chunk_hash"`
}

// Envelope converts the wire form into a transfer envelope.
func (r ChunkRequest) Envelope(sessionID string) (sync.ChunkEnvelope, error) {
	data, err := hex.DecodeString(r.DataHex)
	if err != nil {
		return sync.ChunkEnvelope{}, err
	}
	return sync.ChunkEnvelope{
		SessionID:   sessionID,
		FilePath:    r.FilePath,
		ChunkIndex:  r.ChunkIndex,
		TotalChunks: r.TotalChunks,
		ChunkSize:   r.ChunkSize,
		Data:        data,
		ChunkHash:   r.ChunkHash,
	}, nil
}

// FromEnvelope converts a transfer envelope into its wire form.
func FromEnvelope(env sync.ChunkEnvelope) ChunkRequest {
	return ChunkRequest{
		FilePath:    env.FilePath,
		ChunkIndex:  env.ChunkIndex,
		TotalChunks: env.TotalChunks,
		ChunkSize:   env.ChunkSize,
		DataHex:     hex.EncodeToString(env.Data),
		ChunkHash:   env.ChunkHash,
	}
}

// ChunkAck acknowledges a persisted chunk.
type ChunkAck struct {
	FilePath   string `json:"file_path"`
	ChunkIndex uint32 `json:"chunk_index"`
	Accepted   bool   `json:"accepted"`
}

// FinalizeRequest is the body for POST /api/v1/sessions/{id}/finalize.
type FinalizeRequest struct {
	FilePath     string `json:"file_path"`
	ExpectedHash string `json:"expected_hash"`
}

// FinalizeResponse returns the authoritative metadata after promotion.
type FinalizeResponse struct {
	Metadata metadata.FileMetadata `json:"metadata"`
}

// DownloadResponse is returned by GET /api/v1/download/{path}. File bytes
// travel hex-encoded through the call surface.
type DownloadResponse struct {
	FilePath string `json:"file_path"`
	Size     uint64 `json:"size"`
	DataHex  string `json:"data_hex"`
}

// SnapshotResponse is returned by GET /api/v1/metadata.
type SnapshotResponse struct {
	Files []metadata.FileMetadata `json:"files"`
}
