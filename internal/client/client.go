// Package client provides the HTTP client used by syncctl to drive a sync
// exchange against a driftsync server.
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/driftsync/driftsync/internal/metadata"
	"github.com/driftsync/driftsync/internal/protocol"
	"github.com/driftsync/driftsync/internal/sync"
)

// Client talks to one driftsync server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	transfer   sync.Transfer
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Register allocates a client id, using preferredID when available.
func (c *Client) Register(ctx context.Context, preferredID string) (string, error) {
	var resp protocol.RegisterResponse
	err := c.post(ctx, "/api/v1/clients", protocol.RegisterRequest{PreferredID: preferredID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ClientID, nil
}

// StartSession opens a sync session and returns it with the server snapshot.
func (c *Client) StartSession(ctx context.Context, clientID string) (protocol.StartSessionResponse, error) {
	var resp protocol.StartSessionResponse
	err := c.post(ctx, "/api/v1/sessions", protocol.StartSessionRequest{ClientID: clientID}, &resp)
	return resp, err
}

// ComputeDiff submits the local snapshot and returns the action lists.
func (c *Client) ComputeDiff(ctx context.Context, sessionID string, snapshot []metadata.FileMetadata) (protocol.DiffResponse, error) {
	var resp protocol.DiffResponse
	err := c.post(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/diff",
		protocol.DiffRequest{Snapshot: snapshot}, &resp)
	return resp, err
}

// UploadFile chunks the local file at source and streams every chunk to the
// server, then finalizes against expectedHash.
func (c *Client) UploadFile(ctx context.Context, sessionID, logicalPath, source, expectedHash string, chunkSize int64) (metadata.FileMetadata, error) {
	sink := func(env sync.ChunkEnvelope) error {
		var ack protocol.ChunkAck
		return c.post(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/chunks",
			protocol.FromEnvelope(env), &ack)
	}
	if err := c.transfer.UploadFile(source, sessionID, logicalPath, sink, chunkSize); err != nil {
		return metadata.FileMetadata{}, err
	}

	var resp protocol.FinalizeResponse
	err := c.post(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/finalize",
		protocol.FinalizeRequest{FilePath: logicalPath, ExpectedHash: expectedHash}, &resp)
	if err != nil {
		return metadata.FileMetadata{}, err
	}
	return resp.Metadata, nil
}

// Download fetches the authoritative bytes for a logical path.
func (c *Client) Download(ctx context.Context, sessionID, logicalPath string) ([]byte, error) {
	endpoint := "/api/v1/download/" + logicalPath
	if sessionID != "" {
		endpoint += "?session_id=" + url.QueryEscape(sessionID)
	}
	var resp protocol.DownloadResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return hex.DecodeString(resp.DataHex)
}

// SessionStatus fetches the session's current state.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (sync.SessionInfo, error) {
	var info sync.SessionInfo
	err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID), &info)
	return info, err
}

// ServerSnapshot fetches the server's full metadata listing.
func (c *Client) ServerSnapshot(ctx context.Context) ([]metadata.FileMetadata, error) {
	var resp protocol.SnapshotResponse
	if err := c.get(ctx, "/api/v1/metadata", &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr protocol.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
