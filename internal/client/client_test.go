package client_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/api"
	"github.com/driftsync/driftsync/internal/client"
	"github.com/driftsync/driftsync/internal/digest"
	"github.com/driftsync/driftsync/internal/events"
	"github.com/driftsync/driftsync/internal/metadata"
	"github.com/driftsync/driftsync/internal/sync"
)

func newServerAndClient(t *testing.T) (*client.Client, *sync.Service) {
	t.Helper()
	base := t.TempDir()
	bus := events.NewBus()
	svc, err := sync.NewService(filepath.Join(base, "data"), filepath.Join(base, "staging"), bus, metadata.NewStore())
	require.NoError(t, err)

	ts := httptest.NewServer(api.NewServer(svc, bus).Handler())
	t.Cleanup(ts.Close)
	return client.New(client.Config{BaseURL: ts.URL}), svc
}

func TestClientDrivesFullSync(t *testing.T) {
	c, svc := newServerAndClient(t)
	ctx := context.Background()

	clientID, err := c.Register(ctx, "workstation")
	require.NoError(t, err)
	assert.Equal(t, "workstation", clientID)

	started, err := c.StartSession(ctx, clientID)
	require.NoError(t, err)
	sessionID := started.Session.SessionID

	content := []byte("pushed through the HTTP client")
	hash := digest.Bytes(content)
	source := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(source, content, 0o644))

	diff, err := c.ComputeDiff(ctx, sessionID, []metadata.FileMetadata{{
		FilePath: "notes/local.txt", Hash: hash, Size: uint64(len(content)),
	}})
	require.NoError(t, err)
	require.Equal(t, []string{"notes/local.txt"}, diff.FilesToUpload)

	meta, err := c.UploadFile(ctx, sessionID, "notes/local.txt", source, hash, 8)
	require.NoError(t, err)
	assert.Equal(t, hash, meta.Hash)

	status, err := c.SessionStatus(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, sync.StateComplete, status.State)

	downloaded, err := c.Download(ctx, sessionID, "notes/local.txt")
	require.NoError(t, err)
	assert.Equal(t, content, downloaded)

	snapshot, err := c.ServerSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "notes/local.txt", snapshot[0].FilePath)

	// Server-side store agrees with what the client saw.
	stored, err := svc.Store().Get("notes/local.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stored.Replicas[0].Version)
}

func TestClientSurfacesServerErrors(t *testing.T) {
	c, _ := newServerAndClient(t)
	ctx := context.Background()

	_, err := c.StartSession(ctx, "never-registered")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never-registered")

	_, err = c.SessionStatus(ctx, "session-404")
	require.Error(t, err)
}
