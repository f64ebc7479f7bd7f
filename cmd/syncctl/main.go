// syncctl drives a driftsync server from the command line: register a
// client, scan a workspace, push local changes, and watch for new ones.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftsync/driftsync/internal/client"
	"github.com/driftsync/driftsync/internal/detector"
	"github.com/driftsync/driftsync/internal/logging"
	"github.com/driftsync/driftsync/internal/metadata"
	"github.com/driftsync/driftsync/internal/sync"
)

var (
	serverURL    string
	replicaID    string
	snapshotPath string
	chunkSize    int64
	logLevel     string
)

func main() {
	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "driftsync client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logging.Init(logging.Config{Level: logLevel, Format: "console"})
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "driftsync server URL")
	root.PersistentFlags().StringVar(&replicaID, "replica", defaultReplicaID(), "replica identity for this device")
	root.PersistentFlags().StringVar(&snapshotPath, "snapshot", ".driftsync.snapshot", "snapshot file path (DDL format)")
	root.PersistentFlags().Int64Var(&chunkSize, "chunk-size", sync.DefaultChunkSize, "upload chunk size in bytes")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")

	root.AddCommand(newScanCmd(), newPushCmd(), newWatchCmd(), newStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultReplicaID() string {
	host, err := os.Hostname()
	if err != nil {
		return "replica-unknown"
	}
	return host
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>",
		Short: "Scan a workspace against the last snapshot and print changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := detector.New(replicaID)
			if err := loadSnapshot(d); err != nil {
				return err
			}
			set, err := d.ScanDirectory(args[0])
			if err != nil {
				return err
			}
			for _, change := range set.Changes {
				meta := change.CurrentMetadata
				fmt.Printf("%-9s %s (version %d, hash %s)\n",
					change.Kind, change.Path, changeVersion(change), meta.Hash)
			}
			if len(set.Changes) == 0 {
				fmt.Println("no changes")
			}
			return saveSnapshot(set.Snapshot)
		},
	}
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <dir>",
		Short: "Sync a workspace to the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d := detector.New(replicaID)
			if err := loadSnapshot(d); err != nil {
				return err
			}
			set, err := d.ScanDirectory(args[0])
			if err != nil {
				return err
			}
			if err := pushSnapshot(ctx, args[0], set.Snapshot); err != nil {
				return err
			}
			return saveSnapshot(set.Snapshot)
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a workspace and sync on every change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			d := detector.New(replicaID)
			if err := loadSnapshot(d); err != nil {
				return err
			}

			w := detector.NewWatcher(d, args[0], 500*time.Millisecond)
			err := w.Run(ctx, func(set detector.ChangeSet) {
				if pushErr := pushSnapshot(ctx, args[0], set.Snapshot); pushErr != nil {
					fmt.Fprintln(os.Stderr, "sync failed:", pushErr)
					return
				}
				_ = saveSnapshot(set.Snapshot)
				fmt.Printf("synced %d change(s)\n", len(set.Changes))
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the state of a sync session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(client.Config{BaseURL: serverURL})
			info, err := c.SessionStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("session %s client %s state %s pending %d files / %d bytes\n",
				info.SessionID, info.ClientID, info.State, info.FilesPending, info.BytesPending)
			if info.LastError != "" {
				fmt.Println("last error:", info.LastError)
			}
			return nil
		},
	}
}

// pushSnapshot runs one full sync exchange: session, diff, then chunked
// upload and finalize for every file the server asks for.
func pushSnapshot(ctx context.Context, root string, snapshot []metadata.FileMetadata) error {
	c := client.New(client.Config{BaseURL: serverURL})

	clientID, err := c.Register(ctx, replicaID)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	started, err := c.StartSession(ctx, clientID)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	sessionID := started.Session.SessionID

	live := make([]metadata.FileMetadata, 0, len(snapshot))
	byPath := make(map[string]metadata.FileMetadata, len(snapshot))
	for _, m := range snapshot {
		if m.SyncState == metadata.StateDeleted {
			continue
		}
		live = append(live, m)
		byPath[m.FilePath] = m
	}

	diff, err := c.ComputeDiff(ctx, sessionID, live)
	if err != nil {
		return fmt.Errorf("compute diff: %w", err)
	}

	for _, path := range diff.FilesToUpload {
		meta, ok := byPath[path]
		if !ok {
			continue
		}
		source := filepath.Join(root, filepath.FromSlash(path))
		if _, err := c.UploadFile(ctx, sessionID, path, source, meta.Hash, chunkSize); err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
	}
	return nil
}

func changeVersion(change detector.FileChange) uint32 {
	if replica, ok := change.CurrentMetadata.Replica(replicaID); ok {
		return replica.Version
	}
	return 0
}

func loadSnapshot(d *detector.Detector) error {
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	snapshot, err := metadata.ParseDDL(string(data))
	if err != nil {
		return fmt.Errorf("parse snapshot %s: %w", snapshotPath, err)
	}
	d.LoadSnapshot(snapshot)
	return nil
}

func saveSnapshot(snapshot []metadata.FileMetadata) error {
	return os.WriteFile(snapshotPath, []byte(metadata.FormatDDL(snapshot)), 0o644)
}
