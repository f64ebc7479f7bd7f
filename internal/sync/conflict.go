package sync

import (
	"github.com/driftsync/driftsync/internal/events"
	"github.com/driftsync/driftsync/internal/metadata"
	"github.com/driftsync/driftsync/internal/syncerr"
)

// Resolution is the outcome of reconciling two competing records.
type Resolution struct {
	Resolved metadata.FileMetadata
	Other    metadata.FileMetadata
	Strategy events.ConflictStrategy
	// RequiresManual is set when the strategy cannot resolve automatically.
	RequiresManual bool
}

// Resolver picks a winner between two competing metadata records.
type Resolver struct{}

// Resolve applies strategy to (local, remote). LastWriteWins picks the
// higher modified time, breaking ties on the lexicographically higher hash;
// a full tie resolves to local, so resolution is deterministic.
func (Resolver) Resolve(local, remote metadata.FileMetadata, strategy events.ConflictStrategy) (Resolution, error) {
	switch strategy {
	case events.LastWriteWins:
		winner, loser := local, remote
		if remote.ModifiedTime > local.ModifiedTime ||
			(remote.ModifiedTime == local.ModifiedTime && remote.Hash > local.Hash) {
			winner, loser = remote, local
		}
		return Resolution{Resolved: winner, Other: loser, Strategy: strategy}, nil
	case events.Manual:
		return Resolution{RequiresManual: true, Strategy: strategy},
			syncerr.State("conflict on %s requires manual resolution", local.FilePath)
	case events.Merge:
		return Resolution{Strategy: strategy},
			syncerr.State("merge strategy not implemented")
	default:
		return Resolution{}, syncerr.InvalidInput("unknown conflict strategy %d", strategy)
	}
}
