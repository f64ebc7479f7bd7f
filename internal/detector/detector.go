// Package detector scans a workspace and emits versioned add/modify/delete
// changes against a previously persisted snapshot.
package detector

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/driftsync/driftsync/internal/digest"
	"github.com/driftsync/driftsync/internal/metadata"
)

// ChangeKind classifies a detected change.
type ChangeKind uint8

const (
	Added ChangeKind = iota
	Modified
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileChange is one discovered change. For deletions CurrentMetadata is a
// tombstone with state DELETED. BaseVersion and BaseHash record what the
// replica started editing from.
type FileChange struct {
	Kind             ChangeKind
	Path             string
	CurrentMetadata  metadata.FileMetadata
	PreviousMetadata *metadata.FileMetadata
	BaseVersion      uint32
	BaseHash         string
}

// ChangeSet is the result of one scan: the discovered changes plus the full
// post-scan snapshot, suitable for persistence.
type ChangeSet struct {
	Changes  []FileChange
	Snapshot []metadata.FileMetadata
}

// Detector compares a directory tree against its last known snapshot. It is
// not goroutine-safe; drive it from one goroutine (the Watcher does).
type Detector struct {
	replicaID string
	known     map[string]metadata.FileMetadata
}

// New creates a detector for the given replica identity.
func New(replicaID string) *Detector {
	return &Detector{
		replicaID: replicaID,
		known:     make(map[string]metadata.FileMetadata),
	}
}

// ReplicaID returns the device identity this detector stamps on changes.
func (d *Detector) ReplicaID() string { return d.replicaID }

// LoadSnapshot replaces the known set with a previously persisted snapshot.
func (d *Detector) LoadSnapshot(snapshot []metadata.FileMetadata) {
	d.known = make(map[string]metadata.FileMetadata, len(snapshot))
	for _, m := range snapshot {
		d.known[m.FilePath] = m.Clone()
	}
}

// KnownFiles returns a copy of the internal snapshot.
func (d *Detector) KnownFiles() []metadata.FileMetadata {
	out := make([]metadata.FileMetadata, 0, len(d.known))
	for _, m := range d.known {
		out = append(out, m.Clone())
	}
	return out
}

// ScanDirectory walks root, compares every regular file against the known
// snapshot, and returns the changes plus the new snapshot. Files whose
// (hash, size, modified time) are unchanged are skipped; replica churn
// alone never registers as a change, so sync bookkeeping cannot feed back
// into detection.
func (d *Detector) ScanDirectory(root string) (ChangeSet, error) {
	var result ChangeSet

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return result, err
	}

	next := make(map[string]metadata.FileMetadata)

	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.Type().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		normalized := filepath.ToSlash(rel)

		current, err := d.buildMetadata(path, normalized)
		if err != nil {
			return err
		}

		old, seen := d.known[normalized]
		if !seen {
			current.SyncState = metadata.StateModified
			current.UpdateReplica(d.replicaID, 1, current.ModifiedTime)
			result.Changes = append(result.Changes, FileChange{
				Kind:            Added,
				Path:            normalized,
				CurrentMetadata: current,
			})
			next[normalized] = current
			return nil
		}

		if unchanged(old, current) {
			next[normalized] = old
			return nil
		}

		var baseVersion uint32
		if replica, ok := old.Replica(d.replicaID); ok {
			baseVersion = replica.Version
		}

		updated := current
		updated.SyncState = metadata.StateModified
		updated.Replicas = old.Clone().Replicas
		updated.UpdateReplica(d.replicaID, baseVersion+1, updated.ModifiedTime)

		prev := old.Clone()
		result.Changes = append(result.Changes, FileChange{
			Kind:             Modified,
			Path:             normalized,
			CurrentMetadata:  updated,
			PreviousMetadata: &prev,
			BaseVersion:      baseVersion,
			BaseHash:         old.Hash,
		})
		next[normalized] = updated
		return nil
	})
	if err != nil {
		return ChangeSet{}, err
	}

	// Anything known but not visited this scan was deleted.
	for path, old := range d.known {
		if _, ok := next[path]; ok {
			continue
		}
		tombstone := old.Clone()
		tombstone.SyncState = metadata.StateDeleted

		var baseVersion uint32
		if replica, ok := old.Replica(d.replicaID); ok {
			baseVersion = replica.Version
		}
		prev := old.Clone()
		result.Changes = append(result.Changes, FileChange{
			Kind:             Deleted,
			Path:             path,
			CurrentMetadata:  tombstone,
			PreviousMetadata: &prev,
			BaseVersion:      baseVersion,
			BaseHash:         old.Hash,
		})
	}

	d.known = next

	result.Snapshot = make([]metadata.FileMetadata, 0, len(next))
	for _, m := range next {
		result.Snapshot = append(result.Snapshot, m.Clone())
	}
	sort.Slice(result.Snapshot, func(i, j int) bool {
		return result.Snapshot[i].FilePath < result.Snapshot[j].FilePath
	})
	sort.Slice(result.Changes, func(i, j int) bool {
		return result.Changes[i].Path < result.Changes[j].Path
	})
	return result, nil
}

func (d *Detector) buildMetadata(absolute, relative string) (metadata.FileMetadata, error) {
	info, err := os.Stat(absolute)
	if err != nil {
		return metadata.FileMetadata{}, err
	}
	hash, err := digest.File(absolute)
	if err != nil {
		return metadata.FileMetadata{}, err
	}
	mtime := info.ModTime().Unix()
	return metadata.FileMetadata{
		FilePath:     relative,
		Hash:         hash,
		Size:         uint64(info.Size()),
		ModifiedTime: mtime,
		CreatedTime:  mtime,
		SyncState:    metadata.StateSynced,
	}, nil
}

func unchanged(old, current metadata.FileMetadata) bool {
	return old.Hash == current.Hash &&
		old.Size == current.Size &&
		old.ModifiedTime == current.ModifiedTime
}
