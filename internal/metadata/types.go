// Package metadata defines the canonical per-file records tracked by the
// sync engine and the in-memory store that holds them.
package metadata

// SyncState tracks where a file sits in the sync lifecycle.
type SyncState uint8

const (
	StateSynced SyncState = iota
	StateModified
	StateSyncing
	StateConflict
	StateDeleted
)

var stateNames = map[SyncState]string{
	StateSynced:   "SYNCED",
	StateModified: "MODIFIED",
	StateSyncing:  "SYNCING",
	StateConflict: "CONFLICT",
	StateDeleted:  "DELETED",
}

func (s SyncState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseSyncState converts a state name to its enum value.
func ParseSyncState(s string) (SyncState, bool) {
	for state, name := range stateNames {
		if name == s {
			return state, true
		}
	}
	return StateSynced, false
}

// ReplicaInfo records one physical copy of a logical file. Version starts at
// 1 on the replica's first write and increments by exactly 1 on each
// successful finalize by that replica.
type ReplicaInfo struct {
	ReplicaID    string `json:"replica_id"`
	Version      uint32 `json:"version"`
	ModifiedTime int64  `json:"modified_time"`
}

// FileMetadata is the canonical record for one logical file. FilePath is the
// primary key across the store; Hash describes the bytes persisted under the
// data root once the file reaches StateSynced.
type FileMetadata struct {
	FilePath     string        `json:"file_path"`
	Hash         string        `json:"hash"`
	Size         uint64        `json:"size"`
	ModifiedTime int64         `json:"modified_time"`
	CreatedTime  int64         `json:"created_time"`
	SyncState    SyncState     `json:"sync_state"`
	Replicas     []ReplicaInfo `json:"replicas,omitempty"`
}

// Replica returns the entry for replicaID, if present.
func (m *FileMetadata) Replica(replicaID string) (ReplicaInfo, bool) {
	for _, r := range m.Replicas {
		if r.ReplicaID == replicaID {
			return r, true
		}
	}
	return ReplicaInfo{}, false
}

// UpdateReplica sets the version and modified time for replicaID, appending
// a new entry if the replica has no prior record.
func (m *FileMetadata) UpdateReplica(replicaID string, version uint32, mtime int64) {
	for i := range m.Replicas {
		if m.Replicas[i].ReplicaID == replicaID {
			m.Replicas[i].Version = version
			m.Replicas[i].ModifiedTime = mtime
			return
		}
	}
	m.Replicas = append(m.Replicas, ReplicaInfo{ReplicaID: replicaID, Version: version, ModifiedTime: mtime})
}

// Clone returns a deep copy. Records cross component boundaries by value so
// callers can never mutate store state through a returned record.
func (m FileMetadata) Clone() FileMetadata {
	out := m
	if m.Replicas != nil {
		out.Replicas = make([]ReplicaInfo, len(m.Replicas))
		copy(out.Replicas, m.Replicas)
	}
	return out
}

// NewerThan reports whether this record was modified after other.
func (m *FileMetadata) NewerThan(other *FileMetadata) bool {
	return m.ModifiedTime > other.ModifiedTime
}
