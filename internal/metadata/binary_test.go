package metadata

import (
	"errors"
	"testing"

	"github.com/driftsync/driftsync/internal/syncerr"
)

func TestBinaryRoundTrip(t *testing.T) {
	m := FileMetadata{
		FilePath:     "docs/project.txt",
		Hash:         "a1b2c3d4e5f60718",
		Size:         1024,
		ModifiedTime: 1704096000,
		CreatedTime:  -7200, // pre-epoch times survive the signed encoding
		SyncState:    StateConflict,
		Replicas: []ReplicaInfo{
			{ReplicaID: "laptop-1", Version: 5, ModifiedTime: 1704096000},
			{ReplicaID: "phone-1", Version: 4, ModifiedTime: 1703000000},
		},
	}

	encoded := MarshalBinary(m)
	decoded, consumed, err := UnmarshalBinary(encoded)
	if err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if consumed != len(encoded) {
		t.Errorf("consumed %d of %d bytes", consumed, len(encoded))
	}
	if decoded.FilePath != m.FilePath || decoded.Hash != m.Hash ||
		decoded.Size != m.Size || decoded.ModifiedTime != m.ModifiedTime ||
		decoded.CreatedTime != m.CreatedTime || decoded.SyncState != m.SyncState {
		t.Errorf("decoded %+v, want %+v", decoded, m)
	}
	if len(decoded.Replicas) != 2 || decoded.Replicas[1] != m.Replicas[1] {
		t.Errorf("replicas %+v, want %+v", decoded.Replicas, m.Replicas)
	}
}

func TestBinaryEmptyReplicas(t *testing.T) {
	m := FileMetadata{FilePath: "x", Hash: "cbf29ce484222325", SyncState: StateDeleted}
	decoded, _, err := UnmarshalBinary(MarshalBinary(m))
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Replicas) != 0 || decoded.SyncState != StateDeleted {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestBinaryBackToBackRecords(t *testing.T) {
	a := FileMetadata{FilePath: "a.txt", Hash: "00000000000000aa"}
	b := FileMetadata{FilePath: "b.txt", Hash: "00000000000000bb"}
	buf := append(MarshalBinary(a), MarshalBinary(b)...)

	first, n, err := UnmarshalBinary(buf)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := UnmarshalBinary(buf[n:])
	if err != nil {
		t.Fatal(err)
	}
	if first.FilePath != "a.txt" || second.FilePath != "b.txt" {
		t.Errorf("got %q then %q", first.FilePath, second.FilePath)
	}
}

func TestBinaryUnsupportedVersion(t *testing.T) {
	buf := MarshalBinary(FileMetadata{FilePath: "x"})
	buf[0] = 0x02
	if _, _, err := UnmarshalBinary(buf); !errors.Is(err, syncerr.ErrIntegrity) {
		t.Errorf("got %v, want ErrIntegrity", err)
	}
}

func TestBinaryTruncatedBuffer(t *testing.T) {
	buf := MarshalBinary(FileMetadata{FilePath: "docs/a.txt", Hash: "00000000000000aa"})
	for _, cut := range []int{0, 1, 5, len(buf) - 1} {
		if _, _, err := UnmarshalBinary(buf[:cut]); !errors.Is(err, syncerr.ErrIntegrity) {
			t.Errorf("cut at %d: got %v, want ErrIntegrity", cut, err)
		}
	}
}

func TestBinaryUnknownSyncState(t *testing.T) {
	m := FileMetadata{FilePath: "x", Hash: "00000000000000aa"}
	buf := MarshalBinary(m)
	// sync_state byte sits right before the replica count.
	buf[len(buf)-5] = 9
	if _, _, err := UnmarshalBinary(buf); !errors.Is(err, syncerr.ErrIntegrity) {
		t.Errorf("got %v, want ErrIntegrity", err)
	}
}
