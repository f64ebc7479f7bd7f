package sync

import (
	"errors"
	"testing"

	"github.com/driftsync/driftsync/internal/events"
	"github.com/driftsync/driftsync/internal/metadata"
	"github.com/driftsync/driftsync/internal/syncerr"
)

func conflicting(path string, mtime int64, hash string) metadata.FileMetadata {
	return metadata.FileMetadata{FilePath: path, ModifiedTime: mtime, Hash: hash}
}

func TestLastWriteWinsNewerWins(t *testing.T) {
	var r Resolver
	local := conflicting("a.txt", 200, "0000000000000001")
	remote := conflicting("a.txt", 100, "0000000000000002")

	res, err := r.Resolve(local, remote, events.LastWriteWins)
	if err != nil {
		t.Fatal(err)
	}
	if res.Resolved.ModifiedTime != 200 || res.Other.ModifiedTime != 100 {
		t.Errorf("resolved %+v, other %+v", res.Resolved, res.Other)
	}
	if res.RequiresManual {
		t.Error("LastWriteWins flagged manual attention")
	}

	// Symmetric: remote newer.
	res, err = r.Resolve(remote, local, events.LastWriteWins)
	if err != nil {
		t.Fatal(err)
	}
	if res.Resolved.ModifiedTime != 200 {
		t.Errorf("resolved %+v", res.Resolved)
	}
}

func TestLastWriteWinsTieBreaksOnHash(t *testing.T) {
	var r Resolver
	low := conflicting("a.txt", 100, "0000000000000001")
	high := conflicting("a.txt", 100, "00000000000000ff")

	res, err := r.Resolve(low, high, events.LastWriteWins)
	if err != nil {
		t.Fatal(err)
	}
	if res.Resolved.Hash != high.Hash {
		t.Errorf("tie resolved to %s, want higher hash", res.Resolved.Hash)
	}
}

func TestLastWriteWinsFullTieResolvesToLocal(t *testing.T) {
	var r Resolver
	local := conflicting("a.txt", 100, "0000000000000001")
	remote := conflicting("a.txt", 100, "0000000000000001")
	remote.Size = 999 // distinguishable copy, identical tie-break keys

	res, err := r.Resolve(local, remote, events.LastWriteWins)
	if err != nil {
		t.Fatal(err)
	}
	if res.Resolved.Size != local.Size {
		t.Error("full tie did not resolve to local")
	}
}

func TestManualStrategyErrors(t *testing.T) {
	var r Resolver
	res, err := r.Resolve(conflicting("a", 1, "x"), conflicting("a", 2, "y"), events.Manual)
	if !errors.Is(err, syncerr.ErrState) {
		t.Fatalf("got %v, want ErrState", err)
	}
	if !res.RequiresManual {
		t.Error("manual resolution not flagged")
	}
}

func TestMergeStrategyUnimplemented(t *testing.T) {
	var r Resolver
	if _, err := r.Resolve(conflicting("a", 1, "x"), conflicting("a", 2, "y"), events.Merge); !errors.Is(err, syncerr.ErrState) {
		t.Errorf("got %v, want ErrState", err)
	}
}

func TestUnknownStrategy(t *testing.T) {
	var r Resolver
	if _, err := r.Resolve(conflicting("a", 1, "x"), conflicting("a", 2, "y"), events.ConflictStrategy(42)); !errors.Is(err, syncerr.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}
