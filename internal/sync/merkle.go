// Package sync implements the server-side synchronization engine: snapshot
// diffing, chunked transfer with staging, session tracking, and conflict
// resolution.
package sync

import (
	"sort"
	"strconv"
	"strings"

	"github.com/driftsync/driftsync/internal/digest"
	"github.com/driftsync/driftsync/internal/metadata"
)

// MerkleTree holds per-path leaf digests over a file snapshot. The leaf
// digest covers (path, hash, size) only — replica churn never changes a
// leaf, so replica bookkeeping cannot trigger spurious re-syncs.
type MerkleTree struct {
	leaves   map[string]string
	rootHash string
}

// Build replaces the tree's leaves with digests over files.
func (t *MerkleTree) Build(files []metadata.FileMetadata) {
	t.leaves = make(map[string]string, len(files))
	for _, m := range files {
		t.leaves[m.FilePath] = leafDigest(m)
	}
	t.recomputeRoot()
}

// Diff returns every path whose leaf differs between the two trees, in
// ascending path order with no duplicates. A path present in exactly one
// tree always differs.
func (t *MerkleTree) Diff(other *MerkleTree) []string {
	a := t.sortedPaths()
	b := other.sortedPaths()

	var out []string
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			if t.leaves[a[i]] != other.leaves[b[j]] {
				out = append(out, a[i])
			}
			i++
			j++
		}
	}
	return out
}

// RootHash returns the digest over all ordered (path, leaf) pairs. Equal
// leaf sets always produce equal roots; the empty tree's root is "".
func (t *MerkleTree) RootHash() string { return t.rootHash }

// Empty reports whether the tree has no leaves.
func (t *MerkleTree) Empty() bool { return len(t.leaves) == 0 }

// Leaves returns a copy of the path → leaf digest map.
func (t *MerkleTree) Leaves() map[string]string {
	out := make(map[string]string, len(t.leaves))
	for k, v := range t.leaves {
		out[k] = v
	}
	return out
}

func (t *MerkleTree) sortedPaths() []string {
	paths := make([]string, 0, len(t.leaves))
	for p := range t.leaves {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (t *MerkleTree) recomputeRoot() {
	if len(t.leaves) == 0 {
		t.rootHash = ""
		return
	}
	var sb strings.Builder
	for _, p := range t.sortedPaths() {
		sb.WriteString(p)
		sb.WriteByte(':')
		sb.WriteString(t.leaves[p])
		sb.WriteByte(';')
	}
	t.rootHash = digest.String(sb.String())
}

func leafDigest(m metadata.FileMetadata) string {
	return digest.String(m.FilePath + "|" + m.Hash + "|" + strconv.FormatUint(m.Size, 10))
}
