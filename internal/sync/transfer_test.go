package sync

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/driftsync/driftsync/internal/digest"
	"github.com/driftsync/driftsync/internal/syncerr"
)

func writeSource(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUploadFileChunking(t *testing.T) {
	content := []byte("example payload") // 15 bytes
	source := writeSource(t, content)

	var tr Transfer
	var chunks []ChunkEnvelope
	sink := func(env ChunkEnvelope) error {
		chunks = append(chunks, env)
		return nil
	}
	if err := tr.UploadFile(source, "session-1", "docs/note.txt", sink, 8); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != uint32(i) || c.TotalChunks != 2 || c.ChunkSize != 8 {
			t.Errorf("chunk %d framing: %+v", i, c)
		}
		if c.ChunkHash != digest.Bytes(c.Data) {
			t.Errorf("chunk %d hash mismatch", i)
		}
	}
	if len(chunks[0].Data) != 8 || len(chunks[1].Data) != 7 {
		t.Errorf("chunk sizes %d, %d", len(chunks[0].Data), len(chunks[1].Data))
	}
	if !bytes.Equal(append(chunks[0].Data, chunks[1].Data...), content) {
		t.Error("reassembled chunks differ from source")
	}
}

func TestUploadFileRejectsZeroChunkSize(t *testing.T) {
	var tr Transfer
	err := tr.UploadFile(writeSource(t, []byte("x")), "s", "p", func(ChunkEnvelope) error { return nil }, 0)
	if !errors.Is(err, syncerr.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	content := bytes.Repeat([]byte("driftsync chunk pipeline "), 100)
	source := writeSource(t, content)
	staging := t.TempDir()
	dest := t.TempDir()

	var tr Transfer
	var chunks []ChunkEnvelope
	if err := tr.UploadFile(source, "session-1", "deep/dir/file.bin", func(env ChunkEnvelope) error {
		chunks = append(chunks, env)
		return nil
	}, 64); err != nil {
		t.Fatal(err)
	}

	// Apply out of order; position-addressed writes tolerate any arrival order.
	for i := len(chunks) - 1; i >= 0; i-- {
		if err := tr.ApplyChunk(chunks[i], staging); err != nil {
			t.Fatalf("ApplyChunk %d: %v", i, err)
		}
	}
	// Re-delivery of an identical chunk is harmless.
	if err := tr.ApplyChunk(chunks[0], staging); err != nil {
		t.Fatalf("idempotent re-apply: %v", err)
	}

	want := digest.Bytes(content)
	if err := tr.FinalizeFile("session-1", "deep/dir/file.bin", staging, dest, want); err != nil {
		t.Fatalf("FinalizeFile: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "deep", "dir", "file.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Error("promoted file differs from source")
	}

	// The staging file is renamed away on success.
	if _, err := os.Stat(filepath.Join(staging, "session-1", "deep", "dir", "file.bin")); !os.IsNotExist(err) {
		t.Errorf("staging file still present: %v", err)
	}
}

func TestApplyChunkRejectsCorruptHash(t *testing.T) {
	staging := t.TempDir()
	var tr Transfer
	chunk := ChunkEnvelope{
		SessionID:   "session-1",
		FilePath:    "corrupt.bin",
		ChunkIndex:  0,
		TotalChunks: 1,
		ChunkSize:   8,
		Data:        []byte("payload"),
		ChunkHash:   "0000000000000000",
	}
	if err := tr.ApplyChunk(chunk, staging); !errors.Is(err, syncerr.ErrIntegrity) {
		t.Fatalf("got %v, want ErrIntegrity", err)
	}
	if _, err := os.Stat(filepath.Join(staging, "session-1", "corrupt.bin")); !os.IsNotExist(err) {
		t.Error("corrupt chunk created a staging file")
	}
}

func TestFinalizeRejectsWrongHash(t *testing.T) {
	staging := t.TempDir()
	dest := t.TempDir()
	var tr Transfer

	data := []byte("content")
	chunk := ChunkEnvelope{
		SessionID: "session-1", FilePath: "f.bin",
		ChunkIndex: 0, TotalChunks: 1, ChunkSize: 64,
		Data: data, ChunkHash: digest.Bytes(data),
	}
	if err := tr.ApplyChunk(chunk, staging); err != nil {
		t.Fatal(err)
	}

	err := tr.FinalizeFile("session-1", "f.bin", staging, dest, "ffffffffffffffff")
	if !errors.Is(err, syncerr.ErrIntegrity) {
		t.Fatalf("got %v, want ErrIntegrity", err)
	}

	// Nothing promoted; staged data left for inspection.
	if _, statErr := os.Stat(filepath.Join(dest, "f.bin")); !os.IsNotExist(statErr) {
		t.Error("file promoted despite hash mismatch")
	}
	if _, statErr := os.Stat(filepath.Join(staging, "session-1", "f.bin")); statErr != nil {
		t.Error("staging file missing after failed finalize")
	}
}

func TestFinalizeMissingStagingFile(t *testing.T) {
	var tr Transfer
	err := tr.FinalizeFile("session-1", "never-uploaded.bin", t.TempDir(), t.TempDir(), "cbf29ce484222325")
	if err == nil {
		t.Fatal("expected error for missing staging file")
	}
}

func TestUploadEmptyFile(t *testing.T) {
	source := writeSource(t, nil)
	var tr Transfer
	var chunks []ChunkEnvelope
	if err := tr.UploadFile(source, "s", "empty.bin", func(env ChunkEnvelope) error {
		chunks = append(chunks, env)
		return nil
	}, 8); err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("empty file produced %d chunks", len(chunks))
	}
}

func TestSinkErrorAbortsUpload(t *testing.T) {
	source := writeSource(t, bytes.Repeat([]byte("ab"), 64))
	var tr Transfer
	calls := 0
	wantErr := errors.New("sink rejected")
	err := tr.UploadFile(source, "s", "p", func(ChunkEnvelope) error {
		calls++
		return wantErr
	}, 16)
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want sink error", err)
	}
	if calls != 1 {
		t.Errorf("sink called %d times after error", calls)
	}
}
