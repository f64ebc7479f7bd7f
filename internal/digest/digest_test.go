package digest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestBytesKnownVectors(t *testing.T) {
	// FNV-1a 64-bit reference values.
	cases := []struct {
		input string
		want  string
	}{
		{"", "cbf29ce484222325"},
		{"a", "af63dc4c8601ec8c"},
	}
	for _, tc := range cases {
		if got := Bytes([]byte(tc.input)); got != tc.want {
			t.Errorf("Bytes(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestBytesFixedWidth(t *testing.T) {
	for _, input := range []string{"", "x", "example payload", "\x00\x01\x02"} {
		got := Bytes([]byte(input))
		if len(got) != HexLen {
			t.Errorf("Bytes(%q) has length %d, want %d", input, len(got), HexLen)
		}
		if !Valid(got) {
			t.Errorf("Bytes(%q) = %q is not a valid digest", input, got)
		}
	}
}

func TestReaderMatchesBytes(t *testing.T) {
	data := []byte("some longer payload spanning internal buffers")
	fromReader, err := Reader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	if fromReader != Bytes(data) {
		t.Errorf("Reader = %s, Bytes = %s", fromReader, Bytes(data))
	}
}

func TestFileMatchesBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	data := []byte("file contents for digesting")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	fromFile, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if fromFile != Bytes(data) {
		t.Errorf("File = %s, Bytes = %s", fromFile, Bytes(data))
	}
}

func TestStringMatchesBytes(t *testing.T) {
	if String("abc") != Bytes([]byte("abc")) {
		t.Error("String and Bytes disagree")
	}
}

func TestValid(t *testing.T) {
	if Valid("123") {
		t.Error("short string accepted")
	}
	if Valid("zzzzzzzzzzzzzzzz") {
		t.Error("non-hex string accepted")
	}
	if !Valid("cbf29ce484222325") {
		t.Error("valid digest rejected")
	}
}
