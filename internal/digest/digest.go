// Package digest computes the content digests used across the sync wire.
//
// Both sides of a sync exchange must agree on the digest function: chunks,
// whole files, and Merkle leaves all use FNV-1a 64-bit rendered as 16
// lower-hex characters. The digest detects corruption in transit; it is not
// collision resistant and is not used for security.
package digest

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"io"
	"os"
)

// HexLen is the length of a rendered digest.
const HexLen = 16

// Bytes digests a byte slice.
func Bytes(data []byte) string {
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Reader digests an entire stream.
func Reader(r io.Reader) (string, error) {
	h := fnv.New64a()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// File digests the contents of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}

// String digests a string.
func String(s string) string {
	h := fnv.New64a()
	io.WriteString(h, s)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Valid reports whether s looks like a rendered digest.
func Valid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
