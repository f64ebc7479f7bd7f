package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/driftsync/driftsync/internal/syncerr"
)

// Binary wire format, version 0x01. All multibyte fields are big-endian:
//
//	[version:1]
//	[file_path_len:4][file_path:N]
//	[hash_len:4][hash:N]
//	[size:8]
//	[modified_time:8 signed]
//	[created_time:8 signed]
//	[sync_state:1]
//	[replica_count:4]
//	repeat: [replica_id_len:4][replica_id:N][version:4][modified_time:8 signed]
const wireVersion = 0x01

// MarshalBinary encodes a single record.
func MarshalBinary(m FileMetadata) []byte {
	var buf bytes.Buffer
	buf.WriteByte(wireVersion)
	writeString(&buf, m.FilePath)
	writeString(&buf, m.Hash)
	binary.Write(&buf, binary.BigEndian, m.Size)
	binary.Write(&buf, binary.BigEndian, m.ModifiedTime)
	binary.Write(&buf, binary.BigEndian, m.CreatedTime)
	buf.WriteByte(byte(m.SyncState))
	binary.Write(&buf, binary.BigEndian, uint32(len(m.Replicas)))
	for _, r := range m.Replicas {
		writeString(&buf, r.ReplicaID)
		binary.Write(&buf, binary.BigEndian, r.Version)
		binary.Write(&buf, binary.BigEndian, r.ModifiedTime)
	}
	return buf.Bytes()
}

// UnmarshalBinary decodes a single record, returning the record and the
// number of bytes consumed so callers can decode back-to-back records.
func UnmarshalBinary(data []byte) (FileMetadata, int, error) {
	r := &reader{data: data}

	version, err := r.byte()
	if err != nil {
		return FileMetadata{}, 0, err
	}
	if version != wireVersion {
		return FileMetadata{}, 0, syncerr.Integrity("unsupported metadata wire version 0x%02x", version)
	}

	var m FileMetadata
	if m.FilePath, err = r.str(); err != nil {
		return FileMetadata{}, 0, err
	}
	if m.Hash, err = r.str(); err != nil {
		return FileMetadata{}, 0, err
	}
	if m.Size, err = r.u64(); err != nil {
		return FileMetadata{}, 0, err
	}
	if m.ModifiedTime, err = r.i64(); err != nil {
		return FileMetadata{}, 0, err
	}
	if m.CreatedTime, err = r.i64(); err != nil {
		return FileMetadata{}, 0, err
	}
	state, err := r.byte()
	if err != nil {
		return FileMetadata{}, 0, err
	}
	if state > byte(StateDeleted) {
		return FileMetadata{}, 0, syncerr.Integrity("unknown sync state %d", state)
	}
	m.SyncState = SyncState(state)

	count, err := r.u32()
	if err != nil {
		return FileMetadata{}, 0, err
	}
	for i := uint32(0); i < count; i++ {
		var rep ReplicaInfo
		if rep.ReplicaID, err = r.str(); err != nil {
			return FileMetadata{}, 0, err
		}
		if rep.Version, err = r.u32(); err != nil {
			return FileMetadata{}, 0, err
		}
		if rep.ModifiedTime, err = r.i64(); err != nil {
			return FileMetadata{}, 0, err
		}
		m.Replicas = append(m.Replicas, rep)
	}

	return m, r.pos, nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.data) {
		return syncerr.Integrity("metadata buffer underflow at offset %d (need %d bytes)", r.pos, n)
	}
	return nil
}

func (r *reader) byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", fmt.Errorf("string of length %d: %w", n, err)
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}
