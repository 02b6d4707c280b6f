package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	version   byte = 1
	kindEntry byte = 1
)

var (
	ErrCorrupt = errors.New("querycache: corrupt entry")
	magic4     = [...]byte{'Q', 'C', 'A', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry is a remote-tier cache entry. Key is the full local cache key.
type Entry struct {
	Key      string
	Gen      uint64
	StoredAt time.Time
	TTL      time.Duration
	Payload  []byte
}

// hdr: magic(4) | ver(1) | kind(1) | gen(u64) | storedAt(i64 unix nanos) | ttl(i64 nanos) | keyLen(u16)
const hdrLen = 4 + 1 + 1 + 8 + 8 + 8 + 2

// EncodeEntry frames e as:
//
//	hdr | key(keyLen) | vlen(u32 be) | payload(vlen)
//
// All integers are big endian.
func EncodeEntry(e Entry) ([]byte, error) {
	if l := len(e.Key); l == 0 || l > 0xFFFF {
		return nil, fmt.Errorf("querycache: invalid key length %d", l)
	}
	if e.TTL < 0 {
		return nil, fmt.Errorf("querycache: negative ttl %s", e.TTL)
	}

	var buf bytes.Buffer
	buf.Grow(hdrLen + len(e.Key) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], e.Gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.StoredAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.TTL))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Key)))
	buf.Write(u2[:])
	buf.WriteString(e.Key)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes(), nil
}

// DecodeEntry parses a frame produced by EncodeEntry. Trailing bytes are rejected.
// Payload aliases b.
func DecodeEntry(b []byte) (Entry, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}

	off := 6
	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	storedAt := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	ttl := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	if ttl < 0 {
		return Entry{}, ErrCorrupt
	}

	klen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if klen == 0 || klen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	key := string(b[off : off+klen])
	off += klen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // strict: no trailing bytes
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Key:      key,
		Gen:      gen,
		StoredAt: time.Unix(0, storedAt),
		TTL:      time.Duration(ttl),
		Payload:  b[off : off+vlen],
	}, nil
}
