package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindIndex byte = 1
)

var (
	ErrCorrupt = errors.New("webstash: corrupt index record")
	magic4     = [...]byte{'W', 'S', 'T', 'A'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Index: magic(4) | ver(1) | kind(1=index) | total(u64 be) | n(u32 be)
// followed by n entries of klen(u16 be) | key(klen).
// Keys are listed oldest first; the record is written as one atomic unit.
func EncodeIndex(total uint64, keys []string) ([]byte, error) {
	size := 4 + 1 + 1 + 8 + 4
	for _, k := range keys {
		if l := len(k); l == 0 || l > 0xFFFF {
			return nil, errors.New("webstash: invalid key length in index")
		}
		size += 2 + len(k)
	}

	var buf bytes.Buffer
	buf.Grow(size)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindIndex)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], total)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(keys)))
	buf.Write(u4[:])

	for _, k := range keys {
		binary.BigEndian.PutUint16(u2[:], uint16(len(k)))
		buf.Write(u2[:])
		buf.WriteString(k)
	}

	return buf.Bytes(), nil
}

// DecodeIndex parses a record produced by EncodeIndex. Framing is strict:
// short buffers, announced lengths past the end, and trailing bytes are all
// rejected with ErrCorrupt.
func DecodeIndex(b []byte) (total uint64, keys []string, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindIndex {
		return 0, nil, ErrCorrupt
	}

	off := 6

	total = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if n < 0 || n > len(b)-off { // each entry needs at least its length prefix
		return 0, nil, ErrCorrupt
	}

	keys = make([]string, 0, min(n, 1024)) // cap prealloc; n is attacker-controlled
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return 0, nil, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen <= 0 || klen > len(b)-off {
			return 0, nil, ErrCorrupt
		}
		keys = append(keys, string(b[off:off+klen]))
		off += klen
	}

	if off != len(b) {
		return 0, nil, ErrCorrupt
	}
	return total, keys, nil
}
