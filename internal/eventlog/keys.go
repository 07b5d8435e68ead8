package eventlog

import "encoding/binary"

var (
	metaLastKey = []byte("m/last")
	entryPrefix = []byte("e/")
	// '0' sorts right after '/', so this bounds every entry key.
	entryUpperBound = []byte("e0")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyEntry builds the entry key with a big-endian sequence for proper
// ordering.
func keyEntry(seq uint64) []byte {
	k := make([]byte, 0, len(entryPrefix)+8)
	k = append(k, entryPrefix...)
	return appendBE8(k, seq)
}

// seqFromKey extracts the sequence from an entry key.
func seqFromKey(k []byte) (uint64, bool) {
	if len(k) != len(entryPrefix)+8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(k[len(entryPrefix):]), true
}
