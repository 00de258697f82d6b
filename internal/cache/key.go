package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

// Key returns the entry directory name for a node.
//
// The digest covers class, version, and identity as length-prefixed fields so
// that no two distinct triples can collide by concatenation.
func Key(class string, version int, identity string) string {
	hasher := sha256.New()
	writeField := func(data string) {
		var prefix [8]byte
		binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
		hasher.Write(prefix[:])
		hasher.Write([]byte(data))
	}
	writeField(class)
	writeField(strconv.Itoa(version))
	writeField(identity)
	return class + "_" + hex.EncodeToString(hasher.Sum(nil))
}
