package store

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// keyPool provides reusable byte slices for building database keys.
var keyPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

// buildKey constructs a database key from prefix and suffix using a pooled buffer.
// Callers MUST call releaseKey when done with the key.
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

// buildIndexKey constructs "<prefix>idx:<name>:<value>:<id>".
// An empty id yields the scan prefix for every document under value.
func buildIndexKey(prefix, indexName, value, id string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, "idx:"...)
	buf = append(buf, indexName...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	buf = append(buf, ':')
	buf = append(buf, id...)
	return buf
}

// indexKey is buildIndexKey without pooling. Use it for keys handed to
// txn.Set or txn.Delete, which keep a reference until commit.
func indexKey(prefix, indexName, value, id string) []byte {
	return []byte(prefix + "idx:" + indexName + ":" + value + ":" + id)
}

// releaseKey returns a key buffer to the pool for reuse.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0]) //nolint:staticcheck // SA6002
	}
}

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// IndexValue joins value parts into one index value. Parts are escaped so a
// ':' inside a tag id or user id can never collide with the separator.
func IndexValue(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = keyEscaper.Replace(p)
	}
	return strings.Join(escaped, ":")
}

// invertedTime encodes t so that lexical key order is newest first.
func invertedTime(t time.Time) string {
	return fmt.Sprintf("%020d", math.MaxInt64-t.UnixNano())
}
