package stream

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
)

// Cache short-circuits re-encoding for a given content hash. It is strictly
// optional and must never affect the bytes a cold encode would have
// produced — Load keys it on the file's base name, a SHA-256 hash of its
// contents and the FEC setting (see contentCacheKey); file size and mtime are
// not part of the key.
type Cache interface {
	Get(key string) (*Buffer, bool)
	Put(key string, buf *Buffer)
}

// DiskCache stores one gob-encoded file per cache key under a directory.
// Safe for concurrent use only insofar as the filesystem itself is; the
// core only ever calls it from the scheduler's preload path, never the loop
// thread, so contention is not a concern.
type DiskCache struct {
	dir string
}

func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{dir: dir}
}

func (c *DiskCache) Get(key string) (*Buffer, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return nil, false
	}

	buf := &Buffer{FrameCount: entry.FrameCount}
	buf.slices = entry.Slices
	return buf, true
}

func (c *DiskCache) Put(key string, buf *Buffer) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}

	entry := cacheEntry{FrameCount: buf.FrameCount, Slices: buf.slices}
	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(&entry); err != nil {
		return
	}

	_ = os.WriteFile(c.path(key), out.Bytes(), 0o644)
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+".cache")
}

// cacheEntry is the gob-serializable form of a Buffer; Buffer itself keeps
// slices unexported so Frame() stays the only read path in normal use.
type cacheEntry struct {
	FrameCount int
	Slices     [ChannelCount][][]byte
}
