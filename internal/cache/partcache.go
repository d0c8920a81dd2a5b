// Package cache memoizes PBO part-hash computation across builds so an
// unchanged archive doesn't get re-read and re-hashed on every scan. See
// SPEC_FULL.md §4.9.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Property mirrors repo.Property without importing the repo package, to
// keep this package free of a cyclic dependency.
type Property struct {
	Key   string
	Value string
}

// Part mirrors repo.Part for the same reason.
type Part struct {
	Name   string
	Hash   []byte
	Offset uint64
}

// Entry is the memoized PBO scan result for one file identity.
type Entry struct {
	Props []Property
	Parts []Part
	Hash  []byte
}

type key struct {
	path    string
	size    uint64
	modTime int64
}

// PartCache memoizes PBO scan results keyed by (path, size, modtime). It is
// strictly an accelerator: a miss always falls through to a full re-scan,
// and nothing here ever changes a computed hash.
type PartCache struct {
	lru *lru.Cache[key, Entry]
}

// New creates a PartCache holding up to size entries. A non-positive size
// disables caching (Get always misses, Put is a no-op).
func New(size int) *PartCache {
	if size <= 0 {
		return &PartCache{}
	}
	c, err := lru.New[key, Entry](size)
	if err != nil {
		// Only returns an error for a non-positive size, already excluded above.
		return &PartCache{}
	}
	return &PartCache{lru: c}
}

// Get looks up a memoized scan result for the given file identity.
func (c *PartCache) Get(path string, size uint64, modTime int64) (Entry, bool) {
	if c == nil || c.lru == nil {
		return Entry{}, false
	}
	return c.lru.Get(key{path: path, size: size, modTime: modTime})
}

// Put records a scan result for the given file identity.
func (c *PartCache) Put(path string, size uint64, modTime int64, entry Entry) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(key{path: path, size: size, modTime: modTime}, entry)
}
