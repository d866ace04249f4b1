package engine

import (
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// readCache is a bounded LRU of recently read File-backed values, plus a
// singleflight group collapsing concurrent faults for the same key into
// one disk read. It never changes what Get returns — only how often the
// log file is read — and is invalidated wholesale on compaction, since
// compaction rewrites every File offset.
type readCache struct {
	lru *lru.Cache
	sf  singleflight.Group
}

func newReadCache(size int) *readCache {
	c, err := lru.New(size)
	if err != nil {
		// size <= 0 from lru.New's perspective; fall back to a small
		// default rather than failing engine construction over a cache
		// sizing mistake.
		c, _ = lru.New(128)
	}
	return &readCache{lru: c}
}

func (c *readCache) get(key string) (string, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *readCache) put(key, value string) {
	c.lru.Add(key, value)
}

func (c *readCache) invalidate(key string) {
	c.lru.Remove(key)
}

func (c *readCache) purge() {
	c.lru.Purge()
}

// faultThrough collapses concurrent calls for the same key into a single
// invocation of load, so N simultaneous cold readers of key cost one disk
// read.
func (c *readCache) faultThrough(key string, load func() (string, bool, error)) (string, bool, error) {
	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		value, ok, err := load()
		if err != nil {
			return nil, err
		}
		if ok {
			c.put(key, value)
		}
		return cacheResult{value, ok}, nil
	})
	if err != nil {
		return "", false, err
	}
	res := v.(cacheResult)
	return res.value, res.ok, nil
}

type cacheResult struct {
	value string
	ok    bool
}
