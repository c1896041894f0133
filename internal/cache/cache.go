// Package cache holds recently proxied GET responses so repeated page loads
// do not hit the backend, and lets write actions drop the views they touch.
package cache

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// Entry is a cached backend response.
type Entry struct {
	Status      int
	ContentType string
	Body        []byte
	storedAt    time.Time
}

// ViewCache is safe for concurrent use.
type ViewCache struct {
	mu    sync.Mutex
	lru   *lru.Cache
	ttl   time.Duration
	paths map[string]map[string]struct{} // path -> keys
	now   func() time.Time
}

func New(maxEntries int, ttl time.Duration) *ViewCache {
	c := &ViewCache{
		lru:   lru.New(maxEntries),
		ttl:   ttl,
		paths: make(map[string]map[string]struct{}),
		now:   time.Now,
	}
	c.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		k := key.(string)
		p := pathOf(k)
		delete(c.paths[p], k)
		if len(c.paths[p]) == 0 {
			delete(c.paths, p)
		}
	}
	return c
}

// Key scopes a path to the caller's token so users never share views.
func Key(token, path string) string {
	return token + " " + path
}

func pathOf(key string) string {
	if i := strings.IndexByte(key, ' '); i >= 0 {
		return key[i+1:]
	}
	return key
}

func (c *ViewCache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(*Entry)
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	return e, true
}

// Put stores a 2xx response; anything else is ignored.
func (c *ViewCache) Put(key string, status int, contentType string, body []byte) {
	if status < http.StatusOK || status > 299 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &Entry{Status: status, ContentType: contentType, Body: body, storedAt: c.now()})
	p := pathOf(key)
	if c.paths[p] == nil {
		c.paths[p] = make(map[string]struct{})
	}
	c.paths[p][key] = struct{}{}
}

// Invalidate drops every cached view whose path equals prefix or lies
// beneath it, for all tokens. Query strings are part of the path.
func (c *ViewCache) Invalidate(prefix string) error {
	prefix = strings.TrimRight(prefix, "/")
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for p, ks := range c.paths {
		if !underPath(p, prefix) {
			continue
		}
		for k := range ks {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		c.lru.Remove(k)
	}
	return nil
}

func underPath(p, prefix string) bool {
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	rest := p[len(prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}

func (c *ViewCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
