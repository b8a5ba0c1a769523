package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/MimeLyc/bilingual-subs/pkg/log"
)

// chunkCache keeps translated chunks in the store so a file that failed
// part way does not pay again for the chunks that already came back.
type chunkCache struct {
	store     Store
	namespace string

	mu     sync.RWMutex
	cached map[string]string
}

func newChunkCache(store Store, namespace string) *chunkCache {
	return &chunkCache{
		store:     store,
		namespace: namespace,
		cached:    make(map[string]string),
	}
}

// chunkKey scopes a chunk to the provider and target language.
func (c *chunkCache) chunkKey(target, chunk string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + target + "\x00" + chunk))
	return hex.EncodeToString(sum[:])
}

func (c *chunkCache) Load(ctx context.Context, target, chunk string) (string, bool) {
	key := c.chunkKey(target, chunk)

	c.mu.RLock()
	ret, ok := c.cached[key]
	c.mu.RUnlock()
	if ok {
		return ret, true
	}

	ret, ok, err := c.store.LoadChunk(ctx, key)
	if err != nil {
		log.Warn("Failed to load cached chunk: %v", err)
		return "", false
	}
	if ok {
		c.mu.Lock()
		c.cached[key] = ret
		c.mu.Unlock()
	}
	return ret, ok
}

func (c *chunkCache) Save(ctx context.Context, target, chunk, translated string) error {
	key := c.chunkKey(target, chunk)

	c.mu.Lock()
	c.cached[key] = translated
	c.mu.Unlock()

	return c.store.SaveChunk(ctx, key, target, translated)
}
