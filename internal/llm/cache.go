package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/Veraticus/quotesmith/internal/model"
)

// responseCache holds resolved extractions for the lifetime of one run, keyed
// by prompt hash, so identical rows cost one model call.
type responseCache struct {
	entries map[string]model.ExtractionResult
	mu      sync.RWMutex
}

func newResponseCache() *responseCache {
	return &responseCache{entries: make(map[string]model.ExtractionResult)}
}

func (c *responseCache) get(key string) (model.ExtractionResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.entries[key]
	return result, ok
}

func (c *responseCache) set(key string, result model.ExtractionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
