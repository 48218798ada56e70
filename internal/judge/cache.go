package judge

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// verdictCache memoizes judge replies keyed by the rendered prompt
type verdictCache struct {
	cache *lru.Cache[string, string]
}

// newVerdictCache returns nil when size is not positive
func newVerdictCache(size int) *verdictCache {
	if size <= 0 {
		return nil
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil
	}
	return &verdictCache{cache: cache}
}

func (c *verdictCache) get(prompt string) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.cache.Get(promptKey(prompt))
}

func (c *verdictCache) add(prompt, reply string) {
	if c == nil || reply == "" {
		return
	}
	c.cache.Add(promptKey(prompt), reply)
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
