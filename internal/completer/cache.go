package completer

import (
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// responseCache memoizes Transform results for identical prompt and budget.
type responseCache struct {
	c *ttlcache.Cache[string, string]
}

func newResponseCache(ttl time.Duration) *responseCache {
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()
	return &responseCache{c: c}
}

func cacheKey(prompt string, maxTokens int) string {
	return strconv.Itoa(maxTokens) + "\x00" + prompt
}

func (rc *responseCache) get(prompt string, maxTokens int) (string, bool) {
	if rc == nil {
		return "", false
	}
	item := rc.c.Get(cacheKey(prompt, maxTokens))
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

func (rc *responseCache) set(prompt string, maxTokens int, text string) {
	if rc == nil {
		return
	}
	rc.c.Set(cacheKey(prompt, maxTokens), text, ttlcache.DefaultTTL)
}

// purge drops every entry; results from a replaced model are stale.
func (rc *responseCache) purge() {
	if rc == nil {
		return
	}
	rc.c.DeleteAll()
}

func (rc *responseCache) len() int {
	if rc == nil {
		return 0
	}
	return rc.c.Len()
}

func (rc *responseCache) stop() {
	if rc == nil {
		return
	}
	rc.c.Stop()
}
