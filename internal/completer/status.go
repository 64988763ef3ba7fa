package completer

import (
	"time"

	"localllm/internal/engine"
	"localllm/pkg/types"
)

// Status builds a status snapshot for /status.
func (c *Completer) Status() types.StatusResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp := types.StatusResponse{
		State:            string(c.state),
		Engine:           c.cfg.Engine.Name(),
		EngineBuilt:      engine.Built(c.cfg.Engine),
		ContextSize:      c.cfg.Load.ContextSize,
		QueueLen:         len(c.queueCh),
		Inflight:         len(c.genCh),
		MaxQueueDepth:    cap(c.queueCh),
		LastError:        c.lastErr,
		CompletionsTotal: c.completions.Load(),
		UptimeSeconds:    int64(time.Since(c.startTime).Seconds()),
	}
	if c.info != nil {
		m := *c.info
		resp.Model = &m
	}
	return resp
}

// CacheLen returns the number of cached completions (0 when disabled).
func (c *Completer) CacheLen() int { return c.cache.len() }
