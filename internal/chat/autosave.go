package chat

import (
	"context"
	"time"
)

// DefaultAutosaveInterval is the fallback snapshot flush period.
const DefaultAutosaveInterval = 15 * time.Second

// StartAutosave periodically flushes the active provider's snapshot as a
// safety net behind save-on-mutation. It returns immediately; the flush
// loop runs until ctx is cancelled.
func (c *Controller) StartAutosave(ctx context.Context, interval time.Duration) {
	if c.bridge == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				id := c.providerID
				store := c.store
				c.mu.Unlock()
				c.persist(id, store)
			}
		}
	}()
}
