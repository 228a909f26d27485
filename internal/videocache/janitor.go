package videocache

import (
	"context"
	"time"
)

// RunJanitor calls Cleanup every interval until ctx is done.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := c.Cleanup(ctx); dropped > 0 {
				c.logger.Info("cache cleanup dropped entries", "dropped", dropped)
			}
		}
	}
}
