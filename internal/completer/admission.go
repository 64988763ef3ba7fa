package completer

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns a release func to be deferred.
func (c *Completer) beginGeneration(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(c.cfg.MaxWait)
	defer timer.Stop()
	select {
	case c.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{model: c.modelName()}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-c.queueCh
		}
	}()
	// the queue wait counts against the same deadline
	select {
	case c.genCh <- struct{}{}:
		acquired = true
		return func() { <-c.genCh; <-c.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{model: c.modelName()}
	}
}
