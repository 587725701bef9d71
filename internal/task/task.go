// Package task runs named goroutine loops with panic recovery and a shared
// stop signal.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-modemterm/logger"
)

// ErrStopped is returned by Start after Stop was called.
var ErrStopped = errors.New("task: manager stopped")

// Func is one iteration of a loop. Return false to end the loop.
type Func func(ctx context.Context) bool

// CleanupFunc runs once when a loop exits for any reason.
type CleanupFunc func()

// Manager owns a set of loops sharing one cancellable context.
//
// Example:
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Start("poll", func(ctx context.Context) bool {
//	    // ... one iteration ...
//	    return true
//	}, nil)
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.Mutex
}

// NewManager creates a Manager whose loops stop when ctx is done or Stop is called.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Start launches fn in a loop on a new goroutine. cleanup may be nil.
func (mgr *Manager) Start(name string, fn Func, cleanup CleanupFunc) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.ctx.Err() != nil {
		return fmt.Errorf("%w: cannot start %s", ErrStopped, name)
	}

	mgr.logger.Debug("task: start", "name", name)

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer mgr.wg.Done()
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug("task: terminated", "name", name, "task_count", mgr.Count())
		}()
		if cleanup != nil {
			defer cleanup()
		}

		mgr.run(name, fn)
	}()

	return nil
}

// run loops fn until it returns false, the context ends or fn panics.
func (mgr *Manager) run(name string, fn Func) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("task: panic in loop", "name", name, "panic", r)
		}
	}()

	for {
		select {
		case <-mgr.ctx.Done():
			return
		default:
			if !fn(mgr.ctx) {
				return
			}
		}
	}
}

// Stop signals every loop to exit after its current iteration.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	mgr.cancel()
}

// Wait blocks until every started loop has returned.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}

// Count returns the number of running loops.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}
