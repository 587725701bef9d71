package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-modemterm/internal/pool"
	"github.com/arloliu/go-modemterm/logger"
)

// DefaultYieldTimeout bounds how long a transfer waits for the listener to
// finish its current line and yield the channel.
const DefaultYieldTimeout = 3 * time.Second

var (
	// ErrBusy is returned when the requested ownership cannot be granted now.
	ErrBusy = errors.New("link: channel busy")

	// ErrYieldTimeout is returned when the listener did not yield in time.
	ErrYieldTimeout = errors.New("link: listener did not yield")
)

// Owner identifies who may perform I/O on the channel.
type Owner uint32

const (
	Idle Owner = iota
	ListenerOwned
	TransferOwned
)

// String returns the owner name.
func (o Owner) String() string {
	switch o {
	case Idle:
		return "idle"
	case ListenerOwned:
		return "listener"
	case TransferOwned:
		return "transfer"
	default:
		return fmt.Sprintf("owner(%d)", uint32(o))
	}
}

// Arbiter grants exclusive channel ownership to either the background
// listener or a transfer.
//
// A transfer request marks itself pending first, so the listener cannot
// re-acquire between its yield and the transfer taking over. The listener
// never waits: a busy channel means it polls again later.
type Arbiter struct {
	mu      sync.Mutex
	owner   Owner
	pending bool
	// changed is closed and replaced whenever ownership returns to Idle.
	changed chan struct{}

	yieldTimeout time.Duration
	logger       logger.Logger
}

// ArbiterOption configures an Arbiter.
type ArbiterOption func(*Arbiter)

// WithYieldTimeout sets how long a transfer waits for the listener.
func WithYieldTimeout(d time.Duration) ArbiterOption {
	return func(a *Arbiter) {
		if d > 0 {
			a.yieldTimeout = d
		}
	}
}

// WithArbiterLogger sets the logger used for ownership transitions.
func WithArbiterLogger(l logger.Logger) ArbiterOption {
	return func(a *Arbiter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewArbiter returns an Arbiter in the Idle state.
func NewArbiter(opts ...ArbiterOption) *Arbiter {
	a := &Arbiter{
		changed:      make(chan struct{}),
		yieldTimeout: DefaultYieldTimeout,
		logger:       logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Acquire requests ownership for owner.
//
// ListenerOwned never blocks and fails with ErrBusy unless the channel is idle
// and no transfer is pending. Acquiring it again while already held is a no-op.
//
// TransferOwned fails with ErrBusy when another transfer holds or is acquiring
// the channel. Otherwise it waits for the listener to yield, bounded by ctx and
// the yield timeout.
func (a *Arbiter) Acquire(ctx context.Context, owner Owner) error {
	switch owner {
	case ListenerOwned:
		return a.acquireListener()
	case TransferOwned:
		return a.acquireTransfer(ctx)
	default:
		return fmt.Errorf("link: cannot acquire for %s", owner)
	}
}

func (a *Arbiter) acquireListener() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.owner == ListenerOwned {
		return nil
	}
	if a.owner != Idle || a.pending {
		return ErrBusy
	}
	a.owner = ListenerOwned

	return nil
}

func (a *Arbiter) acquireTransfer(ctx context.Context) error {
	a.mu.Lock()
	if a.owner == TransferOwned || a.pending {
		a.mu.Unlock()
		return ErrBusy
	}
	if a.owner == Idle {
		a.owner = TransferOwned
		a.mu.Unlock()
		a.logger.Debug("link: transfer owns channel")

		return nil
	}

	a.pending = true
	a.mu.Unlock()
	a.logger.Debug("link: waiting for listener to yield")

	deadline := time.Now().Add(a.yieldTimeout)
	for {
		a.mu.Lock()
		if a.owner == Idle {
			a.owner = TransferOwned
			a.pending = false
			a.mu.Unlock()
			a.logger.Debug("link: transfer owns channel")

			return nil
		}
		changed := a.changed
		a.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			a.clearPending()
			return ErrYieldTimeout
		}

		if err := pool.WaitOrTimeout(ctx, changed, remaining); err != nil {
			a.clearPending()
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return ErrYieldTimeout
		}
	}
}

func (a *Arbiter) clearPending() {
	a.mu.Lock()
	a.pending = false
	a.mu.Unlock()
}

// Release returns the channel to Idle. It is safe to call at any time and
// more than once.
func (a *Arbiter) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.releaseLocked()
}

// Yield releases the channel only if the listener holds it.
func (a *Arbiter) Yield() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.owner == ListenerOwned {
		a.releaseLocked()
	}
}

func (a *Arbiter) releaseLocked() {
	if a.owner == Idle {
		return
	}
	a.owner = Idle
	close(a.changed)
	a.changed = make(chan struct{})
}

// Owner returns the current owner.
func (a *Arbiter) Owner() Owner {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.owner
}

// TransferPending reports whether a transfer is waiting for the listener.
// The listener checks it to finish its current read early.
func (a *Arbiter) TransferPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.pending
}

// Exclusive runs fn while no transfer can take the channel. It fails with
// ErrBusy when a transfer owns or is acquiring it. fn must be short, as it
// holds up the listener and any transfer request.
func (a *Arbiter) Exclusive(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.owner == TransferOwned || a.pending {
		return ErrBusy
	}

	return fn()
}
