package xmodem

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/arloliu/go-modemterm/link"
)

// Engine runs XMODEM sessions over a channel.
//
// The caller must own the channel for the duration of Send or Receive, e.g.
// through a link.Arbiter. An Engine runs one session at a time.
type Engine struct {
	ch      link.Channel
	cfg     *Config
	metrics *Metrics
	running atomic.Bool
}

// NewEngine creates an Engine. A nil cfg selects the defaults.
func NewEngine(ch link.Channel, cfg *Config) *Engine {
	if cfg == nil {
		cfg, _ = NewConfig()
	}

	return &Engine{
		ch:      ch,
		cfg:     cfg,
		metrics: &Metrics{},
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.cfg
}

// Metrics returns the engine counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Send transfers src to the peer, which must be receiving.
//
// On abort it returns the partial Result and an *AbortError.
func (e *Engine) Send(ctx context.Context, src io.Reader) (Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Result{}, ErrEngineRunning
	}
	defer e.running.Store(false)

	s := newSession(e.ch, e.cfg, e.metrics, DirectionSend)
	snd := &sender{session: s, src: src, buf: make([]byte, BlockSize1K)}
	s.logger.Debug("xmodem: send started", "block_size", s.blockSize)

	return s.finish(runSend(ctx, snd))
}

// Receive reads blocks from the peer into dst until EOT.
//
// Payloads are written as received, including the padding of the final
// block. On abort it returns the partial Result and an *AbortError.
func (e *Engine) Receive(ctx context.Context, dst io.Writer) (Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Result{}, ErrEngineRunning
	}
	defer e.running.Store(false)

	s := newSession(e.ch, e.cfg, e.metrics, DirectionReceive)
	rcv := newReceiver(s, dst)
	s.logger.Debug("xmodem: receive started", "crc", e.cfg.preferCRC)

	return s.finish(runReceive(ctx, rcv))
}
