package xmodem

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-modemterm/link"
	"github.com/arloliu/go-modemterm/logger"
)

const peerWait = 2 * time.Second

// newTestConfig creates a Config with short timeouts suitable for tests.
func newTestConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()

	defaults := []Option{
		WithStartTimeout(300 * time.Millisecond),
		WithAckTimeout(300 * time.Millisecond),
		WithBlockTimeout(300 * time.Millisecond),
		WithCharTimeout(50 * time.Millisecond),
		WithNegotiateInterval(300 * time.Millisecond),
		WithLogger(logger.GetLogger()),
	}

	cfg, err := NewConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	return cfg
}

// newLoopbackChannels returns two channels joined by a loopback TCP
// connection. Unlike net.Pipe, TCP buffers writes the way a serial driver
// does, so both sides may write at the same time.
func newLoopbackChannels(t *testing.T) (link.Channel, link.Channel) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	a, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	b, ok := <-accepted
	require.True(t, ok)

	chA, err := link.NewConnChannel(a, link.WithWriteTimeout(peerWait))
	require.NoError(t, err)
	chB, err := link.NewConnChannel(b, link.WithWriteTimeout(peerWait))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = chA.Close()
		_ = chB.Close()
	})

	return chA, chB
}

// newTestEngine creates an Engine on one end of net.Pipe and a scripted peer
// on the other.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *testPeer) {
	t.Helper()

	local, remote := net.Pipe()
	ch, err := link.NewConnChannel(local, link.WithWriteTimeout(peerWait))
	require.NoError(t, err)

	peer := newTestPeer(t, remote)
	t.Cleanup(func() {
		_ = ch.Close()
		_ = remote.Close()
	})

	return NewEngine(ch, newTestConfig(t, opts...)), peer
}

// testPeer is the remote end of the pipe. Everything the engine writes is
// collected in the background so engine writes never block.
type testPeer struct {
	t    *testing.T
	conn net.Conn
	in   chan byte
}

func newTestPeer(t *testing.T, conn net.Conn) *testPeer {
	p := &testPeer{t: t, conn: conn, in: make(chan byte, 1<<16)}

	go func() {
		defer close(p.in)

		buf := make([]byte, 2048)
		for {
			n, err := conn.Read(buf)
			for _, b := range buf[:n] {
				p.in <- b
			}
			if err != nil {
				return
			}
		}
	}()

	return p
}

// send writes data to the engine.
func (p *testPeer) send(data ...byte) {
	p.t.Helper()

	_ = p.conn.SetWriteDeadline(time.Now().Add(peerWait))
	if _, err := p.conn.Write(data); err != nil {
		p.t.Errorf("peer send: %v", err)
	}
}

// next returns the next byte written by the engine.
func (p *testPeer) next() (byte, bool) {
	select {
	case b, ok := <-p.in:
		return b, ok
	case <-time.After(peerWait):
		return 0, false
	}
}

// expect asserts the next bytes written by the engine.
func (p *testPeer) expect(want ...byte) {
	p.t.Helper()

	for _, w := range want {
		b, ok := p.next()
		if !ok {
			p.t.Fatalf("peer expected 0x%02X, got nothing", w)
		}
		if b != w {
			p.t.Fatalf("peer expected 0x%02X, got 0x%02X", w, b)
		}
	}
}

// readN returns the next n bytes written by the engine.
func (p *testPeer) readN(n int) []byte {
	p.t.Helper()

	out := make([]byte, 0, n)
	for len(out) < n {
		b, ok := p.next()
		if !ok {
			p.t.Fatalf("peer read %d of %d bytes", len(out), n)
		}
		out = append(out, b)
	}

	return out
}

// readBlock reads a whole block from the engine and decodes it.
func (p *testPeer) readBlock(mode Mode) *Block {
	p.t.Helper()

	header := p.readN(1)[0]
	size, ok := sizeFor(header)
	if !ok {
		p.t.Fatalf("peer expected a start marker, got 0x%02X", header)
	}

	blk, err := ParseBlock(header, p.readN(frameSize(size, mode)), mode)
	require.NoError(p.t, err)

	return blk
}

// drain returns everything the engine writes until it stays quiet for d.
func (p *testPeer) drain(d time.Duration) []byte {
	var out []byte
	for {
		select {
		case b, ok := <-p.in:
			if !ok {
				return out
			}
			out = append(out, b)
		case <-time.After(d):
			return out
		}
	}
}

type outcome struct {
	res Result
	err error
}

func goSend(ctx context.Context, e *Engine, data []byte) <-chan outcome {
	done := make(chan outcome, 1)
	go func() {
		res, err := e.Send(ctx, bytes.NewReader(data))
		done <- outcome{res, err}
	}()

	return done
}

func goReceive(ctx context.Context, e *Engine, w *bytes.Buffer) <-chan outcome {
	done := make(chan outcome, 1)
	go func() {
		res, err := e.Receive(ctx, w)
		done <- outcome{res, err}
	}()

	return done
}

func wait(t *testing.T, done <-chan outcome) outcome {
	t.Helper()

	select {
	case o := <-done:
		return o
	case <-time.After(30 * time.Second):
		t.Fatal("transfer did not finish")
		return outcome{}
	}
}

// testData returns n bytes that never end in the pad byte.
func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	if n > 0 && data[n-1] == DefaultPadByte {
		data[n-1] = 0
	}

	return data
}

func padded(data []byte, size int) []byte {
	out := append([]byte(nil), data...)
	for len(out)%size != 0 {
		out = append(out, DefaultPadByte)
	}

	return out
}
