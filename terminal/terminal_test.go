package terminal

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-modemterm/link"
	"github.com/arloliu/go-modemterm/listener"
	"github.com/arloliu/go-modemterm/modem"
	"github.com/arloliu/go-modemterm/xmodem"
)

func testEngineConfig(t *testing.T, opts ...xmodem.Option) *xmodem.Config {
	t.Helper()

	defaults := []xmodem.Option{
		xmodem.WithStartTimeout(500 * time.Millisecond),
		xmodem.WithAckTimeout(500 * time.Millisecond),
		xmodem.WithBlockTimeout(500 * time.Millisecond),
		xmodem.WithCharTimeout(50 * time.Millisecond),
		xmodem.WithNegotiateInterval(100 * time.Millisecond),
	}
	cfg, err := xmodem.NewConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	return cfg
}

// newTestTerminal starts a Terminal on one end of a loopback TCP connection
// and returns the remote end as a channel.
func newTestTerminal(t *testing.T, opts ...Option) (*Terminal, link.Channel, net.Conn) {
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

	local, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	remote, ok := <-accepted
	require.True(t, ok)

	ch, err := link.NewConnChannel(local)
	require.NoError(t, err)
	remoteCh, err := link.NewConnChannel(remote)
	require.NoError(t, err)

	defaults := []Option{
		WithEngineConfig(testEngineConfig(t)),
		WithListenerOptions(listener.WithPollInterval(5*time.Millisecond), listener.WithLineTimeout(100*time.Millisecond)),
		WithGuardTime(10 * time.Millisecond),
	}
	term, err := New(ch, append(defaults, opts...)...)
	require.NoError(t, err)
	require.NoError(t, term.Start(context.Background()))

	t.Cleanup(func() {
		_ = term.Close()
		_ = remoteCh.Close()
	})

	return term, remoteCh, remote
}

func remoteEngine(t *testing.T, ch link.Channel, opts ...xmodem.Option) *xmodem.Engine {
	return xmodem.NewEngine(ch, testEngineConfig(t, opts...))
}

type outcome struct {
	res xmodem.Result
	err error
}

func testData(n int, last byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*13 + 1)
	}
	if n > 0 {
		data[n-1] = last
	}

	return data
}

func readRemoteLine(t *testing.T, ch link.Channel) string {
	t.Helper()

	var line []byte
	for {
		b, err := link.ReadByte(ch, time.Second)
		require.NoError(t, err)
		line = append(line, b)
		if b == '\n' {
			return string(line)
		}
	}
}

func TestSendFile(t *testing.T) {
	term, remoteCh, _ := newTestTerminal(t)

	data := testData(1000, 'x')
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	var received bytes.Buffer
	done := make(chan outcome, 1)
	go func() {
		res, err := remoteEngine(t, remoteCh).Receive(context.Background(), &received)
		done <- outcome{res, err}
	}()

	res, err := term.SendFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Bytes)

	remote := <-done
	require.NoError(t, remote.err)
	assert.Equal(t, data, bytes.TrimRight(received.Bytes(), "\x1a"))
	assert.NotEqual(t, link.TransferOwned, term.Owner())

	history := term.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Succeeded())
	assert.Equal(t, xmodem.DirectionSend, history[0].Direction)
	assert.Equal(t, res.SessionID, history[0].ID)
	assert.Equal(t, uint64(1), term.Metrics().TransferCount)
}

func TestSendFile_Missing(t *testing.T) {
	term, _, _ := newTestTerminal(t)

	_, err := term.SendFile(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.NotEqual(t, link.TransferOwned, term.Owner())
	assert.Empty(t, term.History())
}

func receiveFrom(t *testing.T, term *Terminal, remoteCh link.Channel, data []byte, size int64, opts ...xmodem.Option) (string, xmodem.Result, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "in.bin")
	done := make(chan outcome, 1)
	go func() {
		res, err := remoteEngine(t, remoteCh, opts...).Send(context.Background(), bytes.NewReader(data))
		done <- outcome{res, err}
	}()

	res, err := term.ReceiveFile(context.Background(), path, size)
	<-done

	return path, res, err
}

func TestReceiveFile_TrimPadding(t *testing.T) {
	term, remoteCh, _ := newTestTerminal(t)
	data := testData(300, 'z')

	path, res, err := receiveFrom(t, term, remoteCh, data, UnknownSize)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Blocks)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	history := term.History()
	require.Len(t, history, 1)
	assert.Equal(t, int64(300), history[0].Size)
}

// A payload that itself ends in pad bytes survives when the size is known.
func TestReceiveFile_ExactSize(t *testing.T) {
	term, remoteCh, _ := newTestTerminal(t)
	data := testData(200, xmodem.DefaultPadByte)

	path, _, err := receiveFrom(t, term, remoteCh, data, int64(len(data)))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReceiveFile_SizeLargerThanReceived(t *testing.T) {
	term, remoteCh, _ := newTestTerminal(t)

	path, _, err := receiveFrom(t, term, remoteCh, testData(10, 'a'), 5000)
	require.ErrorIs(t, err, ErrSizeMismatch)
	assert.NoFileExists(t, path)
}

func TestReceiveFile_TrimNone(t *testing.T) {
	term, remoteCh, _ := newTestTerminal(t, WithTrimPolicy(TrimNone))
	data := testData(100, 'q')

	path, _, err := receiveFrom(t, term, remoteCh, data, UnknownSize)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, xmodem.BlockSize128)
	assert.Equal(t, data, got[:100])
	assert.Equal(t, bytes.Repeat([]byte{xmodem.DefaultPadByte}, 28), got[100:])
}

func TestReceiveFile_1K(t *testing.T) {
	term, remoteCh, _ := newTestTerminal(t)
	data := testData(2500, 'k')

	path, res, err := receiveFrom(t, term, remoteCh, data, UnknownSize, xmodem.WithBlockSize(xmodem.BlockSize1K))
	require.NoError(t, err)
	assert.Equal(t, xmodem.BlockSize1K, res.BlockSize)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReceiveFile_AbortRemovesPartial(t *testing.T) {
	term, remoteCh, _ := newTestTerminal(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "in.bin")

	go func() {
		// answer the first start byte with a cancel
		b, err := link.ReadByte(remoteCh, 2*time.Second)
		if err == nil && (b == xmodem.CRC || b == xmodem.NAK) {
			_, _ = remoteCh.Write([]byte{xmodem.CAN, xmodem.CAN})
		}
	}()

	_, err := term.ReceiveFile(context.Background(), path, UnknownSize)
	require.ErrorIs(t, err, xmodem.ErrPeerCancelled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	history := term.History()
	require.Len(t, history, 1)
	assert.False(t, history[0].Succeeded())
}

// While one transfer holds the channel a second one is refused with ErrBusy
// and succeeds once the first has released it.
func TestTransfer_BusyThenSuccess(t *testing.T) {
	term, _, _ := newTestTerminal(t)

	holding := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- term.Transfer(context.Background(), func(context.Context, *xmodem.Engine) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	assert.Equal(t, link.TransferOwned, term.Owner())

	err := term.Transfer(context.Background(), func(context.Context, *xmodem.Engine) error {
		t.Error("second transfer must not run")
		return nil
	})
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-first)

	ran := false
	require.NoError(t, term.Transfer(context.Background(), func(context.Context, *xmodem.Engine) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestTransfer_ReleasedOnError(t *testing.T) {
	term, _, _ := newTestTerminal(t)
	boom := errors.New("boom")

	err := term.Transfer(context.Background(), func(context.Context, *xmodem.Engine) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.NotEqual(t, link.TransferOwned, term.Owner())
}

func TestCommands_RefusedDuringTransfer(t *testing.T) {
	term, _, _ := newTestTerminal(t)

	err := term.Transfer(context.Background(), func(context.Context, *xmodem.Engine) error {
		assert.ErrorIs(t, term.Dial("5551234"), ErrBusy)
		assert.ErrorIs(t, term.Command("ATI"), ErrBusy)
		assert.ErrorIs(t, term.Answer(), ErrBusy)
		assert.ErrorIs(t, term.Speaker(true), ErrBusy)
		assert.ErrorIs(t, term.Hangup(context.Background()), ErrBusy)

		return nil
	})
	require.NoError(t, err)
}

func TestCommands_Written(t *testing.T) {
	term, remoteCh, _ := newTestTerminal(t)

	require.NoError(t, term.Dial("5551234"))
	assert.Equal(t, "ATDT5551234\r\n", readRemoteLine(t, remoteCh))

	require.NoError(t, term.Speaker(false))
	assert.Equal(t, "ATM0\r\n", readRemoteLine(t, remoteCh))

	require.NoError(t, term.Hangup(context.Background()))
	assert.Equal(t, "+++ATH\r\n", readRemoteLine(t, remoteCh))
}

func TestEvents_Notifications(t *testing.T) {
	term, _, remote := newTestTerminal(t)

	_, err := remote.Write([]byte("RING\r\nCONNECT 2400\r\n"))
	require.NoError(t, err)

	var got []listener.Notification
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case n := <-term.Events():
			got = append(got, n)
		case <-timeout:
			t.Fatal("missing notifications")
		}
	}

	assert.Equal(t, modem.ResultRing, got[0].Result.Code)
	assert.Equal(t, modem.ResultConnect, got[1].Result.Code)
	assert.Equal(t, 2400, got[1].Result.Speed)
}

func TestCancelTransfer(t *testing.T) {
	term, _, _ := newTestTerminal(t, WithEngineConfig(testEngineConfig(t, xmodem.WithNegotiateInterval(5*time.Second))))
	assert.False(t, term.CancelTransfer())

	path := filepath.Join(t.TempDir(), "x")
	done := make(chan error, 1)
	go func() {
		_, err := term.ReceiveFile(context.Background(), path, UnknownSize)
		done <- err
	}()

	require.Eventually(t, func() bool { return term.Owner() == link.TransferOwned }, 2*time.Second, time.Millisecond)
	require.Eventually(t, term.CancelTransfer, time.Second, time.Millisecond)

	select {
	case err := <-done:
		require.ErrorIs(t, err, xmodem.ErrUserCancelled)
	case <-time.After(3 * time.Second):
		t.Fatal("transfer not cancelled")
	}
}

func TestParseTrimPolicy(t *testing.T) {
	p, err := ParseTrimPolicy("none")
	require.NoError(t, err)
	assert.Equal(t, TrimNone, p)

	p, err = ParseTrimPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TrimPadding, p)
	assert.Equal(t, "padding", p.String())

	_, err = ParseTrimPolicy("sometimes")
	assert.Error(t, err)
}

func TestPaddedLength(t *testing.T) {
	data := append([]byte("abc"), bytes.Repeat([]byte{0x1A}, 125)...)

	n, err := paddedLength(bytes.NewReader(data), int64(len(data)), 128, 0x1A)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = paddedLength(bytes.NewReader(nil), 0, 128, 0x1A)
	require.NoError(t, err)
	assert.Zero(t, n)
}
