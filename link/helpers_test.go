package link

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newPipeChannel returns a Channel over the local end of net.Pipe and the
// remote end for driving the peer.
func newPipeChannel(t *testing.T, opts ...Option) (Channel, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	ch, err := NewConnChannel(local, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	return ch, remote
}

// mustWrite writes data to w, failing the test on error.
func mustWrite(t *testing.T, w io.Writer, data []byte) {
	t.Helper()

	if _, err := w.Write(data); err != nil {
		t.Errorf("mustWrite: %v", err)
	}
}

// readExactly reads exactly n bytes from c within a second.
func readExactly(t *testing.T, c net.Conn, n int) []byte {
	t.Helper()

	_ = c.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, n)
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Errorf("readExactly: %v", err)
	}

	return buf
}
