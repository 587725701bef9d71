package link

import (
	"errors"
	"net"
	"os"
	"strings"
	"time"
)

type connPort struct {
	conn         net.Conn
	writeTimeout time.Duration
}

// NewConnChannel wraps a net.Conn, e.g. a TCP connection to a serial device
// server or one end of net.Pipe.
func NewConnChannel(conn net.Conn, opts ...Option) (Channel, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	name := "conn"
	if addr := conn.RemoteAddr(); addr != nil {
		name = addr.String()
	}

	return newStream(name, &connPort{conn: conn, writeTimeout: o.writeTimeout}, o.probe), nil
}

// Open opens device as a serial port, or dials it when it has the form
// "tcp://host:port".
func Open(device string, opts ...Option) (Channel, error) {
	addr, ok := strings.CutPrefix(device, "tcp://")
	if !ok {
		return OpenSerial(device, opts...)
	}

	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("tcp", addr, o.dialTimeout)
	if err != nil {
		return nil, err
	}

	return NewConnChannel(conn, opts...)
}

func (p *connPort) readTimeout(buf []byte, d time.Duration) (int, error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return 0, err
	}

	n, err := p.conn.Read(buf)
	if err != nil && isTimeoutError(err) {
		return n, nil
	}

	return n, err
}

func (p *connPort) write(buf []byte) (int, error) {
	if p.writeTimeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			return 0, err
		}
	}

	return p.conn.Write(buf)
}

func (p *connPort) close() error {
	err := p.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

func isTimeoutError(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
