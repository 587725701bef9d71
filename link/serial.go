package link

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Errors reported by OpenSerial for common device problems.
var (
	ErrPortNotFound = errors.New("link: serial port not found")
	ErrPortBusy     = errors.New("link: serial port busy")
	ErrPortDenied   = errors.New("link: serial port permission denied")
)

type serialPort struct {
	port    serial.Port
	timeout time.Duration
}

// OpenSerial opens a local serial device such as "/dev/ttyUSB0" or "COM1".
func OpenSerial(name string, opts ...Option) (Channel, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	mode := o.mode
	port, err := serial.Open(name, &mode)
	if err != nil {
		return nil, classifyOpenError(name, err)
	}

	if err := port.SetReadTimeout(o.probe); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("link: set read timeout on %s: %w", name, err)
	}

	return newStream(name, &serialPort{port: port, timeout: o.probe}, o.probe), nil
}

// ListSerialPorts returns the serial devices present on the system.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("link: list serial ports: %w", err)
	}

	return ports, nil
}

func (p *serialPort) readTimeout(buf []byte, d time.Duration) (int, error) {
	if d != p.timeout {
		if err := p.port.SetReadTimeout(d); err != nil {
			return 0, err
		}
		p.timeout = d
	}

	// go.bug.st/serial returns (0, nil) when the timeout expires.
	return p.port.Read(buf)
}

func (p *serialPort) write(buf []byte) (int, error) {
	return p.port.Write(buf)
}

func (p *serialPort) close() error {
	return p.port.Close()
}

func classifyOpenError(name string, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound:
			return fmt.Errorf("%w: %s", ErrPortNotFound, name)
		case serial.PortBusy:
			return fmt.Errorf("%w: %s", ErrPortBusy, name)
		case serial.PermissionDenied:
			return fmt.Errorf("%w: %s", ErrPortDenied, name)
		default:
		}
	}

	return fmt.Errorf("link: open %s: %w", name, err)
}
