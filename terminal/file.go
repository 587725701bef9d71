package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/arloliu/go-modemterm/xmodem"
)

// UnknownSize tells ReceiveFile to apply the trim policy instead of an
// exact length.
const UnknownSize int64 = -1

// ErrSizeMismatch is returned when fewer bytes than the expected size arrived.
var ErrSizeMismatch = errors.New("terminal: received size does not match expected size")

// SendFile sends the file at path. A missing or unreadable file fails before
// the channel is acquired.
func (t *Terminal) SendFile(ctx context.Context, path string) (xmodem.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return xmodem.Result{}, fmt.Errorf("terminal: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return xmodem.Result{}, fmt.Errorf("terminal: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return xmodem.Result{}, fmt.Errorf("terminal: %s is a directory", path)
	}

	var res xmodem.Result
	started := time.Now()
	err = t.Transfer(ctx, func(ctx context.Context, e *xmodem.Engine) error {
		t.logger.Info("terminal: sending file", "path", path, "size", info.Size())

		var err error
		res, err = e.Send(ctx, bufio.NewReader(f))

		return err
	})
	if errors.Is(err, ErrBusy) && res.SessionID == "" {
		return res, err
	}

	t.record(xmodem.DirectionSend, path, started, res, info.Size(), err)

	return res, err
}

// ReceiveFile receives into path. Data goes to a temporary file in the same
// directory that replaces path only after a successful transfer, so an abort
// leaves no partial file behind.
//
// expectedSize truncates the result to the exact length when it is known;
// pass UnknownSize to apply the trim policy.
func (t *Terminal) ReceiveFile(ctx context.Context, path string, expectedSize int64) (xmodem.Result, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".part-*")
	if err != nil {
		return xmodem.Result{}, fmt.Errorf("terminal: create %s: %w", path, err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	var res xmodem.Result
	started := time.Now()
	err = t.Transfer(ctx, func(ctx context.Context, e *xmodem.Engine) error {
		t.logger.Info("terminal: receiving file", "path", path)

		w := bufio.NewWriter(tmp)
		var err error
		res, err = e.Receive(ctx, w)
		if err != nil {
			return err
		}

		return w.Flush()
	})
	if errors.Is(err, ErrBusy) && res.SessionID == "" {
		return res, err
	}
	if err != nil {
		t.record(xmodem.DirectionReceive, path, started, res, 0, err)
		return res, err
	}

	size, err := t.trimFile(tmp, res.BlockSize, expectedSize)
	if err == nil {
		err = tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		t.record(xmodem.DirectionReceive, path, started, res, 0, err)
		return res, err
	}
	committed = true

	t.logger.Info("terminal: file received", "path", path, "size", size, "blocks", res.Blocks)
	t.record(xmodem.DirectionReceive, path, started, res, size, nil)

	return res, nil
}

// trimFile cuts the padding of the final block and returns the new size.
func (t *Terminal) trimFile(f *os.File, blockSize int, expectedSize int64) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()

	switch {
	case expectedSize >= 0:
		if expectedSize > size {
			return size, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, size, expectedSize)
		}
		size = expectedSize
	case t.trim == TrimNone:
		return size, nil
	default:
		if size, err = paddedLength(f, size, blockSize, t.engine.Config().PadByte()); err != nil {
			return 0, err
		}
	}

	if err := f.Truncate(size); err != nil {
		return 0, fmt.Errorf("terminal: truncate: %w", err)
	}

	return size, nil
}

// paddedLength returns size minus the run of pad bytes ending the last block.
func paddedLength(f io.ReaderAt, size int64, blockSize int, pad byte) (int64, error) {
	n := min(int64(blockSize), size)
	if n <= 0 {
		return size, nil
	}

	tail := make([]byte, n)
	if _, err := f.ReadAt(tail, size-n); err != nil {
		return 0, fmt.Errorf("terminal: read tail: %w", err)
	}

	i := len(tail)
	for i > 0 && tail[i-1] == pad {
		i--
	}

	return size - int64(len(tail)-i), nil
}
