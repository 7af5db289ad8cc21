// Package fifo implements the reusable one-shot readable/writable pipe
// abstraction described in spec §4.2: create, open non-blocking, read until
// the writer closes, and on EOF tear down and recreate so the next external
// writer sees a fresh pipe.
package fifo

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Fifo is a named pipe on disk together with the currently-open descriptor
// for it, if any. The zero value is not usable; construct with New.
type Fifo struct {
	dir   string
	path  string
	flags int
	perm  os.FileMode
	file  *os.File
	log   logrus.FieldLogger
}

// New creates (or recreates) the FIFO at path and opens it with flags,
// which must include exactly one of O_RDONLY/O_WRONLY. O_NONBLOCK is always
// added. dir is the containing directory, used only for log context.
func New(dir, path string, flags int, log logrus.FieldLogger) (*Fifo, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	fo := &Fifo{dir: dir, path: path, flags: flags, perm: 0666, log: log}
	if err := fo.Reset(); err != nil {
		return nil, err
	}
	return fo, nil
}

// Reset unlinks any existing entry at the FIFO's path, closes the
// previously held descriptor if any, creates a fresh FIFO with mode 0666,
// and opens it non-blocking with the configured flags. ENOENT on unlink and
// EEXIST on create are ignored; any other OS error is returned, since the
// caller (per spec §4.2) treats FIFO creation failure as fatal for paths
// that must exist.
func (fo *Fifo) Reset() error {
	if fo.file != nil {
		fo.file.Close()
		fo.file = nil
	}

	if err := unix.Unlink(fo.path); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("fifo: unlink %s: %w", fo.path, err)
	}

	if err := unix.Mkfifo(fo.path, uint32(fo.perm)); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("fifo: mkfifo %s: %w", fo.path, err)
	}

	f, err := os.OpenFile(fo.path, fo.flags|unix.O_NONBLOCK, fo.perm)
	if err != nil {
		return fmt.Errorf("fifo: open %s: %w", fo.path, err)
	}
	fo.file = f

	fo.log.WithField("path", fo.path).Debug("fifo reset")
	return nil
}

// Fd returns the underlying file descriptor, for use in a poll/select
// readiness set. Returns -1 if the FIFO is not currently open.
func (fo *Fifo) Fd() int {
	if fo.file == nil {
		return -1
	}
	return int(fo.file.Fd())
}

// Path returns the filesystem path of the FIFO.
func (fo *Fifo) Path() string { return fo.path }

// Read attempts one non-blocking read into buf. It returns (n, true, nil)
// on data, (0, false, nil) when there is currently no data (EWOULDBLOCK, or
// the writer closed and the FIFO has been reset), and (0, false, err) on an
// unexpected OS error. EINTR is retried internally.
func (fo *Fifo) Read(buf []byte) (int, bool, error) {
	n, eof, err := fo.ReadChunk(buf)
	if err != nil || eof || n == 0 {
		return 0, false, err
	}
	return n, true, nil
}

// ReadChunk behaves like Read but distinguishes "no data right now"
// (n == 0, eof == false) from "the writer closed" (n == 0, eof == true).
// The transfer engine needs this distinction: an idle file_in and a
// completed file_in both read zero bytes, but only the latter ends a
// transfer (spec §4.7, "INPROGRESS, file_in EOF -> NONE"). The FIFO is
// still reset in the EOF case so the next writer gets a fresh pipe.
func (fo *Fifo) ReadChunk(buf []byte) (n int, eof bool, err error) {
	if fo.file == nil {
		if err := fo.Reset(); err != nil {
			return 0, false, err
		}
	}

	for {
		n, rerr := fo.file.Read(buf)
		if rerr == nil {
			if n == 0 {
				if err := fo.Reset(); err != nil {
					return 0, false, err
				}
				return 0, true, nil
			}
			return n, false, nil
		}

		if errors.Is(rerr, unix.EINTR) {
			continue
		}
		if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) {
			return 0, false, nil
		}
		if errors.Is(rerr, io.EOF) {
			if err := fo.Reset(); err != nil {
				return 0, false, err
			}
			return 0, true, nil
		}
		return 0, false, fmt.Errorf("fifo: read %s: %w", fo.path, rerr)
	}
}

// Close releases the held descriptor without removing the FIFO from disk.
func (fo *Fifo) Close() error {
	if fo.file == nil {
		return nil
	}
	err := fo.file.Close()
	fo.file = nil
	return err
}

// Remove closes the descriptor and unlinks the FIFO from disk.
func (fo *Fifo) Remove() error {
	fo.Close()
	if err := unix.Unlink(fo.path); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("fifo: remove %s: %w", fo.path, err)
	}
	return nil
}

// PollWait blocks on the given set of file descriptors for up to
// timeoutMillis milliseconds, returning the subset that are readable. It is
// the multiplex wait described in spec §4.8, layered directly over
// unix.Poll so the event loop's single control flow never spawns a reader
// goroutine per FIFO.
func PollWait(fds []int, timeoutMillis int) ([]int, error) {
	if len(fds) == 0 {
		return nil, nil
	}
	pfds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pfds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}

	for {
		_, err := unix.Poll(pfds, timeoutMillis)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return nil, fmt.Errorf("fifo: poll: %w", err)
	}

	var ready []int
	for i, pfd := range pfds {
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready = append(ready, fds[i])
		}
	}
	return ready, nil
}
