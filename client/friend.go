package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opd-ai/ratox-go/internal/fifo"
	"github.com/opd-ai/ratox-go/internal/hexid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Friend is a remote peer with whom a mutual connection has been
// established (spec §3). The event loop owns the collection exclusively;
// callbacks mutate it synchronously from within Transport.Iterate.
type Friend struct {
	ID        uint32
	PublicKey [32]byte
	IDStr     string // lowercase hex, also the directory name
	Dir       string
	Online    bool

	TextIn *fifo.Fifo
	FileIn *fifo.Fifo
	Remove *fifo.Fifo

	FileOutPath string
	fileOut     *os.File // lazily opened; nil until a reader attaches to a pending receive

	TextOutPath     string
	OnlinePath      string
	NamePath        string
	StatusPath      string
	StatePath       string
	FilePendingPath string

	Tx Send
	Rx Receive
}

// newFriend creates the friend's directory and every fixed file listed in
// spec §4.5. file_out is created as a FIFO node only; the receive state
// machine opens it lazily.
func newFriend(root string, id uint32, publicKey [32]byte, log logrus.FieldLogger) (*Friend, error) {
	idstr := hexid.EncodeLower(publicKey)
	dir := filepath.Join(root, idstr)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("friend %s: mkdir: %w", idstr, err)
	}

	f := &Friend{
		ID:        id,
		PublicKey: publicKey,
		IDStr:     idstr,
		Dir:       dir,

		TextOutPath:     filepath.Join(dir, "text_out"),
		OnlinePath:      filepath.Join(dir, "online"),
		NamePath:        filepath.Join(dir, "name"),
		StatusPath:      filepath.Join(dir, "status"),
		StatePath:       filepath.Join(dir, "state"),
		FilePendingPath: filepath.Join(dir, "file_pending"),
	}

	var err error
	if f.TextIn, err = fifo.New(dir, filepath.Join(dir, "text_in"), os.O_RDONLY, log); err != nil {
		return nil, err
	}
	if f.FileIn, err = fifo.New(dir, filepath.Join(dir, "file_in"), os.O_RDONLY, log); err != nil {
		return nil, err
	}
	if f.Remove, err = fifo.New(dir, filepath.Join(dir, "remove"), os.O_RDONLY, log); err != nil {
		return nil, err
	}

	f.FileOutPath = filepath.Join(dir, "file_out")
	if err := unix.Unlink(f.FileOutPath); err != nil && !errors.Is(err, unix.ENOENT) {
		return nil, fmt.Errorf("friend %s: unlink file_out: %w", idstr, err)
	}
	if err := unix.Mkfifo(f.FileOutPath, 0600); err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, fmt.Errorf("friend %s: mkfifo file_out: %w", idstr, err)
	}

	for _, p := range []string{f.TextOutPath} {
		file, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("friend %s: create %s: %w", idstr, p, err)
		}
		file.Close()
	}
	for _, p := range []string{f.OnlinePath, f.NamePath, f.StatusPath, f.StatePath, f.FilePendingPath} {
		if err := truncateCreate(p); err != nil {
			return nil, fmt.Errorf("friend %s: create %s: %w", idstr, p, err)
		}
	}

	f.Tx.State = SendNone
	f.Rx.State = RecvNone

	return f, nil
}

// writeStatic truncates and rewrites one of the friend's regular status
// files (spec §4.5: "rewritten in place ... on every update").
func (f *Friend) writeStatic(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

func (f *Friend) appendText(line string) error {
	file, err := os.OpenFile(f.TextOutPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(line)
	return err
}

// openFileOutNonBlocking attempts a non-blocking write-only open of
// file_out, succeeding only once an external reader has already opened it
// for reading (spec §4.7 PENDING -> INPROGRESS). It never recreates the
// FIFO node: doing so on every failed attempt would detach a reader that is
// already blocked waiting to be matched with a writer on that same inode.
func (f *Friend) openFileOutNonBlocking() (bool, error) {
	if f.fileOut != nil {
		return true, nil
	}
	file, err := os.OpenFile(f.FileOutPath, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			// No external reader has opened file_out yet.
			return false, nil
		}
		return false, err
	}
	f.fileOut = file
	return true, nil
}

// writeFileOut writes a chunk to the already-open file_out descriptor.
func (f *Friend) writeFileOut(data []byte) error {
	if f.fileOut == nil {
		return fmt.Errorf("friend %s: file_out not open", f.IDStr)
	}
	_, err := f.fileOut.Write(data)
	return err
}

// closeFileOut closes the daemon's write end of file_out and recreates a
// fresh FIFO node so the next receive starts clean (spec §4.2's reset
// protocol, applied from the writer's side here since the daemon, not an
// external process, is file_out's writer).
func (f *Friend) closeFileOut() {
	if f.fileOut != nil {
		f.fileOut.Close()
		f.fileOut = nil
	}
	unix.Unlink(f.FileOutPath)
	unix.Mkfifo(f.FileOutPath, 0600)
}

// destroy tears down every FIFO and removes the friend's directory (spec
// §3: "removing a friend removes its directory").
func (f *Friend) destroy() {
	f.TextIn.Remove()
	f.FileIn.Remove()
	f.Remove.Remove()
	f.closeFileOut()
	os.RemoveAll(f.Dir)
}

// eligibleForFileIn reports whether file_in should be in the readable set:
// spec §4.8 step 3, "send state is NONE or (INPROGRESS with no active
// cooldown)".
func (f *Friend) eligibleForFileIn() bool {
	switch f.Tx.State {
	case SendNone:
		return true
	case SendInProgress:
		return !f.Tx.Cooldown
	default:
		return false
	}
}
