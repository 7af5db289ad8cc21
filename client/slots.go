package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opd-ai/ratox-go/internal/fifo"
	"github.com/sirupsen/logrus"
)

// Slot is one of the five global directories described in spec §4.4: an
// `in` FIFO, an `out` sink (file or, for request, a directory), and an
// `err` file.
type Slot struct {
	Name        string
	Dir         string
	In          *fifo.Fifo
	OutPath     string // the out directory when OutIsFolder
	OutIsFolder bool
	ErrPath     string
}

// newSlot creates the slot's directory and its in/err/out entries.
func newSlot(root, name string, outIsFolder bool, log logrus.FieldLogger) (*Slot, error) {
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("slot %s: mkdir: %w", name, err)
	}

	s := &Slot{Name: name, Dir: dir, OutIsFolder: outIsFolder}

	in, err := fifo.New(dir, filepath.Join(dir, "in"), os.O_RDONLY, log)
	if err != nil {
		return nil, fmt.Errorf("slot %s: in fifo: %w", name, err)
	}
	s.In = in

	if outIsFolder {
		outDir := filepath.Join(dir, "out")
		if err := os.MkdirAll(outDir, 0700); err != nil {
			return nil, fmt.Errorf("slot %s: mkdir out: %w", name, err)
		}
		s.OutPath = outDir
	} else {
		s.OutPath = filepath.Join(dir, "out")
		if err := truncateCreate(s.OutPath); err != nil {
			return nil, fmt.Errorf("slot %s: create out: %w", name, err)
		}
	}

	s.ErrPath = filepath.Join(dir, "err")
	if err := truncateCreate(s.ErrPath); err != nil {
		return nil, fmt.Errorf("slot %s: create err: %w", name, err)
	}

	return s, nil
}

func truncateCreate(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}

// WriteOut truncates and rewrites the slot's out file. Not valid for a
// folder-backed slot (request).
func (s *Slot) WriteOut(data []byte) error {
	if s.OutIsFolder {
		return fmt.Errorf("slot %s: out is a folder", s.Name)
	}
	return os.WriteFile(s.OutPath, data, 0600)
}

// WriteErr truncates and rewrites the slot's err file.
func (s *Slot) WriteErr(msg string) error {
	return os.WriteFile(s.ErrPath, []byte(msg+"\n"), 0600)
}

// Slots is the collection of the five global slots plus the `id` file.
type Slots struct {
	Root    string
	Name    *Slot
	Status  *Slot
	State   *Slot
	Request *Slot
	Nospam  *Slot
	IDPath  string
}

// NewSlots creates every global slot directory under root.
func NewSlots(root string, log logrus.FieldLogger) (*Slots, error) {
	s := &Slots{Root: root, IDPath: filepath.Join(root, "id")}

	var err error
	if s.Name, err = newSlot(root, "name", false, log); err != nil {
		return nil, err
	}
	if s.Status, err = newSlot(root, "status", false, log); err != nil {
		return nil, err
	}
	if s.State, err = newSlot(root, "state", false, log); err != nil {
		return nil, err
	}
	if s.Request, err = newSlot(root, "request", true, log); err != nil {
		return nil, err
	}
	if s.Nospam, err = newSlot(root, "nospam", false, log); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteID rewrites the `id` file with the current 38-byte address, 76
// uppercase hex characters plus a trailing newline (spec §3, §6).
func (s *Slots) WriteID(address string) error {
	return os.WriteFile(s.IDPath, []byte(address+"\n"), 0644)
}

// FDs returns every slot's `in` descriptor, for the event loop's readable
// set (spec §4.8 step 3).
func (s *Slots) FDs() []int {
	return []int{s.Name.In.Fd(), s.Status.In.Fd(), s.State.In.Fd(), s.Request.In.Fd(), s.Nospam.In.Fd()}
}

// Close tears down every slot's FIFO and directory, in the order spec §5
// describes for orderly shutdown (unlink FIFOs, rmdir slot directories).
func (s *Slots) Close() {
	for _, slot := range []*Slot{s.Name, s.Status, s.State, s.Request, s.Nospam} {
		slot.In.Remove()
	}
	os.Remove(s.IDPath)
	for _, slot := range []*Slot{s.Name, s.Status, s.State, s.Request, s.Nospam} {
		if slot.OutIsFolder {
			os.RemoveAll(slot.OutPath)
		} else {
			os.Remove(slot.OutPath)
		}
		os.Remove(slot.ErrPath)
		os.Remove(slot.Dir)
	}
}
