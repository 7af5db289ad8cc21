package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opd-ai/ratox-go/config"
	"github.com/opd-ai/ratox-go/internal/store"
	"github.com/sirupsen/logrus"
)

func newDispatchClient(t *testing.T) (*Client, *fakeTransport) {
	t.Helper()
	dir := t.TempDir()
	log := logrus.New()
	log.SetOutput(os.Stderr)

	slots, err := NewSlots(dir, log)
	if err != nil {
		t.Fatalf("NewSlots: %v", err)
	}
	tp := newFakeTransport()
	st := store.New(filepath.Join(dir, "save.tox"), false, log)
	c := &Client{
		cfg:       &config.Config{ConfigDir: dir},
		log:       log,
		transport: tp,
		slots:     slots,
		requests:  NewRequests(slots.Request.OutPath, log),
		identity:  newIdentity(tp, st),
		friends:   make(map[uint32]*Friend),
	}
	return c, tp
}

func writeSlotIn(t *testing.T, s *Slot, line string) {
	t.Helper()
	w, err := os.OpenFile(s.In.Path(), os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open %s writer: %v", s.Name, err)
	}
	if _, err := w.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write %s: %v", s.Name, err)
	}
	w.Close()
}

// readSlotOut retries handler until the slot's `in` write is observed and
// the echo lands in `out` (opening and closing the writer races the fifo's
// own reset, same as the fifo package's own tests).
func readSlotOut(t *testing.T, s *Slot, dispatch func()) string {
	t.Helper()
	for i := 0; i < 5; i++ {
		dispatch()
		data, err := os.ReadFile(s.OutPath)
		if err != nil {
			t.Fatalf("read %s out: %v", s.Name, err)
		}
		if len(data) > 0 {
			return string(data)
		}
	}
	return ""
}

func TestHandleNameInEchoesToOut(t *testing.T) {
	c, _ := newDispatchClient(t)
	writeSlotIn(t, c.slots.Name, "alice")

	got := readSlotOut(t, c.slots.Name, c.handleNameIn)
	if got != "alice\n" {
		t.Fatalf("expected name/out to contain %q, got %q", "alice\n", got)
	}
}

func TestHandleStatusInEchoesToOut(t *testing.T) {
	c, _ := newDispatchClient(t)
	writeSlotIn(t, c.slots.Status, "away for lunch")

	got := readSlotOut(t, c.slots.Status, c.handleStatusIn)
	if got != "away for lunch\n" {
		t.Fatalf("expected status/out to contain %q, got %q", "away for lunch\n", got)
	}
}

func TestHandleStateInEchoesToOut(t *testing.T) {
	c, _ := newDispatchClient(t)
	writeSlotIn(t, c.slots.State, "busy")

	got := readSlotOut(t, c.slots.State, c.handleStateIn)
	if got != "busy\n" {
		t.Fatalf("expected state/out to contain %q, got %q", "busy\n", got)
	}
}

func TestHandleNospamInEchoesToOutAndRewritesID(t *testing.T) {
	c, _ := newDispatchClient(t)
	writeSlotIn(t, c.slots.Nospam, "0123abcd")

	got := readSlotOut(t, c.slots.Nospam, c.handleNospamIn)
	if got != "0123ABCD\n" {
		t.Fatalf("expected nospam/out to contain %q, got %q", "0123ABCD\n", got)
	}

	idData, err := os.ReadFile(c.slots.IDPath)
	if err != nil {
		t.Fatalf("read id file: %v", err)
	}
	if len(idData) == 0 {
		t.Fatalf("expected id file rewritten after nospam change")
	}
}

func TestHandleNameInEmptyWriteLeavesOutUntouched(t *testing.T) {
	c, _ := newDispatchClient(t)
	if err := c.slots.Name.WriteOut([]byte("original\n")); err != nil {
		t.Fatalf("seed name/out: %v", err)
	}
	writeSlotIn(t, c.slots.Name, "")

	for i := 0; i < 5; i++ {
		c.handleNameIn()
	}

	data, err := os.ReadFile(c.slots.Name.OutPath)
	if err != nil {
		t.Fatalf("read name/out: %v", err)
	}
	if string(data) != "original\n" {
		t.Fatalf("expected name/out untouched by an empty write, got %q", data)
	}
}

func TestHandleStateInRejectsUnknownWord(t *testing.T) {
	c, _ := newDispatchClient(t)
	writeSlotIn(t, c.slots.State, "confused")

	// Drain until the write is observed (opening and closing the writer
	// races the fifo's own reset, same as the fifo package's own tests).
	for i := 0; i < 5; i++ {
		c.handleStateIn()
	}

	errData, err := os.ReadFile(c.slots.State.ErrPath)
	if err != nil {
		t.Fatalf("read err file: %v", err)
	}
	if len(errData) == 0 {
		t.Fatalf("expected an error written for unknown state word")
	}
}

func TestHandleRequestInRejectsShortAddress(t *testing.T) {
	c, _ := newDispatchClient(t)
	writeSlotIn(t, c.slots.Request, "deadbeef hi")

	for i := 0; i < 5; i++ {
		c.handleRequestIn()
	}

	errData, err := os.ReadFile(c.slots.Request.ErrPath)
	if err != nil {
		t.Fatalf("read err file: %v", err)
	}
	if len(errData) == 0 {
		t.Fatalf("expected a length error for a short address")
	}
}

func TestAcceptRequestCreatesFriendAndClearsLedger(t *testing.T) {
	c, tp := newDispatchClient(t)
	pk := [32]byte{9, 9, 9}
	req, err := c.requests.Add(pk, "abc123", "hi there")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	c.acceptRequest(req)

	if tp.addedNoRequestPK != pk {
		t.Fatalf("expected AddFriendNoRequest called with the request's public key")
	}
	if _, ok := c.requests.Get(req.IDStr); ok {
		t.Fatalf("expected request removed from ledger after accept")
	}
	if len(c.friends) != 1 {
		t.Fatalf("expected one friend created, got %d", len(c.friends))
	}
}

func TestRejectRequestDeletesTransportEntry(t *testing.T) {
	c, tp := newDispatchClient(t)
	pk := [32]byte{4, 4, 4}
	req, err := c.requests.Add(pk, "def456", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	c.rejectRequest(req)

	if tp.addedNoRequestPK != pk {
		t.Fatalf("expected AddFriendNoRequest called before delete")
	}
	if tp.deletedFriend != 1 {
		t.Fatalf("expected the created transport friend to be deleted")
	}
	if _, ok := c.requests.Get(req.IDStr); ok {
		t.Fatalf("expected request removed from ledger after reject")
	}
}
