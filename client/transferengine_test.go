package client

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestClient(t *testing.T, tp *fakeTransport) (*Client, *Friend) {
	t.Helper()
	dir := t.TempDir()
	log := logrus.New()
	log.SetOutput(os.Stderr)

	f, err := newFriend(dir, 7, [32]byte{1, 2, 3}, log)
	if err != nil {
		t.Fatalf("newFriend: %v", err)
	}

	c := &Client{
		log:       log,
		transport: tp,
		friends:   map[uint32]*Friend{7: f},
	}
	return c, f
}

func writeFileIn(t *testing.T, f *Friend, data string) {
	t.Helper()
	w, err := os.OpenFile(f.FileIn.Path(), os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open file_in writer: %v", err)
	}
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatalf("write file_in: %v", err)
	}
	w.Close()
}

func TestDriveSendStartsThenSendsChunks(t *testing.T) {
	tp := newFakeTransport()
	c, f := newTestClient(t, tp)

	c.driveSend(f)
	if f.Tx.State != SendInitiated {
		t.Fatalf("expected SendInitiated, got %v", f.Tx.State)
	}

	c.driveSendControl(f, FileControlResume)
	if f.Tx.State != SendInProgress {
		t.Fatalf("expected SendInProgress, got %v", f.Tx.State)
	}

	writeFileIn(t, f, "hello world")
	c.readAndSendChunk(f, 1024)
	if len(tp.sentChunks) != 1 || string(tp.sentChunks[0]) != "hello world" {
		t.Fatalf("unexpected sent chunks: %v", tp.sentChunks)
	}
	if f.Tx.Position != uint64(len("hello world")) {
		t.Fatalf("unexpected position: %d", f.Tx.Position)
	}
}

func TestReadAndSendChunkEOFCompletesSend(t *testing.T) {
	tp := newFakeTransport()
	c, f := newTestClient(t, tp)
	f.Tx = Send{State: SendInProgress, FileNumber: 1}

	w, err := os.OpenFile(f.FileIn.Path(), os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	w.Close() // immediate EOF, no bytes written

	// Drain until ReadChunk observes the EOF (the fifo's first read may
	// race the reset, so retry like the real loop would across ticks).
	for i := 0; i < 5 && f.Tx.State != SendNone; i++ {
		c.readAndSendChunk(f, 64)
	}
	if f.Tx.State != SendNone {
		t.Fatalf("expected send to complete, got state %v", f.Tx.State)
	}
	if len(tp.controlsSent) == 0 || tp.controlsSent[len(tp.controlsSent)-1] != FileControlCancel {
		t.Fatalf("expected a CANCEL completion signal, got %v", tp.controlsSent)
	}
}

func TestPendingBufRetriedOnCooldownClear(t *testing.T) {
	tp := newFakeTransport()
	tp.rejectSendChunk = true
	c, f := newTestClient(t, tp)
	f.Tx = Send{State: SendInProgress, FileNumber: 1}

	writeFileIn(t, f, "data")
	c.readAndSendChunk(f, 64)
	if f.Tx.PendingBuf == nil || !f.Tx.Cooldown {
		t.Fatalf("expected pending buffer and cooldown after rejected send")
	}

	tp.rejectSendChunk = false
	c.driveSendPending(f)
	if f.Tx.PendingBuf != nil || f.Tx.Cooldown {
		t.Fatalf("expected pending buffer cleared after retry succeeds")
	}
	if len(tp.sentChunks) != 1 || string(tp.sentChunks[0]) != "data" {
		t.Fatalf("unexpected sent chunks: %v", tp.sentChunks)
	}
}

func TestCancelTransfersResetsBothDirections(t *testing.T) {
	tp := newFakeTransport()
	c, f := newTestClient(t, tp)
	f.Tx = Send{State: SendInProgress, FileNumber: 3}
	f.Rx = Receive{State: RecvPending, FileNumber: 4, Filename: "pic.png"}

	c.cancelTransfers(f)

	if f.Tx.State != SendNone {
		t.Fatalf("expected send reset, got %v", f.Tx.State)
	}
	if f.Rx.State != RecvNone {
		t.Fatalf("expected receive reset, got %v", f.Rx.State)
	}
}

func TestDriveSendControlPauseResume(t *testing.T) {
	tp := newFakeTransport()
	c, f := newTestClient(t, tp)
	f.Tx = Send{State: SendInProgress, FileNumber: 1}

	c.driveSendControl(f, FileControlPause)
	if f.Tx.State != SendPaused {
		t.Fatalf("expected SendPaused, got %v", f.Tx.State)
	}

	c.driveSendControl(f, FileControlResume)
	if f.Tx.State != SendInProgress {
		t.Fatalf("expected SendInProgress after resume, got %v", f.Tx.State)
	}

	c.driveSendControl(f, FileControlCancel)
	if f.Tx.State != SendNone {
		t.Fatalf("expected SendNone after cancel, got %v", f.Tx.State)
	}
}
