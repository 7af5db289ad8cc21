package fifo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestReadNoDataThenWriteThenReset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in")

	fo, err := New(dir, path, os.O_RDONLY, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer fo.Remove()

	buf := make([]byte, 64)
	n, ok, err := fo.Read(buf)
	if err != nil || ok || n != 0 {
		t.Fatalf("expected no data before any writer, got n=%d ok=%v err=%v", n, ok, err)
	}

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	deadline := time.Now().Add(2 * time.Second)
	var got []byte
	for time.Now().Before(deadline) {
		n, ok, err := fo.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if ok {
			got = append(got, buf[:n]...)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if string(got) != "hello\n" {
		t.Fatalf("got %q, want %q", got, "hello\n")
	}

	// Writer closed: next reads must report no data, and the fifo must be
	// a fresh inode (spec §8: "the next two reads return no bytes and the
	// FIFO's inode is replaced").
	var before unix.Stat_t
	if err := unix.Stat(path, &before); err != nil {
		t.Fatalf("stat: %v", err)
	}

	for i := 0; i < 2; i++ {
		n, ok, err := fo.Read(buf)
		if err != nil || ok || n != 0 {
			t.Fatalf("read %d after close: n=%d ok=%v err=%v", i, n, ok, err)
		}
	}

	var after unix.Stat_t
	if err := unix.Stat(path, &after); err != nil {
		t.Fatalf("stat after reset: %v", err)
	}
	if before.Ino == after.Ino {
		t.Error("expected fifo inode to be replaced after reset")
	}
}

func TestPollWaitReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in")

	fo, err := New(dir, path, os.O_RDONLY, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer fo.Remove()

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer w.Close()
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ready, err := PollWait([]int{fo.Fd()}, 1000)
	if err != nil {
		t.Fatalf("PollWait: %v", err)
	}
	if len(ready) != 1 || ready[0] != fo.Fd() {
		t.Fatalf("expected fd %d ready, got %v", fo.Fd(), ready)
	}
}

func TestPollWaitTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in")

	fo, err := New(dir, path, os.O_RDONLY, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer fo.Remove()

	start := time.Now()
	ready, err := PollWait([]int{fo.Fd()}, 50)
	if err != nil {
		t.Fatalf("PollWait: %v", err)
	}
	if len(ready) != 0 {
		t.Fatalf("expected no ready fds, got %v", ready)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Error("PollWait returned suspiciously early")
	}
}
