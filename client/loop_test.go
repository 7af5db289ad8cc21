package client

import (
	"testing"
	"time"
)

func TestReadSetExcludesOfflineFriendTextAndFile(t *testing.T) {
	c, tp := newDispatchClient(t)
	f, err := newFriend(c.cfg.ConfigDir, 1, [32]byte{1}, c.log)
	if err != nil {
		t.Fatalf("newFriend: %v", err)
	}
	c.friends[1] = f
	c.friendOrder = []uint32{1}
	tp.friendStatus[1] = ConnNone

	fds := c.readSet()
	for _, fd := range fds {
		if fd == f.TextIn.Fd() || fd == f.FileIn.Fd() {
			t.Fatalf("offline friend's text_in/file_in should not be in the readable set")
		}
	}

	found := false
	for _, fd := range fds {
		if fd == f.Remove.Fd() {
			found = true
		}
	}
	if !found {
		t.Fatalf("remove fifo must always be in the readable set")
	}

	tp.friendStatus[1] = ConnUDP
	fds = c.readSet()
	hasText := false
	for _, fd := range fds {
		if fd == f.TextIn.Fd() {
			hasText = true
		}
	}
	if !hasText {
		t.Fatalf("online friend's text_in should be in the readable set")
	}
}

func TestReadSetExcludesFileInWhenSendPaused(t *testing.T) {
	c, tp := newDispatchClient(t)
	f, err := newFriend(c.cfg.ConfigDir, 1, [32]byte{1}, c.log)
	if err != nil {
		t.Fatalf("newFriend: %v", err)
	}
	f.Tx.State = SendPaused
	c.friends[1] = f
	c.friendOrder = []uint32{1}
	tp.friendStatus[1] = ConnUDP

	for _, fd := range c.readSet() {
		if fd == f.FileIn.Fd() {
			t.Fatalf("file_in should not be readable while the send is paused")
		}
	}
}

func TestSweepCancelsTransfersForOfflineFriends(t *testing.T) {
	c, tp := newDispatchClient(t)
	f, err := newFriend(c.cfg.ConfigDir, 1, [32]byte{1}, c.log)
	if err != nil {
		t.Fatalf("newFriend: %v", err)
	}
	f.Tx = Send{State: SendInProgress, FileNumber: 1}
	c.friends[1] = f
	c.friendOrder = []uint32{1}
	tp.friendStatus[1] = ConnNone

	c.sweep()

	if f.Tx.State != SendNone {
		t.Fatalf("expected send cancelled for offline friend, got %v", f.Tx.State)
	}
}

func TestClearCooldownsAfterIntervalElapsed(t *testing.T) {
	c, tp := newDispatchClient(t)
	f, err := newFriend(c.cfg.ConfigDir, 1, [32]byte{1}, c.log)
	if err != nil {
		t.Fatalf("newFriend: %v", err)
	}
	f.Tx = Send{State: SendInProgress, Cooldown: true, LastBlock: time.Now().Add(-time.Hour)}
	c.friends[1] = f
	c.friendOrder = []uint32{1}
	_ = tp

	c.clearCooldowns()

	if f.Tx.Cooldown {
		t.Fatalf("expected cooldown cleared after interval elapsed")
	}
}
