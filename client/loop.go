package client

import (
	"time"

	"github.com/opd-ai/ratox-go/internal/fifo"
)

// tick runs one full iteration of the event loop (spec §4.8): bootstrap
// bookkeeping, the transport's own iterate call, assembling the readable
// set, waiting on it, sweeping offline friends and retrying blocked sends,
// accepting pending receives, then dispatching whatever was readable.
func (c *Client) tick() {
	c.maybeBootstrap()
	c.transport.Iterate()

	fds := c.readSet()
	timeoutMillis := int(c.transport.IterationInterval() / time.Millisecond)
	readyFds, err := fifo.PollWait(fds, timeoutMillis)
	if err != nil {
		c.log.WithError(err).Error("poll failed")
		return
	}

	c.clearCooldowns()
	c.sweep()
	c.acceptPendingReceives()

	ready := make(map[int]bool, len(readyFds))
	for _, fd := range readyFds {
		ready[fd] = true
	}
	c.dispatchSlots(ready)
	c.dispatchRequests(ready)
	c.dispatchFriends(ready)
}

// readSet assembles every descriptor the loop should wait on (spec §4.8
// step 3): every global slot's `in`, every pending request's FIFO, every
// friend's `remove` unconditionally, and `text_in`/`file_in` gated on the
// friend being online and, for file_in, eligible per its send state.
func (c *Client) readSet() []int {
	fds := append([]int{}, c.slots.FDs()...)
	fds = append(fds, c.requests.FDs()...)

	for _, id := range c.friendOrder {
		f := c.friends[id]
		fds = append(fds, f.Remove.Fd())
		if c.transport.FriendConnectionStatus(id) == ConnNone {
			continue
		}
		fds = append(fds, f.TextIn.Fd())
		if f.eligibleForFileIn() {
			fds = append(fds, f.FileIn.Fd())
		}
	}
	return fds
}

// clearCooldowns releases a send's back-off once cooldownIntervals
// iteration intervals have elapsed since its LastBlock (spec §4.7:
// transient enqueue failures are retried, not fatal).
func (c *Client) clearCooldowns() {
	interval := c.transport.IterationInterval()
	for _, id := range c.friendOrder {
		f := c.friends[id]
		if f.Tx.Cooldown && time.Since(f.Tx.LastBlock) >= interval*cooldownIntervals {
			f.Tx.Cooldown = false
		}
	}
}

// sweep cancels transfers for friends that went offline and retries any
// send still holding a pending chunk (spec §4.8 step 5).
func (c *Client) sweep() {
	for _, id := range c.friendOrder {
		f := c.friends[id]
		if c.transport.FriendConnectionStatus(id) == ConnNone {
			c.cancelTransfers(f)
			continue
		}
		if f.Tx.State == SendInProgress && f.Tx.PendingBuf != nil && !f.Tx.Cooldown {
			c.driveSendPending(f)
		}
	}
}

// acceptPendingReceives attempts to open file_out for every friend whose
// receive is PENDING; success (an external reader already opened it)
// resumes the transfer (spec §4.7: PENDING -> INPROGRESS).
func (c *Client) acceptPendingReceives() {
	for _, id := range c.friendOrder {
		f := c.friends[id]
		if f.Rx.State != RecvPending {
			continue
		}
		opened, err := f.openFileOutNonBlocking()
		if err != nil {
			c.log.WithError(err).WithField("friend_id", id).Warn("failed to open file_out")
			continue
		}
		if !opened {
			continue
		}
		if err := c.transport.FileControlSend(id, f.Rx.FileNumber, FileControlResume); err != nil {
			c.log.WithError(err).WithField("friend_id", id).Warn("failed to resume transfer")
			continue
		}
		f.Rx.State = RecvInProgress
		c.log.WithField("friend_id", id).Info("Rx in progress")
	}
}
