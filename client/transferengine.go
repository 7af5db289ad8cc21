package client

import "time"

// unknownSize is passed to the transport's file_send primitive as the file
// size, mirroring the original source's UINT64_MAX: the daemon streams
// file_in until the writer closes rather than announcing a size upfront.
const unknownSize = ^uint64(0)

// driveSend handles a readable-event on a friend's file_in, dispatching to
// the send state machine's two readable states (spec §4.7; INITIATED,
// PENDING and PAUSED are never in the readable set, see eligibleForFileIn).
func (c *Client) driveSend(f *Friend) {
	switch f.Tx.State {
	case SendNone:
		c.startSend(f)
	case SendInProgress:
		c.pumpSend(f)
	}
}

// startSend announces a new transfer of unknown size; the actual bytes on
// file_in are left untouched until the receiver resumes and the transport
// starts pulling chunks (spec §4.7: NONE -> INITIATED).
func (c *Client) startSend(f *Friend) {
	filename := time.Now().Format("20060102150405")
	fileNumber, err := c.transport.FileSend(f.ID, unknownSize, filename)
	if err != nil {
		c.log.WithError(err).WithField("friend_id", f.ID).Warn("failed to initiate transfer")
		f.FileIn.Reset()
		return
	}
	f.Tx.State = SendInitiated
	f.Tx.FileNumber = fileNumber
	c.log.WithField("friend_id", f.ID).Info("Tx initiated")
}

// pumpSend is the chunk loop's push half: it retries a pending chunk first,
// then opportunistically reads and sends one more chunk from file_in ahead
// of the transport asking for it via file_chunk_request. Both paths funnel
// through readAndSendChunk so a rejected enqueue behaves identically
// whichever one triggered it (spec §9's open question on the overlap
// between file_in readability and file_chunk_request is resolved this way:
// file_in readiness is the opportunistic read-ahead trigger, the callback
// is the authoritative one, and both share one chunk buffer and one
// cooldown).
func (c *Client) pumpSend(f *Friend) {
	if f.Tx.PendingBuf != nil {
		c.driveSendPending(f)
		return
	}
	c.readAndSendChunk(f, f.Tx.ChunkSize)
}

// driveSendPending retries the chunk retained after a previous enqueue
// rejection (spec §4.7 chunk loop, "if pendingbuf is set, retry").
func (c *Client) driveSendPending(f *Friend) {
	if err := c.transport.FileSendChunk(f.ID, f.Tx.FileNumber, f.Tx.Position, f.Tx.PendingBuf); err != nil {
		f.Tx.Cooldown = true
		f.Tx.LastBlock = time.Now()
		return
	}
	f.Tx.Position += uint64(len(f.Tx.PendingBuf))
	f.Tx.PendingBuf = nil
	f.Tx.Cooldown = false
}

// readAndSendChunk reads up to length bytes from file_in and hands them to
// the transport at the transfer's current position. A rejected enqueue
// sets pendingbuf and starts the cooldown; EOF on file_in completes the
// transfer.
func (c *Client) readAndSendChunk(f *Friend, length int) {
	if length <= 0 {
		return
	}
	buf := make([]byte, length)
	n, eof, err := f.FileIn.ReadChunk(buf)
	if err != nil {
		c.log.WithError(err).WithField("friend_id", f.ID).Error("file_in read failed")
		return
	}
	if eof {
		c.completeSend(f)
		return
	}
	if n == 0 {
		return
	}
	if err := c.transport.FileSendChunk(f.ID, f.Tx.FileNumber, f.Tx.Position, buf[:n]); err != nil {
		f.Tx.PendingBuf = append([]byte(nil), buf[:n]...)
		f.Tx.Cooldown = true
		f.Tx.LastBlock = time.Now()
		return
	}
	f.Tx.Position += uint64(n)
}

// driveSendControl applies a file-control signal from the receiver to the
// send state machine (spec §4.7 table).
func (c *Client) driveSendControl(f *Friend, ctrl FileControl) {
	switch ctrl {
	case FileControlCancel:
		c.cancelSend(f)
	case FileControlResume:
		switch f.Tx.State {
		case SendInitiated:
			f.Tx.ChunkSize = c.transport.ChunkSize()
			f.Tx.PendingBuf = nil
			f.Tx.Cooldown = false
			f.Tx.State = SendInProgress
			c.log.WithField("friend_id", f.ID).Info("Tx in progress")
		case SendPaused:
			f.Tx.State = SendInProgress
		}
	case FileControlPause:
		if f.Tx.State == SendInProgress {
			f.Tx.State = SendPaused
		}
	}
}

// completeSend signals completion to the receiver and resets the send
// substate (spec §4.7: "INPROGRESS, file_in EOF -> NONE: send CANCEL as
// completion signal; free buffer").
func (c *Client) completeSend(f *Friend) {
	if err := c.transport.FileControlSend(f.ID, f.Tx.FileNumber, FileControlCancel); err != nil {
		c.log.WithError(err).WithField("friend_id", f.ID).Warn("failed to signal transfer completion")
	}
	c.resetSend(f)
	c.log.WithField("friend_id", f.ID).Info("Tx completed")
}

// cancelSend tears down an in-flight send without announcing completion,
// used for transport-side cancellation and friend-offline sweeps.
func (c *Client) cancelSend(f *Friend) {
	if f.Tx.State == SendNone {
		return
	}
	c.resetSend(f)
	c.log.WithField("friend_id", f.ID).Info("Tx cancelled")
}

func (c *Client) resetSend(f *Friend) {
	f.Tx = Send{State: SendNone}
	f.FileIn.Reset()
}

// cancelReceive tears down an in-flight or pending receive (spec §4.7:
// transport CANCEL or friend offline both return the receive substate to
// NONE).
func (c *Client) cancelReceive(f *Friend) {
	if f.Rx.State == RecvNone {
		return
	}
	f.closeFileOut()
	f.writeStatic(f.FilePendingPath, "")
	f.Rx = Receive{State: RecvNone}
	c.log.WithField("friend_id", f.ID).Info("Rx cancelled")
}

// finishReceive tears down a receive that completed normally, distinct
// from cancelReceive only in the log line.
func (c *Client) finishReceive(f *Friend) {
	f.closeFileOut()
	f.writeStatic(f.FilePendingPath, "")
	f.Rx = Receive{State: RecvNone}
	c.log.WithField("friend_id", f.ID).Info("Rx completed")
}

// cancelTransfers tears down both of a friend's transfers, used when the
// friend goes offline (spec §4.8 step 5).
func (c *Client) cancelTransfers(f *Friend) {
	c.cancelSend(f)
	c.cancelReceive(f)
}
