package client

import (
	"errors"
	"strconv"
	"time"

	"github.com/opd-ai/ratox-go/internal/hexid"
	"golang.org/x/sys/unix"
)

// setupCallbacks registers every transport callback (spec §4.9). Callbacks
// run synchronously inside Transport.Iterate, so they mutate the friend and
// request collections directly without locking.
func (c *Client) setupCallbacks() {
	c.transport.OnConnectionStatus(c.handleConnectionStatus)
	c.transport.OnFriendRequest(c.handleFriendRequest)
	c.transport.OnFriendMessage(c.handleFriendMessage)
	c.transport.OnFriendName(c.handleFriendName)
	c.transport.OnFriendStatusMessage(c.handleFriendStatusMessage)
	c.transport.OnFriendUserState(c.handleFriendUserState)
	c.transport.OnFileControl(c.handleFileControl)
	c.transport.OnFileChunkRequest(c.handleFileChunkRequest)
	c.transport.OnFileRecv(c.handleFileRecv)
	c.transport.OnFileRecvChunk(c.handleFileChunk)
}

// handleConnectionStatus updates the `online` file, logs a distinct line
// per status (spec §9 flags the original's fall-through switch as a defect
// this resolves), and drops any pending request left over for the same
// key.
func (c *Client) handleConnectionStatus(friendID uint32, status ConnStatus) {
	f, ok := c.friends[friendID]
	if !ok {
		c.log.WithField("friend_id", friendID).Warn("connection status for unknown friend")
		return
	}

	switch status {
	case ConnNone:
		c.log.WithField("friend", f.IDStr).Info("Offline")
		f.Online = false
	case ConnTCP:
		c.log.WithField("friend", f.IDStr).Info("Online using TCP")
		f.Online = true
	case ConnUDP:
		c.log.WithField("friend", f.IDStr).Info("Online using UDP")
		f.Online = true
	}

	if err := f.writeStatic(f.OnlinePath, strconv.Itoa(int(status))+"\n"); err != nil {
		c.log.WithError(err).WithField("friend_id", friendID).Warn("failed to write online file")
	}
	c.requests.Remove(f.IDStr)
}

func (c *Client) handleFriendRequest(publicKey [32]byte, message string) {
	idstr := hexid.EncodeLower(publicKey)
	if _, err := c.requests.Add(publicKey, idstr, message); err != nil {
		c.log.WithError(err).WithField("request", idstr).Error("failed to create request fifo")
		return
	}
	c.log.WithField("request", idstr).Info("Request received")
	c.notify("Request", idstr, message)
}

func (c *Client) handleFriendMessage(friendID uint32, message string) {
	f, ok := c.friends[friendID]
	if !ok {
		return
	}
	line := time.Now().Format("2006-01-02 15:04") + " " + message + "\n"
	if err := f.appendText(line); err != nil {
		c.log.WithError(err).WithField("friend_id", friendID).Warn("failed to append text_out")
	}
	c.notify("Message", f.IDStr, message)
}

func (c *Client) handleFriendName(friendID uint32, name string) {
	f, ok := c.friends[friendID]
	if !ok {
		return
	}
	if err := f.writeStatic(f.NamePath, name+"\n"); err != nil {
		c.log.WithError(err).WithField("friend_id", friendID).Warn("failed to write name file")
	}
	if err := c.identity.persist(); err != nil {
		c.log.WithError(err).Error("failed to persist after friend name change")
	}
}

func (c *Client) handleFriendStatusMessage(friendID uint32, message string) {
	f, ok := c.friends[friendID]
	if !ok {
		return
	}
	if err := f.writeStatic(f.StatusPath, message+"\n"); err != nil {
		c.log.WithError(err).WithField("friend_id", friendID).Warn("failed to write status file")
	}
	if err := c.identity.persist(); err != nil {
		c.log.WithError(err).Error("failed to persist after friend status change")
	}
}

func (c *Client) handleFriendUserState(friendID uint32, state UserState) {
	f, ok := c.friends[friendID]
	if !ok {
		return
	}
	if err := f.writeStatic(f.StatePath, userStateWord(state)+"\n"); err != nil {
		c.log.WithError(err).WithField("friend_id", friendID).Warn("failed to write state file")
	}
	if err := c.identity.persist(); err != nil {
		c.log.WithError(err).Error("failed to persist after friend user-state change")
	}
}

// handleFileControl drives the send state machine when the control refers
// to the friend's active outgoing transfer, otherwise treats it as a
// receive-side cancel (spec §4.9).
func (c *Client) handleFileControl(friendID, fileNumber uint32, ctrl FileControl) {
	f, ok := c.friends[friendID]
	if !ok {
		return
	}
	if f.Tx.State != SendNone && fileNumber == f.Tx.FileNumber {
		c.driveSendControl(f, ctrl)
		return
	}
	if f.Rx.State != RecvNone && fileNumber == f.Rx.FileNumber && ctrl == FileControlCancel {
		c.cancelReceive(f)
	}
}

// handleFileChunkRequest is the transport's pull-side request for the next
// chunk (spec §4.9, §9 open question): a zero length marks the transport's
// end-of-transfer acknowledgement.
func (c *Client) handleFileChunkRequest(friendID, fileNumber uint32, position uint64, length int) {
	f, ok := c.friends[friendID]
	if !ok || f.Tx.State != SendInProgress || fileNumber != f.Tx.FileNumber {
		return
	}
	if length == 0 {
		c.completeSend(f)
		return
	}
	if f.Tx.PendingBuf != nil {
		c.driveSendPending(f)
		return
	}
	c.readAndSendChunk(f, length)
}

func (c *Client) handleFileRecv(friendID, fileNumber uint32, size uint64, filename string) {
	f, ok := c.friends[friendID]
	if !ok {
		return
	}
	if f.Rx.State != RecvNone {
		if err := c.transport.FileControlSend(friendID, fileNumber, FileControlCancel); err != nil {
			c.log.WithError(err).WithField("friend_id", friendID).Warn("failed to reject concurrent transfer")
		}
		return
	}
	f.Rx = Receive{State: RecvPending, FileNumber: fileNumber, Filename: filename, Size: size}
	if err := f.writeStatic(f.FilePendingPath, filename); err != nil {
		c.log.WithError(err).WithField("friend_id", friendID).Warn("failed to write file_pending")
	}
	c.log.WithFields(map[string]interface{}{"friend_id": friendID, "filename": filename}).Info("Rx pending")
	c.notify("File", f.IDStr, filename)
}

func (c *Client) handleFileChunk(friendID, fileNumber uint32, position uint64, data []byte) {
	f, ok := c.friends[friendID]
	if !ok || f.Rx.State != RecvInProgress || fileNumber != f.Rx.FileNumber {
		return
	}
	if len(data) == 0 {
		c.finishReceive(f)
		return
	}
	if err := f.writeFileOut(data); err != nil {
		if errors.Is(err, unix.EPIPE) {
			c.cancelReceive(f)
			return
		}
		c.log.WithError(err).WithField("friend_id", friendID).Warn("file_out write failed")
	}
}
