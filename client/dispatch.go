package client

import (
	"strings"

	"github.com/opd-ai/ratox-go/internal/hexid"
)

// userStateWord and parseUserState translate between the UserState enum and
// the words the original source's ustate[] array uses on disk ("none",
// "away", "busy").
func userStateWord(state UserState) string {
	switch state {
	case StateAway:
		return "away"
	case StateBusy:
		return "busy"
	default:
		return "none"
	}
}

func parseUserState(word string) (UserState, bool) {
	switch strings.TrimSpace(word) {
	case "none":
		return StateNone, true
	case "away":
		return StateAway, true
	case "busy":
		return StateBusy, true
	default:
		return StateNone, false
	}
}

// dispatchSlots handles every global slot's `in` FIFO found readable this
// iteration (spec §4.4).
func (c *Client) dispatchSlots(ready map[int]bool) {
	if ready[c.slots.Name.In.Fd()] {
		c.handleNameIn()
	}
	if ready[c.slots.Status.In.Fd()] {
		c.handleStatusIn()
	}
	if ready[c.slots.State.In.Fd()] {
		c.handleStateIn()
	}
	if ready[c.slots.Request.In.Fd()] {
		c.handleRequestIn()
	}
	if ready[c.slots.Nospam.In.Fd()] {
		c.handleNospamIn()
	}
}

func (c *Client) readLine(f interface {
	Read([]byte) (int, bool, error)
}) (string, bool) {
	buf := make([]byte, 4096)
	n, ok, err := f.Read(buf)
	if err != nil || !ok {
		return "", false
	}
	return strings.TrimRight(string(buf[:n]), "\n"), true
}

func (c *Client) handleNameIn() {
	line, ok := c.readLine(c.slots.Name.In)
	if !ok {
		return
	}
	if err := c.identity.SetName(line); err != nil {
		c.slots.Name.WriteErr(err.Error())
		return
	}
	if line == "" {
		return // no-op write: previous name, and out, stay untouched
	}
	if err := c.slots.Name.WriteOut([]byte(line + "\n")); err != nil {
		c.log.WithError(err).Warn("failed to echo name to out")
	}
}

func (c *Client) handleStatusIn() {
	line, ok := c.readLine(c.slots.Status.In)
	if !ok {
		return
	}
	if err := c.identity.SetStatusMessage(line); err != nil {
		c.slots.Status.WriteErr(err.Error())
		return
	}
	if err := c.slots.Status.WriteOut([]byte(line + "\n")); err != nil {
		c.log.WithError(err).Warn("failed to echo status to out")
	}
}

func (c *Client) handleStateIn() {
	line, ok := c.readLine(c.slots.State.In)
	if !ok {
		return
	}
	state, valid := parseUserState(line)
	if !valid {
		c.slots.State.WriteErr("unknown state: " + line)
		return
	}
	if err := c.identity.SetState(state); err != nil {
		c.slots.State.WriteErr(err.Error())
		return
	}
	if err := c.slots.State.WriteOut([]byte(userStateWord(state) + "\n")); err != nil {
		c.log.WithError(err).Warn("failed to echo state to out")
	}
}

// handleRequestIn sends a friend request from an address line (spec §4.4,
// §4.6). The address is the full 76-hex-character form (public key + nospam
// + checksum): spec §8's scenario names this length explicitly, and
// AddFriend needs the whole address, not just the 64-character public key,
// to route the request over the DHT.
func (c *Client) handleRequestIn() {
	line, ok := c.readLine(c.slots.Request.In)
	if !ok {
		return
	}
	fields := strings.SplitN(line, " ", 2)
	address := fields[0]
	message := ""
	if len(fields) == 2 {
		message = fields[1]
	}

	if len(address) != hexid.AddressSize*2 {
		c.slots.Request.WriteErr("address must be 76 hex characters")
		return
	}

	if _, err := c.transport.AddFriend(address, message); err != nil {
		c.slots.Request.WriteErr(err.Error())
	}
}

func (c *Client) handleNospamIn() {
	line, ok := c.readLine(c.slots.Nospam.In)
	if !ok {
		return
	}
	nospam, err := hexid.DecodeNospam(line)
	if err != nil {
		c.slots.Nospam.WriteErr(err.Error())
		return
	}
	if err := c.identity.SetNospam(nospam); err != nil {
		c.slots.Nospam.WriteErr(err.Error())
		return
	}
	if err := c.slots.Nospam.WriteOut([]byte(hexid.EncodeNospam(nospam) + "\n")); err != nil {
		c.log.WithError(err).Warn("failed to echo nospam to out")
	}
	if err := c.slots.WriteID(c.identity.Address()); err != nil {
		c.log.WithError(err).Warn("failed to rewrite id file after nospam change")
	}
}

// dispatchRequests handles every pending request's per-requester FIFO found
// readable this iteration: a '1' byte accepts, a '0' rejects (spec §4.6).
func (c *Client) dispatchRequests(ready map[int]bool) {
	for _, req := range c.requests.All() {
		if !ready[req.FIFO.Fd()] {
			continue
		}
		buf := make([]byte, 1)
		n, ok, err := req.FIFO.Read(buf)
		if err != nil || !ok || n == 0 {
			continue
		}
		switch buf[0] {
		case '1':
			c.acceptRequest(req)
		case '0':
			c.rejectRequest(req)
		}
	}
}

// acceptRequest mirrors the original source's accept path: AddFriendNoRequest
// first creates the transport-side friend entry, then the daemon creates its
// directory tree.
func (c *Client) acceptRequest(req *Request) {
	id, err := c.transport.AddFriendNoRequest(req.PublicKey)
	if err != nil {
		c.log.WithError(err).WithField("request", req.IDStr).Warn("failed to accept request")
		c.requests.Remove(req.IDStr)
		return
	}
	if _, err := c.addFriend(id, req.PublicKey); err != nil {
		c.log.WithError(err).WithField("request", req.IDStr).Error("failed to create friend directory on accept")
	}
	c.requests.Remove(req.IDStr)
	if err := c.identity.persist(); err != nil {
		c.log.WithError(err).Error("failed to persist after accepting request")
	}
	c.log.WithField("request", req.IDStr).Info("Request accepted")
}

// rejectRequest: the original source calls AddFriendNoRequest on reject too,
// immediately followed by deleting the entry it just created (spec §4.6:
// "a transport friend entry already exists to delete on rejection").
func (c *Client) rejectRequest(req *Request) {
	if id, err := c.transport.AddFriendNoRequest(req.PublicKey); err == nil {
		c.transport.DeleteFriend(id)
	}
	c.requests.Remove(req.IDStr)
	c.log.WithField("request", req.IDStr).Info("Request rejected")
}

// dispatchFriends handles each friend's text_in, file_in and remove FIFOs
// found readable this iteration (spec §4.5, §4.7).
func (c *Client) dispatchFriends(ready map[int]bool) {
	for _, id := range append([]uint32(nil), c.friendOrder...) {
		f, ok := c.friends[id]
		if !ok {
			continue
		}
		if ready[f.Remove.Fd()] {
			c.handleFriendRemoveIn(f)
			continue
		}
		if ready[f.TextIn.Fd()] {
			c.handleFriendTextIn(f)
		}
		if ready[f.FileIn.Fd()] {
			c.driveSend(f)
		}
	}
}

func (c *Client) handleFriendTextIn(f *Friend) {
	buf := make([]byte, MaxMessageLength)
	n, ok, err := f.TextIn.Read(buf)
	if err != nil || !ok || n == 0 {
		return
	}
	message := strings.TrimRight(string(buf[:n]), "\n")
	if err := c.transport.SendFriendMessage(f.ID, message); err != nil {
		c.log.WithError(err).WithField("friend_id", f.ID).Warn("failed to send message")
	}
}

func (c *Client) handleFriendRemoveIn(f *Friend) {
	buf := make([]byte, 1)
	n, ok, err := f.Remove.Read(buf)
	if err != nil || !ok || n == 0 || buf[0] != '1' {
		return
	}
	c.removeFriend(f.ID)
}
