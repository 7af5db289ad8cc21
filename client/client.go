package client

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/opd-ai/ratox-go/config"
	"github.com/opd-ai/ratox-go/internal/store"
	"github.com/sirupsen/logrus"
)

// connectDelay is the wall-clock backoff floor between bootstrap attempts
// while disconnected (spec §5, original_source/ratox.c's CONNECTDELAY).
const connectDelay = 5 * time.Second

// cooldownIntervals is how many iteration intervals a send transfer's
// cooldown must survive before it is cleared (spec §4.7).
const cooldownIntervals = 3

// PassphrasePrompt is supplied by main, which owns the out-of-scope terminal
// interaction (spec §1).
type PassphrasePrompt = store.PassphrasePrompter

// Client is the event loop's owner: the transport, the persistent identity,
// the filesystem tree, and the friend/request collections (spec §3, §4.8).
// It is not safe for concurrent use; every mutation happens from Run's
// goroutine, including callbacks invoked synchronously from Iterate. The
// one exception is Stop, which only stores the atomic running flag.
type Client struct {
	cfg       *config.Config
	log       logrus.FieldLogger
	transport Transport
	store     *store.Adapter
	identity  *Identity
	slots     *Slots
	requests  *Requests

	friends     map[uint32]*Friend
	friendOrder []uint32

	running        atomic.Bool
	connected      bool
	lastBootstrap  time.Time
	bootstrapNodes []config.BootstrapNode
}

// New wires the transport, persistent store, identity, filesystem tree and
// known friends into a Client ready for Run.
func New(cfg *config.Config, prompt PassphrasePrompt) (*Client, error) {
	log := logrus.WithField("component", "client")

	st := store.New(cfg.SaveFile, cfg.EncryptSave, log)
	saveData, err := st.Load(prompt)
	if err != nil {
		return nil, fmt.Errorf("load save file: %w", err)
	}

	transport, err := newToxTransport(saveData, cfg.IPv6Enabled, cfg.UDPEnabled, cfg.ProxyEnabled, cfg.ProxyAddress, cfg.ProxyPort)
	if err != nil {
		return nil, fmt.Errorf("init transport: %w", err)
	}

	identity := newIdentity(transport, st)
	if cfg.Name != "" {
		if err := identity.SetName(cfg.Name); err != nil {
			log.WithError(err).Warn("failed to set name at startup")
		}
	}
	if cfg.StatusMessage != "" {
		if err := identity.SetStatusMessage(cfg.StatusMessage); err != nil {
			log.WithError(err).Warn("failed to set status message at startup")
		}
	}

	slots, err := NewSlots(cfg.ConfigDir, log)
	if err != nil {
		transport.Kill()
		return nil, fmt.Errorf("create slot directories: %w", err)
	}
	if err := slots.WriteID(identity.Address()); err != nil {
		log.WithError(err).Warn("failed to write id file")
	}
	if cfg.Name != "" {
		slots.Name.WriteOut([]byte(cfg.Name + "\n"))
	}
	if cfg.StatusMessage != "" {
		slots.Status.WriteOut([]byte(cfg.StatusMessage + "\n"))
	}

	c := &Client{
		cfg:            cfg,
		log:            log,
		transport:      transport,
		store:          st,
		identity:       identity,
		slots:          slots,
		requests:       NewRequests(slots.Request.OutPath, log),
		friends:        make(map[uint32]*Friend),
		bootstrapNodes: cfg.BootstrapNodes,
	}

	for id, fi := range transport.GetFriends() {
		f, err := newFriend(cfg.ConfigDir, id, fi.PublicKey, log)
		if err != nil {
			log.WithError(err).WithField("friend_id", id).Error("failed to create friend directory for known friend")
			continue
		}
		// Dump the offline/default snapshot a freshly-created friend
		// directory starts with (mirrors friendcreate's initial dump in
		// original_source/ratox.c; connection status, status message and
		// user state follow once the transport reports them).
		name := fi.Name
		if name == "" {
			name = "Anonymous"
		}
		f.writeStatic(f.NamePath, name+"\n")
		f.writeStatic(f.OnlinePath, "0\n")
		f.writeStatic(f.StatePath, userStateWord(StateNone)+"\n")
		c.friends[id] = f
		c.friendOrder = append(c.friendOrder, id)
	}

	c.setupCallbacks()
	return c, nil
}

// Run drives the event loop until Stop is called or a signal clears the
// running flag, then performs orderly teardown (spec §4.8, §5).
func (c *Client) Run() error {
	c.running.Store(true)
	c.lastBootstrap = time.Time{}
	c.log.Info("entering event loop")

	for c.running.Load() {
		c.tick()
	}

	return c.teardown()
}

// Stop clears the running flag; the loop exits at the next iteration
// boundary (spec §5: signals set a running flag, observed by the loop).
// It is safe to call from another goroutine, such as a signal handler.
func (c *Client) Stop() {
	c.running.Store(false)
}

// teardown saves state, destroys every friend (mirrors original_source's
// shutdown(), which calls frienddestroy on every friend including its
// directory removal), tears down the global slots, and kills the
// transport.
func (c *Client) teardown() error {
	c.log.Info("shutting down")

	if err := c.identity.persist(); err != nil {
		c.log.WithError(err).Error("failed to save state on shutdown")
	}

	for _, id := range append([]uint32(nil), c.friendOrder...) {
		if f, ok := c.friends[id]; ok {
			f.destroy()
		}
	}
	c.friends = make(map[uint32]*Friend)
	c.friendOrder = nil

	for _, req := range c.requests.All() {
		c.requests.Remove(req.IDStr)
	}

	c.slots.Close()
	c.transport.Kill()

	return nil
}

// maybeBootstrap implements spec §4.8 step 1: track the transport's
// connection status, and re-bootstrap from a shuffled node list once more
// than connectDelay has elapsed since the last attempt.
func (c *Client) maybeBootstrap() {
	if c.transport.SelfGetConnectionStatus() != ConnNone {
		if !c.connected {
			c.log.Info("DHT connected")
			c.connected = true
			for _, id := range c.friendOrder {
				c.cancelTransfers(c.friends[id])
			}
		}
		return
	}

	if c.connected {
		c.log.Info("DHT disconnected")
		c.connected = false
	}
	if time.Since(c.lastBootstrap) < connectDelay {
		return
	}
	c.lastBootstrap = time.Now()
	c.bootstrap()
}

func (c *Client) bootstrap() {
	c.log.Info("DHT connecting")
	nodes := append([]config.BootstrapNode(nil), c.bootstrapNodes...)
	rand.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })
	for _, n := range nodes {
		if err := c.transport.Bootstrap(n.Address, n.Port, n.PublicKey); err != nil {
			c.log.WithError(err).WithField("node", n.Address).Warn("bootstrap failed")
		}
	}
}

// addFriend creates the friend's directory tree and registers it with the
// collection (spec §3: "friends are created when the transport reports a
// new friend").
func (c *Client) addFriend(id uint32, publicKey [32]byte) (*Friend, error) {
	f, err := newFriend(c.cfg.ConfigDir, id, publicKey, c.log)
	if err != nil {
		return nil, err
	}
	c.friends[id] = f
	c.friendOrder = append(c.friendOrder, id)
	return f, nil
}

// removeFriend tears down a friend's directory and drops it from the
// collection (spec §4.5 `remove`, §3 lifecycle).
func (c *Client) removeFriend(id uint32) {
	f, ok := c.friends[id]
	if !ok {
		return
	}
	if err := c.transport.DeleteFriend(id); err != nil {
		c.log.WithError(err).WithField("friend_id", id).Warn("transport delete friend failed")
	}
	f.destroy()
	delete(c.friends, id)
	for i, fid := range c.friendOrder {
		if fid == id {
			c.friendOrder = append(c.friendOrder[:i], c.friendOrder[i+1:]...)
			break
		}
	}
	if err := c.identity.persist(); err != nil {
		c.log.WithError(err).Error("failed to persist after friend removal")
	}
}
