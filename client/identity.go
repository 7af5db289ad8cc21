package client

import (
	"github.com/opd-ai/ratox-go/internal/hexid"
	"github.com/opd-ai/ratox-go/internal/store"
)

// MaxNameLength, MaxStatusLength and MaxMessageLength fix the constants
// spec §3 names but does not value, at the toxcore protocol limits
// referenced by original_source/ratox.c (TOX_MAX_NAME_LENGTH,
// TOX_MAX_STATUS_MESSAGE_LENGTH, TOX_MAX_MESSAGE_LENGTH).
const (
	MaxNameLength    = 128
	MaxStatusLength  = 1007
	MaxMessageLength = 1372
)

// Identity is the process-wide record owned by the event loop (spec §3,
// §9 "process-wide identity state"): a single record held by the loop,
// with no ambient globals. Callbacks receive a handle to it via Client.
type Identity struct {
	transport Transport
	store     *store.Adapter
}

func newIdentity(transport Transport, st *store.Adapter) *Identity {
	return &Identity{transport: transport, store: st}
}

// PublicKey returns the identity's 32-byte public key.
func (id *Identity) PublicKey() [32]byte { return id.transport.SelfGetPublicKey() }

// Address returns the current 38-byte address as 76 uppercase hex
// characters (spec §3, §4.1).
func (id *Identity) Address() string {
	return hexid.EncodeAddress(id.transport.SelfGetPublicKey(), id.transport.SelfGetNospam())
}

// SetName sets the display name and persists. Spec §4.4: "Sending an empty
// write to name/in leaves the previous name intact and does not clear it."
func (id *Identity) SetName(name string) error {
	if name == "" {
		return nil
	}
	if err := id.transport.SelfSetName(name); err != nil {
		return err
	}
	return id.persist()
}

// SetStatusMessage sets the status message and persists.
func (id *Identity) SetStatusMessage(msg string) error {
	if err := id.transport.SelfSetStatusMessage(msg); err != nil {
		return err
	}
	return id.persist()
}

// SetState sets the user state and persists.
func (id *Identity) SetState(state UserState) error {
	if err := id.transport.SelfSetStatus(state); err != nil {
		return err
	}
	return id.persist()
}

// SetNospam sets the nospam value and persists.
func (id *Identity) SetNospam(nospam [4]byte) error {
	id.transport.SelfSetNospam(nospam)
	return id.persist()
}

// persist rewrites the save file with the transport's current state (spec
// §3: "The save file is rewritten on every identity or friend-set
// mutation").
func (id *Identity) persist() error {
	return id.store.Save(id.transport.GetSavedata())
}
