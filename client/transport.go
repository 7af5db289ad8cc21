// Package client implements the filesystem-as-UI event engine: the
// friend/request lifecycle, the FIFO-backed directory tree, the file
// transfer state machines, and the single-threaded cooperative event loop
// that drives them (spec §2).
package client

import (
	"time"

	"github.com/opd-ai/toxcore"
)

// ConnStatus mirrors spec §3's connection status enumeration.
type ConnStatus int

const (
	ConnNone ConnStatus = iota
	ConnTCP
	ConnUDP
)

// UserState mirrors spec §3's user-state enumeration.
type UserState int

const (
	StateNone UserState = iota
	StateAway
	StateBusy
)

// FileControl mirrors the transport's file control signals (spec §4.7).
type FileControl int

const (
	FileControlResume FileControl = iota
	FileControlPause
	FileControlCancel
)

// FriendInfo is the subset of a loaded friend's transport-side state the
// daemon needs at startup (spec §4: "friends ... loaded from the save file
// at startup").
type FriendInfo struct {
	ID        uint32
	PublicKey [32]byte
	Name      string
}

// Transport is the boundary spec §1 places out of scope: an opaque
// peer-to-peer context that supplies a periodic iterate call, an iteration
// interval hint, a bootstrap primitive, callback registration, and
// friend/message/file primitives. It is implemented by toxTransport, a thin
// adapter over *toxcore.Tox.
type Transport interface {
	Iterate()
	IterationInterval() time.Duration
	Bootstrap(address string, port uint16, publicKey string) error

	SelfGetAddress() string
	SelfGetPublicKey() [32]byte
	SelfGetNospam() [4]byte
	SelfSetNospam(nospam [4]byte)
	SelfSetName(name string) error
	SelfSetStatusMessage(msg string) error
	SelfSetStatus(state UserState) error
	SelfGetConnectionStatus() ConnStatus

	FriendConnectionStatus(friendID uint32) ConnStatus

	GetFriends() map[uint32]FriendInfo
	GetFriendPublicKey(friendID uint32) ([32]byte, error)
	AddFriend(address string, message string) (uint32, error)
	AddFriendNoRequest(publicKey [32]byte) (uint32, error)
	DeleteFriend(friendID uint32) error
	SendFriendMessage(friendID uint32, message string) error

	FileSend(friendID uint32, size uint64, filename string) (uint32, error)
	FileControlSend(friendID uint32, fileNumber uint32, ctrl FileControl) error
	FileSendChunk(friendID uint32, fileNumber uint32, position uint64, data []byte) error
	ChunkSize() int

	GetSavedata() []byte

	OnConnectionStatus(func(friendID uint32, status ConnStatus))
	OnFriendRequest(func(publicKey [32]byte, message string))
	OnFriendMessage(func(friendID uint32, message string))
	OnFriendName(func(friendID uint32, name string))
	OnFriendStatusMessage(func(friendID uint32, message string))
	OnFriendUserState(func(friendID uint32, state UserState))
	OnFileControl(func(friendID uint32, fileNumber uint32, ctrl FileControl))
	OnFileChunkRequest(func(friendID uint32, fileNumber uint32, position uint64, length int))
	OnFileRecv(func(friendID uint32, fileNumber uint32, size uint64, filename string))
	OnFileRecvChunk(func(friendID uint32, fileNumber uint32, position uint64, data []byte))

	Kill()
}

// toxTransport adapts *toxcore.Tox to the Transport interface.
type toxTransport struct {
	tox       *toxcore.Tox
	chunkSize int
}

// newToxTransport constructs the transport from previously loaded save
// data (nil for a fresh identity) and the options derived from the CLI
// flags (spec §6). The proxy arguments are accepted but not applied: no
// proxy is set on the transport options, so connections are always direct.
func newToxTransport(saveData []byte, ipv6, udpEnabled, proxyEnabled bool, proxyAddr string, proxyPort uint16) (*toxTransport, error) {
	options := toxcore.NewOptions()
	options.UDPEnabled = udpEnabled
	options.IPv6Enabled = ipv6
	if len(saveData) > 0 {
		options.SavedataType = toxcore.SaveDataTypeToxSave
		options.SavedataData = saveData
		options.SavedataLength = uint32(len(saveData))
	}

	tox, err := toxcore.New(options)
	if err != nil {
		return nil, err
	}
	return &toxTransport{tox: tox, chunkSize: 1024}, nil
}

func (t *toxTransport) Iterate() { t.tox.Iterate() }

func (t *toxTransport) IterationInterval() time.Duration {
	return time.Duration(t.tox.IterationInterval()) * time.Millisecond
}

func (t *toxTransport) Bootstrap(address string, port uint16, publicKey string) error {
	return t.tox.Bootstrap(address, port, publicKey)
}

func (t *toxTransport) SelfGetAddress() string { return t.tox.SelfGetAddress() }

func (t *toxTransport) SelfGetPublicKey() [32]byte { return t.tox.SelfGetPublicKey() }

func (t *toxTransport) SelfGetNospam() [4]byte { return t.tox.SelfGetNospam() }

func (t *toxTransport) SelfGetConnectionStatus() ConnStatus {
	return ConnStatus(t.tox.SelfGetConnectionStatus())
}

func (t *toxTransport) FriendConnectionStatus(friendID uint32) ConnStatus {
	return ConnStatus(t.tox.FriendGetConnectionStatus(friendID))
}

func (t *toxTransport) SelfSetNospam(nospam [4]byte) { t.tox.SelfSetNospam(nospam) }

func (t *toxTransport) SelfSetName(name string) error { return t.tox.SelfSetName(name) }

func (t *toxTransport) SelfSetStatusMessage(msg string) error {
	return t.tox.SelfSetStatusMessage(msg)
}

func (t *toxTransport) SelfSetStatus(state UserState) error {
	return t.tox.SelfSetStatus(toxcore.UserStatus(state))
}

func (t *toxTransport) GetFriends() map[uint32]FriendInfo {
	out := make(map[uint32]FriendInfo)
	for id, f := range t.tox.GetFriends() {
		out[id] = FriendInfo{ID: id, PublicKey: f.PublicKey, Name: f.Name}
	}
	return out
}

func (t *toxTransport) GetFriendPublicKey(friendID uint32) ([32]byte, error) {
	return t.tox.GetFriendPublicKey(friendID)
}

func (t *toxTransport) AddFriend(address, message string) (uint32, error) {
	return t.tox.AddFriend(address, message)
}

func (t *toxTransport) AddFriendNoRequest(publicKey [32]byte) (uint32, error) {
	return t.tox.AddFriendByPublicKey(publicKey)
}

func (t *toxTransport) DeleteFriend(friendID uint32) error {
	return t.tox.FriendDelete(friendID)
}

func (t *toxTransport) SendFriendMessage(friendID uint32, message string) error {
	return t.tox.SendFriendMessage(friendID, message, toxcore.MessageTypeNormal)
}

func (t *toxTransport) FileSend(friendID uint32, size uint64, filename string) (uint32, error) {
	var fileID [32]byte
	return t.tox.FileSend(friendID, 0, size, fileID, filename)
}

func (t *toxTransport) FileControlSend(friendID, fileNumber uint32, ctrl FileControl) error {
	return t.tox.FileControl(friendID, fileNumber, toxcore.FileControl(ctrl))
}

func (t *toxTransport) FileSendChunk(friendID, fileNumber uint32, position uint64, data []byte) error {
	return t.tox.FileSendChunk(friendID, fileNumber, position, data)
}

func (t *toxTransport) ChunkSize() int { return t.chunkSize }

func (t *toxTransport) GetSavedata() []byte { return t.tox.GetSavedata() }

func (t *toxTransport) OnConnectionStatus(cb func(uint32, ConnStatus)) {
	t.tox.OnConnectionStatus(func(friendID uint32, status toxcore.Connection) {
		cb(friendID, ConnStatus(status))
	})
}

func (t *toxTransport) OnFriendRequest(cb func([32]byte, string)) {
	t.tox.OnFriendRequest(cb)
}

func (t *toxTransport) OnFriendMessage(cb func(uint32, string)) {
	t.tox.OnFriendMessageDetailed(func(friendID uint32, message string, _ toxcore.MessageType) {
		cb(friendID, message)
	})
}

func (t *toxTransport) OnFriendName(cb func(uint32, string)) {
	t.tox.OnFriendName(cb)
}

func (t *toxTransport) OnFriendStatusMessage(cb func(uint32, string)) {
	t.tox.OnFriendStatusMessage(cb)
}

func (t *toxTransport) OnFriendUserState(cb func(uint32, UserState)) {
	t.tox.OnFriendStatus(func(friendID uint32, status toxcore.UserStatus) {
		cb(friendID, UserState(status))
	})
}

func (t *toxTransport) OnFileControl(cb func(uint32, uint32, FileControl)) {
	t.tox.OnFileControl(func(friendID, fileNumber uint32, ctrl toxcore.FileControl) {
		cb(friendID, fileNumber, FileControl(ctrl))
	})
}

func (t *toxTransport) OnFileChunkRequest(cb func(uint32, uint32, uint64, int)) {
	t.tox.OnFileChunkRequest(func(friendID, fileNumber uint32, position uint64, length int) {
		cb(friendID, fileNumber, position, length)
	})
}

func (t *toxTransport) OnFileRecv(cb func(uint32, uint32, uint64, string)) {
	t.tox.OnFileRecv(func(friendID, fileNumber uint32, _ uint32, size uint64, filename string) {
		cb(friendID, fileNumber, size, filename)
	})
}

func (t *toxTransport) OnFileRecvChunk(cb func(uint32, uint32, uint64, []byte)) {
	t.tox.OnFileRecvChunk(cb)
}

func (t *toxTransport) Kill() { t.tox.Kill() }
