package client

import "time"

// fakeTransport is a minimal in-memory Transport double used to exercise the
// client package's state machines without toxcore.
type fakeTransport struct {
	connStatus       ConnStatus
	friendStatus     map[uint32]ConnStatus
	nextFileNumber   uint32
	chunkSize        int
	sentChunks       [][]byte
	controlsSent     []FileControl
	rejectSendChunk  bool
	friends          map[uint32]FriendInfo
	deletedFriend    uint32
	addedNoRequestPK [32]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		friendStatus: make(map[uint32]ConnStatus),
		chunkSize:    128,
		friends:      make(map[uint32]FriendInfo),
	}
}

func (f *fakeTransport) Iterate()                              {}
func (f *fakeTransport) IterationInterval() time.Duration      { return 20 * time.Millisecond }
func (f *fakeTransport) Bootstrap(string, uint16, string) error { return nil }

func (f *fakeTransport) SelfGetAddress() string      { return "" }
func (f *fakeTransport) SelfGetPublicKey() [32]byte  { return [32]byte{} }
func (f *fakeTransport) SelfGetNospam() [4]byte      { return [4]byte{} }
func (f *fakeTransport) SelfSetNospam(nospam [4]byte) {}
func (f *fakeTransport) SelfSetName(string) error          { return nil }
func (f *fakeTransport) SelfSetStatusMessage(string) error { return nil }
func (f *fakeTransport) SelfSetStatus(UserState) error     { return nil }
func (f *fakeTransport) SelfGetConnectionStatus() ConnStatus { return f.connStatus }

func (f *fakeTransport) FriendConnectionStatus(id uint32) ConnStatus { return f.friendStatus[id] }

func (f *fakeTransport) GetFriends() map[uint32]FriendInfo { return f.friends }
func (f *fakeTransport) GetFriendPublicKey(uint32) ([32]byte, error) { return [32]byte{}, nil }
func (f *fakeTransport) AddFriend(string, string) (uint32, error) { return 0, nil }
func (f *fakeTransport) AddFriendNoRequest(pk [32]byte) (uint32, error) {
	f.addedNoRequestPK = pk
	return 1, nil
}
func (f *fakeTransport) DeleteFriend(id uint32) error { f.deletedFriend = id; return nil }
func (f *fakeTransport) SendFriendMessage(uint32, string) error { return nil }

func (f *fakeTransport) FileSend(uint32, uint64, string) (uint32, error) {
	f.nextFileNumber++
	return f.nextFileNumber, nil
}
func (f *fakeTransport) FileControlSend(_ uint32, _ uint32, ctrl FileControl) error {
	f.controlsSent = append(f.controlsSent, ctrl)
	return nil
}
func (f *fakeTransport) FileSendChunk(_ uint32, _ uint32, _ uint64, data []byte) error {
	if f.rejectSendChunk {
		return errTransient
	}
	f.sentChunks = append(f.sentChunks, append([]byte(nil), data...))
	return nil
}
func (f *fakeTransport) ChunkSize() int { return f.chunkSize }

func (f *fakeTransport) GetSavedata() []byte { return nil }

func (f *fakeTransport) OnConnectionStatus(func(uint32, ConnStatus))                {}
func (f *fakeTransport) OnFriendRequest(func([32]byte, string))                     {}
func (f *fakeTransport) OnFriendMessage(func(uint32, string))                       {}
func (f *fakeTransport) OnFriendName(func(uint32, string))                          {}
func (f *fakeTransport) OnFriendStatusMessage(func(uint32, string))                 {}
func (f *fakeTransport) OnFriendUserState(func(uint32, UserState))                  {}
func (f *fakeTransport) OnFileControl(func(uint32, uint32, FileControl))            {}
func (f *fakeTransport) OnFileChunkRequest(func(uint32, uint32, uint64, int))       {}
func (f *fakeTransport) OnFileRecv(func(uint32, uint32, uint64, string))            {}
func (f *fakeTransport) OnFileRecvChunk(func(uint32, uint32, uint64, []byte))       {}

func (f *fakeTransport) Kill() {}

type transientError string

func (e transientError) Error() string { return string(e) }

const errTransient = transientError("transient send failure")
