package client

import "time"

// SendState is the tagged state of a per-friend outgoing transfer (spec §3,
// §4.7). Unlike the original C source's numeric state plus bitmask flags
// (INCOMPLETE/INCOMING/OUTGOING/TRANSMITTING), this is a plain sum type with
// an explicit transition function in (*Client).driveSend — the redesign
// spec §9 calls for.
type SendState int

const (
	SendNone SendState = iota
	SendInitiated
	SendPending
	SendInProgress
	SendPaused
)

// Send is the per-friend send-transfer substate (spec §3).
type Send struct {
	State      SendState
	FileNumber uint32
	ChunkSize  int
	Position   uint64 // bytes of file_in already handed to the transport
	PendingBuf []byte // set when a chunk failed to enqueue and must be retried
	Cooldown   bool
	LastBlock  time.Time
}

// RecvState is the tagged state of a per-friend incoming transfer.
type RecvState int

const (
	RecvNone RecvState = iota
	RecvPending
	RecvInProgress
)

// Receive is the per-friend receive-transfer substate (spec §3).
type Receive struct {
	State      RecvState
	FileNumber uint32
	Filename   string
	Size       uint64
}
