package client

import (
	"os"
	"path/filepath"

	"github.com/opd-ai/ratox-go/internal/fifo"
	"github.com/sirupsen/logrus"
)

// Request is a pending inbound friendship proposal awaiting local accept or
// reject (spec §3, §4.6).
type Request struct {
	PublicKey [32]byte
	IDStr     string
	Message   string
	FIFO      *fifo.Fifo
}

// Requests is the ordered ledger of pending inbound requests, keyed by the
// requester's hex public key.
type Requests struct {
	outDir string
	order  []string
	byID   map[string]*Request
	log    logrus.FieldLogger
}

// NewRequests builds a ledger writing its per-requester FIFOs under outDir
// (the request slot's `out` directory).
func NewRequests(outDir string, log logrus.FieldLogger) *Requests {
	return &Requests{outDir: outDir, byID: make(map[string]*Request), log: log}
}

// Add appends a new pending request and creates its FIFO at
// request/out/<hex>. If a request for the same key already exists it is
// replaced (duplicate-request edge case, spec §4.6).
func (r *Requests) Add(publicKey [32]byte, idstr, message string) (*Request, error) {
	if existing, ok := r.byID[idstr]; ok {
		existing.FIFO.Remove()
		r.removeFromOrder(idstr)
	}

	path := filepath.Join(r.outDir, idstr)
	fo, err := fifo.New(r.outDir, path, os.O_RDONLY, r.log)
	if err != nil {
		return nil, err
	}

	req := &Request{PublicKey: publicKey, IDStr: idstr, Message: message, FIFO: fo}
	r.byID[idstr] = req
	r.order = append(r.order, idstr)
	return req, nil
}

// Remove deletes the request's FIFO and drops it from the ledger. Called
// both on accept/reject and when the same friend becomes known through
// another path (spec §4.6: "Requests are also cleared automatically when
// the same friend comes online through another path").
func (r *Requests) Remove(idstr string) {
	req, ok := r.byID[idstr]
	if !ok {
		return
	}
	req.FIFO.Remove()
	delete(r.byID, idstr)
	r.removeFromOrder(idstr)
}

func (r *Requests) removeFromOrder(idstr string) {
	for i, id := range r.order {
		if id == idstr {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Get returns the pending request for idstr, if any.
func (r *Requests) Get(idstr string) (*Request, bool) {
	req, ok := r.byID[idstr]
	return req, ok
}

// All returns every pending request, in insertion order.
func (r *Requests) All() []*Request {
	out := make([]*Request, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// FDs returns every pending request's FIFO descriptor, for the event
// loop's readable set (spec §4.8 step 3).
func (r *Requests) FDs() []int {
	fds := make([]int, 0, len(r.order))
	for _, id := range r.order {
		fds = append(fds, r.byID[id].FIFO.Fd())
	}
	return fds
}
