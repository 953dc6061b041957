// File: hierarchy/mailbox.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-slot mailboxes carried inside a kissing boundary. Each direction
// owns half of the boundary: an 8-byte header word followed by the payload.
// The header is published with AtomicExchange after the payload is written,
// so a reader that observes a full header also observes the payload.

package hierarchy

import (
	"github.com/momentics/geomesh/api"
	"github.com/momentics/geomesh/boundary"
)

const (
	mailboxHeader = 8
	mailboxFull   = uint64(1) << 63
)

// mailbox returns the header offset and payload capacity of the slot that
// sender writes into. Boundaries too small to hold two headers carry no
// mailbox.
func mailbox(b *boundary.Boundary, sender int) (int, int, error) {
	if b.Size() < MinBoundarySize {
		return 0, 0, api.NewError(api.ErrCodeNotSupported, "hierarchy: boundary too small for a mailbox").
			WithContext("size", b.Size())
	}
	half := (b.Size() / 2) &^ (mailboxHeader - 1)
	capacity := half - mailboxHeader
	if a, _ := b.Spheres(); sender == a {
		return 0, capacity, nil
	}
	return half, capacity, nil
}

func post(b *boundary.Boundary, from int, payload []byte) error {
	off, capacity, err := mailbox(b, from)
	if err != nil {
		return err
	}
	if len(payload) > capacity {
		return api.Full("hierarchy: message larger than mailbox").
			WithContext("len", len(payload)).WithContext("capacity", capacity)
	}
	hdr, err := b.AtomicLoad(from, off, mailboxHeader)
	if err != nil {
		return err
	}
	if hdr&mailboxFull != 0 {
		return api.Full("hierarchy: mailbox occupied").WithContext("from", from)
	}
	if len(payload) > 0 {
		if _, err := b.Write(from, off+mailboxHeader, payload); err != nil {
			return err
		}
	}
	_, err = b.AtomicExchange(from, off, mailboxFull|uint64(len(payload)), mailboxHeader)
	return err
}

func take(b *boundary.Boundary, to int) ([]byte, bool, error) {
	from := b.Other(to)
	if from < 0 {
		return nil, false, api.Invalid("hierarchy: thread is not a side of the boundary").WithContext("id", to)
	}
	off, _, err := mailbox(b, from)
	if err != nil {
		return nil, false, err
	}
	hdr, err := b.AtomicLoad(to, off, mailboxHeader)
	if err != nil {
		return nil, false, err
	}
	if hdr&mailboxFull == 0 {
		return nil, false, nil
	}
	msg := make([]byte, int(hdr&^mailboxFull))
	if len(msg) > 0 {
		if _, err := b.Read(to, off+mailboxHeader, msg); err != nil {
			return nil, false, err
		}
	}
	if _, err := b.AtomicExchange(to, off, 0, mailboxHeader); err != nil {
		return nil, false, err
	}
	return msg, true, nil
}

// Send posts payload from thread from to neighbor to through their
// boundary. A previous message still waiting in the same direction makes
// Send fail with ErrCapacityExceeded.
func (p *Pool) Send(from, to int, payload []byte) error {
	src, ok := p.Thread(from)
	if !ok {
		return api.NewError(api.ErrCodeNotFound, "hierarchy: no such thread").WithContext("id", from)
	}
	b := p.Boundary(from, to)
	if b == nil {
		return api.NewError(api.ErrCodeNotFound, "hierarchy: no boundary between threads").
			WithContext("from", from).WithContext("to", to)
	}
	src.sendMu.Lock()
	err := post(b, from, payload)
	src.sendMu.Unlock()
	if err != nil {
		return err
	}
	src.sent.Add(1)
	return nil
}

// Receive takes the pending message sent by from to thread to. ok is false
// when the mailbox is empty.
func (p *Pool) Receive(to, from int) (msg []byte, ok bool, err error) {
	dst, found := p.Thread(to)
	if !found {
		return nil, false, api.NewError(api.ErrCodeNotFound, "hierarchy: no such thread").WithContext("id", to)
	}
	b := p.Boundary(to, from)
	if b == nil {
		return nil, false, api.NewError(api.ErrCodeNotFound, "hierarchy: no boundary between threads").
			WithContext("from", from).WithContext("to", to)
	}
	dst.recvMu.Lock()
	msg, ok, err = take(b, to)
	dst.recvMu.Unlock()
	if ok {
		dst.received.Add(1)
	}
	return msg, ok, err
}

// Broadcast sends payload to every neighbor of from and returns how many
// messages were posted.
func (p *Pool) Broadcast(from int, payload []byte) (int, error) {
	src, ok := p.Thread(from)
	if !ok {
		return 0, api.NewError(api.ErrCodeNotFound, "hierarchy: no such thread").WithContext("id", from)
	}
	sent := 0
	var firstErr error
	for _, n := range src.Neighbors() {
		if err := p.Send(from, n.ID, payload); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}
	return sent, firstErr
}
