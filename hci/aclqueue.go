package hci

import (
	"github.com/pkg/errors"

	"github.com/gd-bt/hci/hal"
	"github.com/gd-bt/hci/hci/acl"
)

// DefaultAclQueueDepth is the bound used when no WithACLQueueDepth option
// is supplied.
const DefaultAclQueueDepth = 3

// AclReceiveSink receives inbound ACL packets as they drain off the lower
// end of the queue. Invoked on the handler goroutine.
type AclReceiveSink func(pkt acl.Packet)

type ringBuffer struct {
	items []acl.Packet
	depth int
}

func newRingBuffer(depth int) *ringBuffer {
	return &ringBuffer{depth: depth}
}

func (r *ringBuffer) push(p acl.Packet) bool {
	if len(r.items) >= r.depth {
		return false
	}
	r.items = append(r.items, p)
	return true
}

func (r *ringBuffer) pop() (acl.Packet, bool) {
	if len(r.items) == 0 {
		return nil, false
	}
	p := r.items[0]
	r.items = r.items[1:]
	return p, true
}

// aclQueue is the bounded bidirectional FIFO joining upper-stack
// producers/consumers to the HAL's ACL send/receive channel. The upper end
// is whatever calls EnqueueOutbound / registers a receive sink; the lower
// end is the HAL. Depth bounds both directions independently.
//
// SCO is out of scope: the HAL's SCO callback is wired to a no-op, per the
// data model's Non-goals.
type aclQueue struct {
	h    *handler
	hal  hal.HAL
	log  Logger
	pool BufferPool

	outbound *ringBuffer
	inbound  *ringBuffer

	receiveSink  AclReceiveSink
	errorHandler func(error)
}

func newAclQueue(h *handler, transport hal.HAL, log Logger, depth int, pool BufferPool, errHandler func(error)) *aclQueue {
	return &aclQueue{
		h:            h,
		hal:          transport,
		log:          log,
		pool:         pool,
		outbound:     newRingBuffer(depth),
		inbound:      newRingBuffer(depth),
		errorHandler: errHandler,
	}
}

// EnqueueOutbound submits pkt for transmission. If the outbound bound is
// already full the packet is dropped and logged — this queue applies
// backpressure by shedding rather than blocking the caller. Safe to call
// from any goroutine.
func (q *aclQueue) EnqueueOutbound(pkt acl.Packet) {
	q.h.post(func() {
		if !q.outbound.push(pkt) {
			q.log.Warnf("acl outbound queue full, dropping packet for handle 0x%04x", pkt.Handle())
			return
		}
		q.drainOutbound()
	})
}

func (q *aclQueue) drainOutbound() {
	for {
		pkt, ok := q.outbound.pop()
		if !ok {
			return
		}

		q.pool.Lock()
		buf := q.pool.Get(len(pkt))
		q.pool.Unlock()

		n := copy(buf, pkt)
		err := q.hal.SendAclData(buf[:n])

		q.pool.Lock()
		q.pool.Put(buf)
		q.pool.Unlock()

		if err != nil {
			if q.errorHandler != nil {
				q.errorHandler(errors.Wrap(err, "can't send acl data"))
			}
			return
		}
	}
}

// SetReceiveSink installs sink as the consumer of inbound ACL packets and
// immediately drains anything already buffered.
func (q *aclQueue) SetReceiveSink(sink AclReceiveSink) {
	q.h.post(func() {
		q.receiveSink = sink
		for {
			pkt, ok := q.inbound.pop()
			if !ok {
				return
			}
			sink(pkt)
		}
	})
}

// onAclDataReceived handles inbound ACL bytes from the HAL. Called on the
// handler goroutine (the HAL callback posts before invoking this).
func (q *aclQueue) onAclDataReceived(data []byte) {
	pkt := acl.Packet(append([]byte(nil), data...))

	if q.receiveSink != nil {
		q.receiveSink(pkt)
		return
	}
	if !q.inbound.push(pkt) {
		q.log.Warnf("acl inbound queue full, dropping packet for handle 0x%04x", pkt.Handle())
	}
}

// onScoDataReceived drops SCO traffic. SCO is out of scope for this
// module; the HAL still delivers it so the callback must exist, but it
// does nothing beyond acknowledging receipt for diagnostics.
func (q *aclQueue) onScoDataReceived(data []byte) {
	q.log.Debugf("dropping %d bytes of sco data", len(data))
}
