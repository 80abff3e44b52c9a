package hci

import (
	"testing"
	"time"

	"github.com/gd-bt/hci/hci/acl"
)

type fakeAclHAL struct {
	fakeHAL
	aclSent [][]byte
}

func (f *fakeAclHAL) SendAclData(data []byte) error {
	f.aclSent = append(f.aclSent, append([]byte(nil), data...))
	return nil
}

func newTestAclQueue(depth int) (*aclQueue, *fakeAclHAL, *handler) {
	h := newHandler()
	fh := &fakeAclHAL{}
	log := newTestingLogger()
	pool := newBufferPool(depth, 64)
	q := newAclQueue(h, fh, log, depth, pool, nil)
	return q, fh, h
}

func TestAclQueueOutboundDrainsToHal(t *testing.T) {
	q, fh, h := newTestAclQueue(3)
	defer h.stop()

	pkt := acl.NewPacket(0x0040, acl.PbfFirstNonAutoFlushable, []byte{0xde, 0xad})
	syncPost(h, func() { q.EnqueueOutbound(pkt) })
	syncPost(h, func() {})

	time.Sleep(10 * time.Millisecond)
	if len(fh.aclSent) != 1 {
		t.Fatalf("expected 1 acl packet sent, got %d", len(fh.aclSent))
	}
}

func TestAclQueueOutboundBoundDropsOnFull(t *testing.T) {
	q, _, h := newTestAclQueue(0) // zero-depth: every enqueue overflows
	defer h.stop()

	pkt := acl.NewPacket(0x0040, acl.PbfFirstNonAutoFlushable, []byte{0x01})
	syncPost(h, func() { q.EnqueueOutbound(pkt) })
	// No panic, no crash: overflow is a logged drop.
}

func TestAclQueueInboundBuffersUntilSinkRegistered(t *testing.T) {
	q, _, h := newTestAclQueue(3)
	defer h.stop()

	raw := []byte(acl.NewPacket(0x0041, acl.PbfFirstNonAutoFlushable, []byte{0x01, 0x02}))
	syncPost(h, func() { q.onAclDataReceived(raw) })

	var got acl.Packet
	done := make(chan struct{})
	q.SetReceiveSink(func(pkt acl.Packet) { got = pkt; close(done) })

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("receive sink was never invoked with the buffered packet")
	}
	if got.Handle() != 0x0041 {
		t.Fatalf("expected handle 0x0041, got 0x%04x", got.Handle())
	}
}

func TestAclQueueScoIsDropped(t *testing.T) {
	q, _, h := newTestAclQueue(3)
	defer h.stop()

	syncPost(h, func() { q.onScoDataReceived([]byte{0x01, 0x02, 0x03}) })
	// No observable effect beyond a debug log: SCO is out of scope.
}
