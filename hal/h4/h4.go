// +build linux

// Package h4 implements hal.HAL over an H4 UART transport: raw HCI frames
// prefixed with a packet-type byte, reassembled from a serial byte stream.
package h4

import (
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gd-bt/hci/hal"
)

const (
	rxQueueSize = 64

	pktTypeCommand = 0x01
	pktTypeACLData = 0x02
	pktTypeSCOData = 0x03
	pktTypeEvent   = 0x04
)

// HAL implements hal.HAL over a UART H4 transport.
type HAL struct {
	sp  serialPort
	wmu sync.Mutex

	mu  sync.Mutex
	cbs hal.Callbacks

	frame        []byte
	frameTimeout time.Time

	rxQueue chan []byte
	done    chan struct{}
	closeMu sync.Mutex

	log logrus.FieldLogger
}

type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens the named serial port and starts the H4 frame-assembly and
// dispatch loop. opts.PortName must be set; MinimumReadSize and
// InterCharacterTimeout are forced to values appropriate for H4 framing.
func Open(opts serial.OpenOptions) (*HAL, error) {
	opts.MinimumReadSize = 0
	opts.InterCharacterTimeout = 100

	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "can't open h4 serial port")
	}

	// Flush any stale bytes left on the wire by writing a no-op reset
	// command and discarding whatever comes back within the settle window.
	sp.Write([]byte{pktTypeCommand, 0x03, 0x0c, 0x00})
	<-time.After(250 * time.Millisecond)
	junk := make([]byte, 2048)
	sp.Read(junk)

	h := &HAL{
		sp:      sp,
		rxQueue: make(chan []byte, rxQueueSize),
		done:    make(chan struct{}),
		log:     logrus.WithField("hal", "h4"),
	}
	h.frameReset()

	go h.rxLoop()
	go h.dispatchLoop()

	return h, nil
}

func (h *HAL) RegisterIncomingPacketCallback(cb hal.Callbacks) {
	h.mu.Lock()
	h.cbs = cb
	h.mu.Unlock()
}

func (h *HAL) SendHciCommand(data []byte) error { return h.send(pktTypeCommand, data) }
func (h *HAL) SendAclData(data []byte) error    { return h.send(pktTypeACLData, data) }
func (h *HAL) SendScoData(data []byte) error    { return h.send(pktTypeSCOData, data) }

func (h *HAL) send(pktType byte, data []byte) error {
	h.wmu.Lock()
	defer h.wmu.Unlock()

	b := make([]byte, 1+len(data))
	b[0] = pktType
	copy(b[1:], data)
	_, err := h.sp.Write(b)
	return errors.Wrap(err, "can't write h4")
}

func (h *HAL) Close() error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()

	select {
	case <-h.done:
		return nil
	default:
		close(h.done)
		return errors.Wrap(h.sp.Close(), "can't close h4")
	}
}

func (h *HAL) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *HAL) rxLoop() {
	tmp := make([]byte, 512)
	for h.isOpen() {
		n, err := h.sp.Read(tmp)
		if err != nil || n == 0 {
			continue
		}
		h.frameAssemble(tmp[:n])
	}
}

func (h *HAL) dispatchLoop() {
	for {
		select {
		case <-h.done:
			return
		case frame := <-h.rxQueue:
			h.mu.Lock()
			cbs := h.cbs
			h.mu.Unlock()
			if cbs == nil || len(frame) == 0 {
				continue
			}
			switch frame[0] {
			case pktTypeEvent:
				cbs.HciEventReceived(frame[1:])
			case pktTypeACLData:
				cbs.AclDataReceived(frame[1:])
			case pktTypeSCOData:
				cbs.ScoDataReceived(frame[1:])
			default:
				h.log.Debugf("dropping unsupported h4 packet type 0x%02x", frame[0])
			}
		}
	}
}

// frameAssemble implements the H4 reassembly state machine: a frame is a
// one-byte packet type, the event code, a parameter length byte and that
// many parameter bytes. Only event frames are assembled; a fragment that
// starts with any other packet type is dropped. Partial frames accumulate
// across reads; a frame with no progress within 500ms is abandoned and
// restarted.
func (h *HAL) frameAssemble(b []byte) {
	switch {
	case len(b) == 0:
		return
	case time.Now().After(h.frameTimeout):
		h.frameReset()
	default:
	}

	var more, done []byte
	new := false

	if len(h.frame) == 0 {
		if len(b) < 3 {
			h.log.Debugf("short h4 fragment, len %d", len(b))
			return
		}
		if b[0] != pktTypeEvent {
			h.log.Debugf("unhandled h4 packet type 0x%02x", b[0])
			return
		}
		new = true
		h.frame = append(h.frame, b[:3]...)
	}

	start := 0
	if new {
		start = 3
	}

	rem := b[start:]
	exp := int(h.frame[2])

	switch {
	case len(rem) < exp:
		h.frame = append(h.frame, rem...)
	case len(rem) == exp:
		done = append(h.frame, rem...)
	case len(rem) > exp:
		done = append(h.frame, rem[:exp]...)
		more = rem[exp:]
	}

	if len(done) != 0 {
		h.rxQueue <- done
		h.frameReset()
	}
	if len(more) != 0 {
		h.frameAssemble(more)
	}
}

func (h *HAL) frameReset() {
	h.frame = make([]byte, 0, 256)
	h.frameTimeout = time.Now().Add(500 * time.Millisecond)
}
