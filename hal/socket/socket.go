// +build linux

// Package socket implements hal.HAL over a Linux BlueZ raw HCI
// user-channel socket.
package socket

import (
	"fmt"
	"io"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/gd-bt/hci/hal"
)

func ioR(t, nr, size uintptr) uintptr {
	return (2 << 30) | (t << 8) | nr | (size << 16)
}

func ioW(t, nr, size uintptr) uintptr {
	return (1 << 30) | (t << 8) | nr | (size << 16)
}

func ioctl(fd, op, arg uintptr) error {
	if _, _, ep := unix.Syscall(unix.SYS_IOCTL, fd, op, arg); ep != 0 {
		return ep
	}
	return nil
}

const (
	ioctlSize      = 4
	hciMaxDevices  = 16
	typHCI         = 72 // 'H'
	readTimeout    = 1000
	unixPollErrors = int16(unix.POLLHUP | unix.POLLNVAL | unix.POLLERR)
	unixPollDataIn = int16(unix.POLLIN)

	pktTypeCommand = 0x01
	pktTypeACLData = 0x02
	pktTypeSCOData = 0x03
	pktTypeEvent   = 0x04
)

var (
	hciUpDevice      = ioW(typHCI, 201, ioctlSize) // HCIDEVUP
	hciDownDevice    = ioW(typHCI, 202, ioctlSize) // HCIDEVDOWN
	hciResetDevice   = ioW(typHCI, 203, ioctlSize) // HCIDEVRESET
	hciGetDeviceList = ioR(typHCI, 210, ioctlSize) // HCIGETDEVLIST
	hciGetDeviceInfo = ioR(typHCI, 211, ioctlSize) // HCIGETDEVINFO
)

type devListRequest struct {
	devNum     uint16
	devRequest [hciMaxDevices]struct {
		id  uint16
		opt uint32
	}
}

// rawSocket implements a HCI User Channel as an io.ReadWriteCloser. It
// speaks raw framed HCI packets (type byte + payload) with no knowledge of
// command/event semantics.
type rawSocket struct {
	fd   int
	rmu  sync.Mutex
	wmu  sync.Mutex
	done chan int
	cmu  sync.Mutex
}

// newRawSocket returns a HCI User Channel socket of the specified device
// id. If id is -1, the first available HCI device is used.
func newRawSocket(id int) (*rawSocket, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, errors.Wrap(err, "can't create socket")
	}

	if id != -1 {
		to := time.Now().Add(time.Second * 60)
		var s *rawSocket
		for time.Now().Before(to) {
			s, err = open(fd, id)
			if err == nil {
				return s, nil
			}
			unix.Close(fd)
			<-time.After(time.Second)
		}
		return nil, err
	}

	req := devListRequest{devNum: hciMaxDevices}
	if err = ioctl(uintptr(fd), hciGetDeviceList, uintptr(unsafe.Pointer(&req))); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "can't get device list")
	}
	var msg string
	for id := 0; id < int(req.devNum); id++ {
		s, err := open(fd, id)
		if err == nil {
			return s, nil
		}
		msg = msg + fmt.Sprintf("(hci%d: %s)", id, err)
	}
	unix.Close(fd)
	return nil, errors.Errorf("no devices available: %s", msg)
}

func open(fd, id int) (*rawSocket, error) {
	// HCI User Channel requires exclusive access to the device.
	// The device has to be down at the time of binding.
	if err := ioctl(uintptr(fd), hciDownDevice, uintptr(id)); err != nil {
		return nil, errors.Wrap(err, "can't down device")
	}

	sa := unix.SockaddrHCI{Dev: uint16(id), Channel: unix.HCI_CHANNEL_USER}
	if err := unix.Bind(fd, &sa); err != nil {
		return nil, errors.Wrap(err, "can't bind socket to hci user channel")
	}

	pfds := []unix.PollFd{{Fd: int32(fd), Events: unixPollDataIn}}
	unix.Poll(pfds, 20)
	evts := pfds[0].Revents

	switch {
	case evts&unixPollErrors != 0:
		return nil, io.EOF
	case evts&unixPollDataIn != 0:
		b := make([]byte, 2048)
		unix.Read(fd, b)
	}

	return &rawSocket{fd: fd, done: make(chan int)}, nil
}

func (s *rawSocket) Read(p []byte) (int, error) {
	if !s.isOpen() {
		return 0, io.EOF
	}

	var err error
	n := 0
	s.rmu.Lock()
	defer s.rmu.Unlock()
	pfds := []unix.PollFd{{Fd: int32(s.fd), Events: unixPollDataIn}}
	unix.Poll(pfds, readTimeout)
	evts := pfds[0].Revents

	switch {
	case evts&unixPollErrors != 0:
		return 0, io.EOF
	case evts&unixPollDataIn != 0:
		n, err = unix.Read(s.fd, p)
	default:
		return 0, nil
	}

	if !s.isOpen() {
		return 0, io.EOF
	}
	return n, errors.Wrap(err, "can't read hci socket")
}

func (s *rawSocket) Write(p []byte) (int, error) {
	if !s.isOpen() {
		return 0, io.EOF
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	n, err := unix.Write(s.fd, p)
	return n, errors.Wrap(err, "can't write hci socket")
}

func (s *rawSocket) Close() error {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
		s.rmu.Lock()
		err := unix.Close(s.fd)
		s.rmu.Unlock()
		return errors.Wrap(err, "can't close hci socket")
	}
}

func (s *rawSocket) isOpen() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// HAL implements hal.HAL over a BlueZ raw HCI user-channel socket. Unlike
// the plain rawSocket, HAL understands HCI packet-type framing and
// demultiplexes inbound bytes to the registered hal.Callbacks, mirroring
// the split the original HCI layer draws between "HAL decodes the wire"
// and "HCI core interprets decoded frames".
type HAL struct {
	sock *rawSocket

	mu  sync.Mutex
	cbs hal.Callbacks
}

// Open returns a HAL-shaped raw HCI socket transport for the given device
// index (-1 selects the first available device) and starts its read loop.
func Open(id int) (*HAL, error) {
	sock, err := newRawSocket(id)
	if err != nil {
		return nil, err
	}
	h := &HAL{sock: sock}
	go h.readLoop()
	return h, nil
}

func (h *HAL) RegisterIncomingPacketCallback(cb hal.Callbacks) {
	h.mu.Lock()
	h.cbs = cb
	h.mu.Unlock()
}

func (h *HAL) SendHciCommand(data []byte) error {
	return h.send(pktTypeCommand, data)
}

func (h *HAL) SendAclData(data []byte) error {
	return h.send(pktTypeACLData, data)
}

func (h *HAL) SendScoData(data []byte) error {
	return h.send(pktTypeSCOData, data)
}

func (h *HAL) send(pktType byte, data []byte) error {
	b := make([]byte, 1+len(data))
	b[0] = pktType
	copy(b[1:], data)
	_, err := h.sock.Write(b)
	return err
}

func (h *HAL) Close() error {
	return h.sock.Close()
}

func (h *HAL) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := h.sock.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		h.dispatch(buf[0], buf[1:n])
	}
}

func (h *HAL) dispatch(pktType byte, payload []byte) {
	h.mu.Lock()
	cbs := h.cbs
	h.mu.Unlock()
	if cbs == nil {
		return
	}

	frame := make([]byte, len(payload))
	copy(frame, payload)

	switch pktType {
	case pktTypeEvent:
		cbs.HciEventReceived(frame)
	case pktTypeACLData:
		cbs.AclDataReceived(frame)
	case pktTypeSCOData:
		// Forwarded as-is; the HCI core's SCO callback drops it.
		cbs.ScoDataReceived(frame)
	default:
		// unsupported vendor/raw packet type; ignore
	}
}
