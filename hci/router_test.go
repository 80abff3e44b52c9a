package hci

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/gd-bt/hci/hci/cmd"
	"github.com/gd-bt/hci/hci/evt"
)

func newTestRouter() (*router, *engine, *fakeHAL, *testingLogger) {
	e, fh, log := newTestEngine()
	r := newRouter(log, e)
	return r, e, fh, log
}

func TestRouterStripsCommandCompleteToEngine(t *testing.T) {
	r, e, _, _ := newTestRouter()
	defer e.h.stop()

	var got []byte
	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Reset{}, onComplete: func(rp []byte) { got = rp }})
	})

	params := make([]byte, 3+1)
	params[0] = 1 // num hci command packets
	binary.LittleEndian.PutUint16(params[1:3], (cmd.Reset{}).OpCode())
	params[3] = 0x00 // status

	syncPost(e.h, func() { r.onHciEvent(evt.CodeCommandComplete, params) })

	if got == nil || got[0] != 0x00 {
		t.Fatalf("expected command complete to route into engine, got %v", got)
	}
}

func TestRouterStripsCommandStatusToEngine(t *testing.T) {
	r, e, _, _ := newTestRouter()
	defer e.h.stop()

	var gotStatus uint8 = 0xff
	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Disconnect{}, waitingForStatus: true, onStatus: func(s uint8) { gotStatus = s }})
	})

	params := make([]byte, 4)
	params[0] = 0x00 // status
	params[1] = 1    // num hci command packets
	binary.LittleEndian.PutUint16(params[2:4], (cmd.Disconnect{}).OpCode())

	syncPost(e.h, func() { r.onHciEvent(evt.CodeCommandStatus, params) })

	if gotStatus != 0x00 {
		t.Fatalf("expected command status to route into engine, got 0x%02x", gotStatus)
	}
}

func TestRouterLeMetaEventSecondStageDispatch(t *testing.T) {
	r, e, _, _ := newTestRouter()
	defer e.h.stop()

	var gotHandle uint16
	called := make(chan struct{}, 1)
	r.RegisterLeEventHandler(evt.SubeventLEConnectionComplete, func(data []byte) {
		cc := evt.LEConnectionComplete(data)
		gotHandle = cc.ConnectionHandle()
		called <- struct{}{}
	})

	payload := make([]byte, 11)
	payload[0] = evt.SubeventLEConnectionComplete
	payload[1] = 0x00                                  // status
	binary.LittleEndian.PutUint16(payload[2:4], 0x0042) // connection handle

	syncPost(e.h, func() { r.onHciEvent(evt.CodeLEMetaEvent, payload) })

	select {
	case <-called:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("le subevent handler was not invoked")
	}
	if gotHandle != 0x0042 {
		t.Fatalf("expected connection handle 0x0042, got 0x%04x", gotHandle)
	}
}

func TestRouterBuiltInDropHandlers(t *testing.T) {
	r, e, _, log := newTestRouter()
	defer e.h.stop()

	syncPost(e.h, func() { r.onHciEvent(evt.CodePageScanRepetitionModeChange, []byte{0x01}) })
	syncPost(e.h, func() { r.onHciEvent(evt.CodeMaxSlotsChange, []byte{0x01}) })
	syncPost(e.h, func() { r.onHciEvent(evt.CodeVendorSpecific, []byte{0x01, 0x02}) })

	select {
	case <-log.fatal:
		t.Fatal("built-in drop handlers should not be fatal")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRouterDoubleRegisterIsFatal(t *testing.T) {
	r, e, _, log := newTestRouter()
	defer e.h.stop()

	r.RegisterEventHandler(evt.CodeDisconnectionComplete, func([]byte) {})
	r.RegisterEventHandler(evt.CodeDisconnectionComplete, func([]byte) {})

	log.expectFatal(t)
}

func TestRouterUnregisterAbsentIsFatal(t *testing.T) {
	r, e, _, log := newTestRouter()
	defer e.h.stop()

	r.UnregisterEventHandler(evt.CodeEncryptionChange)

	log.expectFatal(t)
}

func TestRouterMissingLeSubeventHandlerIsFatal(t *testing.T) {
	r, e, _, log := newTestRouter()
	defer e.h.stop()

	payload := []byte{evt.SubeventLEAdvertisingReport, 0x00}
	syncPost(e.h, func() { r.onHciEvent(evt.CodeLEMetaEvent, payload) })

	log.expectFatal(t)
}

func TestRouterMissingGeneralEventHandlerIsSoftDrop(t *testing.T) {
	r, e, _, log := newTestRouter()
	defer e.h.stop()

	syncPost(e.h, func() { r.onHciEvent(evt.CodeDisconnectionComplete, []byte{0x00, 0x01, 0x00, 0x13}) })

	select {
	case <-log.fatal:
		t.Fatal("an unregistered general event should be a soft drop, not fatal")
	case <-time.After(20 * time.Millisecond):
	}
}
