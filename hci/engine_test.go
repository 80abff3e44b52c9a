package hci

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/gd-bt/hci/hal"
	"github.com/gd-bt/hci/hci/cmd"
)

// fakeHAL is an in-memory hal.HAL double. SendHciCommand records every
// outbound packet; tests drive responses back in by calling the engine's
// onCommandStatus/onCommandComplete directly, since that's the router's
// only entry point in the real system too.
type fakeHAL struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
}

func (f *fakeHAL) SendHciCommand(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}
func (f *fakeHAL) SendAclData(data []byte) error                      { return nil }
func (f *fakeHAL) SendScoData(data []byte) error                      { return nil }
func (f *fakeHAL) RegisterIncomingPacketCallback(cb hal.Callbacks)     {}
func (f *fakeHAL) Close() error                                       { return nil }

func (f *fakeHAL) lastOpcode() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return OpCodeNone
	}
	return binary.LittleEndian.Uint16(f.sent[len(f.sent)-1][0:2])
}

func (f *fakeHAL) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// testingLogger discards everything but Fatalf, which it records onto a
// channel instead of aborting the process, so fatal-path tests can assert
// on it without crashing the test binary.
type testingLogger struct {
	fatal chan string
}

func newTestingLogger() *testingLogger {
	return &testingLogger{fatal: make(chan string, 8)}
}

func (l *testingLogger) Info(args ...interface{})      {}
func (l *testingLogger) Debug(args ...interface{})     {}
func (l *testingLogger) Warn(args ...interface{})      {}
func (l *testingLogger) Error(args ...interface{})     {}
func (l *testingLogger) Infof(string, ...interface{})  {}
func (l *testingLogger) Debugf(string, ...interface{}) {}
func (l *testingLogger) Warnf(string, ...interface{})  {}
func (l *testingLogger) Errorf(string, ...interface{}) {}
func (l *testingLogger) Fatalf(format string, args ...interface{}) {
	select {
	case l.fatal <- format:
	default:
	}
}
func (l *testingLogger) ChildLogger(map[string]interface{}) Logger { return l }

func (l *testingLogger) expectFatal(t *testing.T) {
	t.Helper()
	select {
	case <-l.fatal:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected a fatal log call, got none")
	}
}

func newTestEngine() (*engine, *fakeHAL, *testingLogger) {
	h := newHandler()
	fh := &fakeHAL{}
	log := newTestingLogger()
	e := newEngine(h, fh, log, 50*time.Millisecond, nil)
	return e, fh, log
}

func syncPost(h *handler, fn func()) {
	done := make(chan struct{})
	h.post(func() { fn(); close(done) })
	<-done
}

func TestEngineSendsResetFirst(t *testing.T) {
	e, fh, _ := newTestEngine()
	defer e.h.stop()

	var got []byte
	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Reset{}, onComplete: func(rp []byte) { got = rp }})
	})

	if fh.count() != 1 {
		t.Fatalf("expected 1 command sent, got %d", fh.count())
	}
	if fh.lastOpcode() != (cmd.Reset{}).OpCode() {
		t.Fatalf("expected reset opcode, got 0x%04x", fh.lastOpcode())
	}

	syncPost(e.h, func() {
		e.onCommandComplete(1, (cmd.Reset{}).OpCode(), []byte{0x00})
	})
	if got == nil || got[0] != 0x00 {
		t.Fatalf("completion sink did not receive return params: %v", got)
	}
}

func TestEngineAtMostOneInFlight(t *testing.T) {
	e, fh, _ := newTestEngine()
	defer e.h.stop()

	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Reset{}, onComplete: func([]byte) {}})
		e.enqueue(&commandQueueEntry{command: cmd.ReadBDADDR{}, onComplete: func([]byte) {}})
	})

	if fh.count() != 1 {
		t.Fatalf("expected exactly 1 command in flight, got %d sent", fh.count())
	}

	syncPost(e.h, func() {
		e.onCommandComplete(1, (cmd.Reset{}).OpCode(), []byte{0x00})
	})

	if fh.count() != 2 {
		t.Fatalf("expected second command sent after first completed, got %d", fh.count())
	}
	if fh.lastOpcode() != (cmd.ReadBDADDR{}).OpCode() {
		t.Fatalf("expected queued ReadBDADDR to be sent next, got 0x%04x", fh.lastOpcode())
	}
}

func TestEngineCreditOnlyStatusResumesSend(t *testing.T) {
	e, fh, _ := newTestEngine()
	defer e.h.stop()

	syncPost(e.h, func() { e.credits = 0 })
	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Reset{}, onComplete: func([]byte) {}})
	})
	if fh.count() != 0 {
		t.Fatalf("expected no command sent while credits == 0, got %d", fh.count())
	}

	syncPost(e.h, func() { e.onCommandStatus(0, 1, OpCodeNone) })
	if fh.count() != 1 {
		t.Fatalf("expected credit grant to resume sending, got %d sent", fh.count())
	}
}

func TestEngineCreditOnlyCompleteResumesSend(t *testing.T) {
	e, fh, _ := newTestEngine()
	defer e.h.stop()

	syncPost(e.h, func() { e.credits = 0 })
	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Reset{}, onComplete: func([]byte) {}})
	})
	if fh.count() != 0 {
		t.Fatalf("expected no command sent while credits == 0, got %d", fh.count())
	}

	// A Command Complete with opcode 0x0000 is a credit-only grant, not a
	// response to the outstanding Reset. It must update credits and
	// resume sending without touching the queue.
	syncPost(e.h, func() { e.onCommandComplete(1, OpCodeNone, nil) })
	if fh.count() != 1 {
		t.Fatalf("expected credit grant to resume sending, got %d sent", fh.count())
	}
	if len(e.queue) != 1 {
		t.Fatalf("expected the queued Reset to remain outstanding, got queue len %d", len(e.queue))
	}
}

func TestEngineStatusSinkInvoked(t *testing.T) {
	e, _, _ := newTestEngine()
	defer e.h.stop()

	var gotStatus uint8 = 0xff
	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Disconnect{}, waitingForStatus: true, onStatus: func(s uint8) { gotStatus = s }})
	})

	syncPost(e.h, func() { e.onCommandStatus(0x00, 1, (cmd.Disconnect{}).OpCode()) })

	if gotStatus != 0x00 {
		t.Fatalf("expected status sink invoked with 0x00, got 0x%02x", gotStatus)
	}
}

func TestEngineMismatchedOpcodeIsFatal(t *testing.T) {
	e, _, log := newTestEngine()
	defer e.h.stop()

	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Reset{}, onComplete: func([]byte) {}})
	})

	e.h.post(func() {
		e.onCommandComplete(1, (cmd.ReadBDADDR{}).OpCode(), nil)
	})

	log.expectFatal(t)
}

func TestEngineQueuedPairOrdering(t *testing.T) {
	e, fh, _ := newTestEngine()
	defer e.h.stop()

	var order []string
	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Reset{}, onComplete: func([]byte) { order = append(order, "reset") }})
		e.enqueue(&commandQueueEntry{command: cmd.ReadBDADDR{}, onComplete: func([]byte) { order = append(order, "bdaddr") }})
		e.enqueue(&commandQueueEntry{command: cmd.ReadBufferSize{}, onComplete: func([]byte) { order = append(order, "buffersize") }})
	})

	syncPost(e.h, func() { e.onCommandComplete(1, (cmd.Reset{}).OpCode(), []byte{0}) })
	syncPost(e.h, func() { e.onCommandComplete(1, (cmd.ReadBDADDR{}).OpCode(), []byte{0, 0, 0, 0, 0, 0, 0}) })
	syncPost(e.h, func() { e.onCommandComplete(1, (cmd.ReadBufferSize{}).OpCode(), []byte{0, 0, 0, 0, 0, 0, 0, 0}) })

	if len(order) != 3 || order[0] != "reset" || order[1] != "bdaddr" || order[2] != "buffersize" {
		t.Fatalf("expected fifo completion order, got %v", order)
	}
	if fh.count() != 3 {
		t.Fatalf("expected 3 commands sent total, got %d", fh.count())
	}
}

func TestEngineTimeoutIsFatal(t *testing.T) {
	e, _, log := newTestEngine()
	defer e.h.stop()

	syncPost(e.h, func() {
		e.enqueue(&commandQueueEntry{command: cmd.Reset{}, onComplete: func([]byte) {}})
	})
	// No response ever arrives; the watchdog armed in sendNextCommand must
	// fire after e.timeout and report fatally.
	log.expectFatal(t)
}
