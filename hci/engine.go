package hci

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/gd-bt/hci/hal"
	"github.com/gd-bt/hci/hci/cmd"
)

// OpCodeNone is the sentinel opcode meaning "no command outstanding",
// matching OpCode::NONE in the original HCI layer.
const OpCodeNone uint16 = 0x0000

// CompletionSink receives a command's return parameters when the
// controller answers with Command Complete. Invoked at most once.
type CompletionSink func(returnParams []byte)

// StatusSink receives a command's status byte when the controller answers
// with Command Status. Invoked at most once.
type StatusSink func(status uint8)

type commandQueueEntry struct {
	command          cmd.Command
	waitingForStatus bool
	onStatus         StatusSink
	onComplete       CompletionSink
}

// engine is the command dispatch engine: FIFO queue, credit-based flow
// control clamped to at most one outstanding command, and a watchdog
// timeout. Every method here assumes it runs on the owning handler
// goroutine; callers reach it only through the handler's task channel.
type engine struct {
	h       *handler
	hal     hal.HAL
	log     Logger
	timeout time.Duration

	queue   []*commandQueueEntry
	credits int
	waiting uint16
	timer   *time.Timer

	errorHandler func(error)
}

func newEngine(h *handler, transport hal.HAL, log Logger, timeout time.Duration, errHandler func(error)) *engine {
	return &engine{
		h:            h,
		hal:          transport,
		log:          log,
		timeout:      timeout,
		credits:      1, // Send Reset first.
		waiting:      OpCodeNone,
		errorHandler: errHandler,
	}
}

// EnqueueCommandExpectingComplete queues c for transmission and arranges
// for sink to run when the controller answers with Command Complete. Safe
// to call from any goroutine.
func (e *engine) EnqueueCommandExpectingComplete(c cmd.Command, sink CompletionSink) {
	e.h.post(func() {
		e.enqueue(&commandQueueEntry{command: c, waitingForStatus: false, onComplete: sink})
	})
}

// EnqueueCommandExpectingStatus queues c for transmission and arranges for
// sink to run when the controller answers with Command Status. Safe to
// call from any goroutine.
func (e *engine) EnqueueCommandExpectingStatus(c cmd.Command, sink StatusSink) {
	e.h.post(func() {
		e.enqueue(&commandQueueEntry{command: c, waitingForStatus: true, onStatus: sink})
	})
}

func (e *engine) enqueue(entry *commandQueueEntry) {
	e.queue = append(e.queue, entry)
	e.sendNextCommand()
}

// sendNextCommand is gated, in order, by: credits available, no command
// already outstanding, queue non-empty. Sending clamps credits to zero
// regardless of how many the controller actually granted — only one
// command may be in flight at a time.
func (e *engine) sendNextCommand() {
	if e.credits == 0 {
		return
	}
	if e.waiting != OpCodeNone {
		return
	}
	if len(e.queue) == 0 {
		return
	}

	front := e.queue[0]
	opcode := front.command.OpCode()
	payload := front.command.Marshal()

	pkt := make([]byte, 3+len(payload))
	binary.LittleEndian.PutUint16(pkt[0:2], opcode)
	pkt[2] = byte(len(payload))
	copy(pkt[3:], payload)

	if err := e.hal.SendHciCommand(pkt); err != nil {
		if e.errorHandler != nil {
			e.errorHandler(errors.Wrap(err, "can't send hci command"))
		}
		return
	}

	e.waiting = opcode
	e.credits = 0
	e.armTimeout(opcode)
}

func (e *engine) armTimeout(opcode uint16) {
	e.timer = time.AfterFunc(e.timeout, func() {
		e.h.post(func() { e.onTimeout(opcode) })
	})
}

func (e *engine) cancelTimeout() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *engine) onTimeout(opcode uint16) {
	if e.waiting != opcode {
		// Stale timer racing a response that already resolved; ignore.
		return
	}
	fatalf(e.log, "timed out waiting for response to opcode 0x%04x", opcode)
}

// onCommandStatus handles an inbound Command Status event. opcode ==
// OpCodeNone signals a credit-only grant with no associated command, per
// the controller's right to advertise more credits unsolicited.
func (e *engine) onCommandStatus(status uint8, numHciCommandPackets uint8, opcode uint16) {
	e.credits = int(numHciCommandPackets)

	if opcode == OpCodeNone {
		e.sendNextCommand()
		return
	}

	if len(e.queue) == 0 {
		fatalf(e.log, "command status for opcode 0x%04x with an empty command queue", opcode)
		return
	}
	front := e.queue[0]
	if e.waiting != opcode {
		fatalf(e.log, "command status opcode mismatch: outstanding 0x%04x, received 0x%04x", e.waiting, opcode)
		return
	}
	if !front.waitingForStatus {
		fatalf(e.log, "command status received for opcode 0x%04x but queue head expected command complete", opcode)
		return
	}

	e.cancelTimeout()
	e.queue = e.queue[1:]
	e.waiting = OpCodeNone

	if front.onStatus != nil {
		front.onStatus(status)
	}
	e.sendNextCommand()
}

// onCommandComplete handles an inbound Command Complete event.
func (e *engine) onCommandComplete(numHciCommandPackets uint8, opcode uint16, returnParams []byte) {
	e.credits = int(numHciCommandPackets)

	if opcode == OpCodeNone {
		e.sendNextCommand()
		return
	}

	if len(e.queue) == 0 {
		fatalf(e.log, "command complete for opcode 0x%04x with an empty command queue", opcode)
		return
	}
	front := e.queue[0]
	if e.waiting != opcode {
		fatalf(e.log, "command complete opcode mismatch: outstanding 0x%04x, received 0x%04x", e.waiting, opcode)
		return
	}
	if front.waitingForStatus {
		fatalf(e.log, "command complete received for opcode 0x%04x but queue head expected command status", opcode)
		return
	}

	e.cancelTimeout()
	e.queue = e.queue[1:]
	e.waiting = OpCodeNone

	if front.onComplete != nil {
		front.onComplete(returnParams)
	}
	e.sendNextCommand()
}
