package hci

import (
	"github.com/gd-bt/hci/hci/evt"
)

// EventHandler processes a general HCI event's raw parameter bytes.
type EventHandler func(data []byte)

// SubeventHandler processes an LE meta-event subevent's raw parameter
// bytes (the subevent code itself already consumed).
type SubeventHandler func(data []byte)

// router demultiplexes inbound HCI events to registered handlers. Command
// Complete, Command Status, and LE Meta Event are special-cased to steer
// into the command engine (and, for LE Meta Event, into the subevent
// table) rather than going through the general table.
//
// Registration is intentionally strict: registering a second handler for
// an event code that already has one, or unregistering a code that was
// never registered, are both programming errors and abort the process —
// matching the original HCI layer's ASSERT_LOG semantics. An unregistered
// general event is a soft, logged drop; an unregistered LE subevent is
// fatal, since every LE subevent the controller can report is expected to
// have a home.
type router struct {
	log Logger
	eng *engine

	eventHandlers    map[uint8]EventHandler
	subeventHandlers map[uint8]SubeventHandler
}

func newRouter(log Logger, eng *engine) *router {
	r := &router{
		log:              log,
		eng:              eng,
		eventHandlers:    make(map[uint8]EventHandler),
		subeventHandlers: make(map[uint8]SubeventHandler),
	}
	r.registerDrop(evt.CodePageScanRepetitionModeChange)
	r.registerDrop(evt.CodeMaxSlotsChange)
	r.registerDrop(evt.CodeVendorSpecific)
	return r
}

func (r *router) registerDrop(code uint8) {
	r.eventHandlers[code] = func([]byte) {}
}

// RegisterEventHandler installs h for event code. Fatal if code already
// has a handler.
func (r *router) RegisterEventHandler(code uint8, h EventHandler) {
	if _, ok := r.eventHandlers[code]; ok {
		fatalf(r.log, "can not register a second handler for event code 0x%02x", code)
		return
	}
	r.eventHandlers[code] = h
}

// UnregisterEventHandler removes the handler for code. Fatal if code has
// no handler — this strictness is intentional, matching the original
// layer's unconditional map-iterator dereference.
func (r *router) UnregisterEventHandler(code uint8) {
	if _, ok := r.eventHandlers[code]; !ok {
		fatalf(r.log, "can not unregister event code 0x%02x: no handler registered", code)
		return
	}
	delete(r.eventHandlers, code)
}

// RegisterLeEventHandler installs h for LE subevent code. Fatal if code
// already has a handler.
func (r *router) RegisterLeEventHandler(code uint8, h SubeventHandler) {
	if _, ok := r.subeventHandlers[code]; ok {
		fatalf(r.log, "can not register a second handler for le subevent code 0x%02x", code)
		return
	}
	r.subeventHandlers[code] = h
}

// UnregisterLeEventHandler removes the handler for LE subevent code. Fatal
// if code has no handler.
func (r *router) UnregisterLeEventHandler(code uint8) {
	if _, ok := r.subeventHandlers[code]; !ok {
		fatalf(r.log, "can not unregister le subevent code 0x%02x: no handler registered", code)
		return
	}
	delete(r.subeventHandlers, code)
}

// onHciEvent is the entry point for every inbound HCI event, called on the
// handler goroutine. code and params have already had the event header
// (code + plen) stripped off by the caller.
func (r *router) onHciEvent(code uint8, params []byte) {
	switch code {
	case evt.CodeCommandComplete:
		cc := evt.CommandComplete(params)
		r.eng.onCommandComplete(cc.NumHCICommandPackets(), cc.CommandOpcode(), cc.ReturnParameters())
		return
	case evt.CodeCommandStatus:
		cs := evt.CommandStatus(params)
		r.eng.onCommandStatus(cs.Status(), cs.NumHCICommandPackets(), cs.CommandOpcode())
		return
	case evt.CodeLEMetaEvent:
		r.onLeMetaEvent(evt.LEMetaEvent(params))
		return
	}

	h, ok := r.eventHandlers[code]
	if !ok {
		r.log.Debugf("dropping unregistered event code 0x%02x", code)
		return
	}
	h(params)
}

func (r *router) onLeMetaEvent(e evt.LEMetaEvent) {
	sub := e.SubeventCode()
	h, ok := r.subeventHandlers[sub]
	if !ok {
		fatalf(r.log, "unhandled le subevent code 0x%02x", sub)
		return
	}
	h(e.Data())
}
