// Package hci implements a Host Controller Interface dispatch core: a
// command/event engine with credit-based flow control and a watchdog
// timeout, an event router with LE meta-event second-stage dispatch, a
// bounded bidirectional ACL queue, and six per-profile facade interfaces
// over the command engine. It owns none of the transport itself — that's
// the hal.HAL the caller supplies.
package hci

import (
	"github.com/pkg/errors"

	"github.com/gd-bt/hci/hal"
	"github.com/gd-bt/hci/hci/cmd"
	"github.com/gd-bt/hci/hci/evt"
)

// HCI is the dispatch core. Construct with New, drive its lifecycle with
// Start/Stop, and obtain facades from the six GetXInterface accessors once
// running.
type HCI struct {
	cfg *config
	h   *handler
	eng *engine
	rtr *router
	acl *aclQueue
	bc  *bondCache

	// peers maps an open connection handle to the peer identity address
	// reported in its LE Connection Complete, so the LE Security facade
	// can correlate a bare connection handle (all LE Long Term Key
	// Request carries) back to a bond cache entry.
	peers map[uint16]peerAddr

	leConnCompleteCB  func(evt.LEConnectionComplete)
	disconnCompleteCB func(evt.DisconnectionComplete)
	ltkRequestCB      func(evt.LELongTermKeyRequest)

	started bool
}

// New builds an HCI instance from opts. WithTransport is required.
func New(opts ...Option) (*HCI, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, errors.Wrap(err, "invalid hci option")
		}
	}
	if cfg.transport == nil {
		return nil, errors.New("hci: WithTransport is required")
	}

	h := newHandler()
	eng := newEngine(h, cfg.transport, cfg.log, cfg.commandTimeout, cfg.errorHandler)
	rtr := newRouter(cfg.log, eng)
	// Buffer parameters aren't known until Reset/ReadBufferSize complete;
	// start with a conservative pool and resize once negotiated.
	pool := newBufferPool(cfg.aclQueueDepth, 27)
	acl := newAclQueue(h, cfg.transport, cfg.log, cfg.aclQueueDepth, pool, cfg.errorHandler)

	hc := &HCI{
		cfg:   cfg,
		h:     h,
		eng:   eng,
		rtr:   rtr,
		acl:   acl,
		bc:    newBondCache(cfg.bondCachePath),
		peers: make(map[uint16]peerAddr),
	}

	// These three are always registered, independent of facade
	// acquisition, so peer-address/bond-cache correlation works even
	// before a caller acquires the corresponding facade. Acquisition
	// only attaches the caller's callback (see the GetXInterface
	// accessors below); it never touches router registration for these
	// codes.
	rtr.RegisterEventHandler(evt.CodeDisconnectionComplete, func(data []byte) {
		hc.onDisconnectionComplete(evt.DisconnectionComplete(data))
	})
	rtr.RegisterLeEventHandler(evt.SubeventLEConnectionComplete, func(data []byte) {
		hc.onLeConnectionComplete(evt.LEConnectionComplete(data))
	})
	rtr.RegisterLeEventHandler(evt.SubeventLELongTermKeyRequest, func(data []byte) {
		hc.onLeLongTermKeyRequest(evt.LELongTermKeyRequest(data))
	})

	return hc, nil
}

// onLeConnectionComplete records the peer address behind a new LE
// connection handle so later LE Long Term Key Request events for that
// handle can be resolved against the bond cache.
func (hc *HCI) onLeConnectionComplete(e evt.LEConnectionComplete) {
	if e.Status() == 0 {
		hc.peers[e.ConnectionHandle()] = peerAddr{Address: e.PeerAddress(), AddressType: e.PeerAddressType()}
	}
	if hc.leConnCompleteCB != nil {
		hc.leConnCompleteCB(e)
	}
}

// onDisconnectionComplete drops the peer-address record for a closed
// handle — stale entries would otherwise misattribute a future LTK
// request on a reused handle to the wrong bond.
func (hc *HCI) onDisconnectionComplete(e evt.DisconnectionComplete) {
	delete(hc.peers, e.ConnectionHandle())
	if hc.disconnCompleteCB != nil {
		hc.disconnCompleteCB(e)
	}
}

// onLeLongTermKeyRequest answers automatically from the bond cache when
// the requesting handle resolves to a peer with a stored LTK; otherwise
// it falls through to the caller's LeSecurityEvents.LongTermKeyRequest,
// which is expected to drive fresh pairing and then call
// LeSecurityInterface.LongTermKeyRequestReply itself.
func (hc *HCI) onLeLongTermKeyRequest(e evt.LELongTermKeyRequest) {
	if peer, ok := hc.peers[e.ConnectionHandle()]; ok {
		if entry, found := hc.bc.get(peer.Address, peer.AddressType); found {
			hc.eng.EnqueueCommandExpectingComplete(cmd.LELongTermKeyRequestReply{
				ConnectionHandle: e.ConnectionHandle(),
				LongTermKey:      entry.LongTermKey,
			}, func([]byte) {})
			return
		}
	}
	if hc.ltkRequestCB != nil {
		hc.ltkRequestCB(e)
	}
}

// callbacks adapts hal.Callbacks onto the handler goroutine.
type callbacks struct{ hc *HCI }

func (cb *callbacks) HciEventReceived(data []byte) {
	cb.hc.h.post(func() { cb.hc.onHciEvent(data) })
}

func (cb *callbacks) AclDataReceived(data []byte) {
	cb.hc.h.post(func() { cb.hc.acl.onAclDataReceived(data) })
}

func (cb *callbacks) ScoDataReceived(data []byte) {
	cb.hc.h.post(func() { cb.hc.acl.onScoDataReceived(data) })
}

func (hc *HCI) onHciEvent(data []byte) {
	if len(data) < 2 {
		hc.cfg.log.Warnf("dropping short hci event (%d bytes)", len(data))
		return
	}
	code := data[0]
	plen := int(data[1])
	if len(data) < 2+plen {
		hc.cfg.log.Warnf("dropping truncated hci event code 0x%02x", code)
		return
	}
	hc.rtr.onHciEvent(code, data[2:2+plen])
}

// Start loads the bond cache, subscribes to the HAL, and runs the startup
// command sequence: Reset, ReadBDADDR, ReadBufferSize, LEReadBufferSize,
// LEReadAdvertisingChannelTxPower, LESetEventMask, SetEventMask,
// WriteLEHostSupport. Reset failing anywhere in the chain is fatal — an
// unresponsive or malfunctioning controller cannot be worked around.
func (hc *HCI) Start() error {
	if err := hc.bc.load(); err != nil {
		return err
	}

	hc.cfg.transport.RegisterIncomingPacketCallback(&callbacks{hc: hc})

	hc.eng.EnqueueCommandExpectingComplete(cmd.Reset{}, func(rp []byte) {
		var out cmd.ResetRP
		if err := out.Unmarshal(rp); err != nil || out.Status != 0 {
			fatalf(hc.cfg.log, "reset failed: %v (status=%v)", err, out.Status)
			return
		}
		hc.continueStartup()
	})

	hc.started = true
	return nil
}

func (hc *HCI) continueStartup() {
	hc.eng.EnqueueCommandExpectingComplete(cmd.ReadBDADDR{}, func(rp []byte) {
		var out cmd.ReadBDADDRRP
		_ = out.Unmarshal(rp)
	})

	hc.eng.EnqueueCommandExpectingComplete(cmd.ReadBufferSize{}, func(rp []byte) {
		var out cmd.ReadBufferSizeRP
		if err := out.Unmarshal(rp); err == nil {
			hc.acl.pool = newBufferPool(int(out.TotalNumACLDataPackets), int(out.ACLDataPacketLength))
		}
	})

	hc.eng.EnqueueCommandExpectingComplete(cmd.LEReadBufferSize{}, func(rp []byte) {
		var out cmd.LEReadBufferSizeRP
		if err := out.Unmarshal(rp); err == nil && out.LEACLDataPacketLength != 0 {
			hc.acl.pool = newBufferPool(int(out.TotalNumLEACLDataPackets), int(out.LEACLDataPacketLength))
		}
	})

	hc.eng.EnqueueCommandExpectingComplete(cmd.LEReadAdvertisingChannelTxPower{}, func([]byte) {})

	hc.eng.EnqueueCommandExpectingComplete(cmd.LESetEventMask{LEEventMask: [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}}, func([]byte) {})
	hc.eng.EnqueueCommandExpectingComplete(cmd.SetEventMask{EventMask: [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x3f}}, func([]byte) {})
	hc.eng.EnqueueCommandExpectingComplete(cmd.WriteLEHostSupport{LESupportedHost: 1, SimultaneousLEHost: 0}, func([]byte) {})
}

// Stop unsubscribes from the HAL, stops the ACL drain, and shuts down the
// handler goroutine. Any commands still queued are discarded.
func (hc *HCI) Stop() error {
	if !hc.started {
		return nil
	}
	hc.acl.pool.PutAll()
	hc.h.stop()
	hc.started = false
	return hc.cfg.transport.Close()
}

// The six facade accessors. Each registers the caller's handlers against
// this profile's event table before returning the submission surface,
// matching the "acquire == subscribe" contract in SPEC_FULL.md §4.4.
// Disconnection Complete, LE Connection Complete, and LE Long Term Key
// Request are the exceptions: the router registration for those three
// happens once in New (see onDisconnectionComplete/onLeConnectionComplete/
// onLeLongTermKeyRequest), because the core needs them unconditionally for
// bond cache correlation. Acquiring the owning facade still gates whether
// the caller's own handler gets invoked.

// GetAclConnectionInterface returns the classic ACL connection facade,
// registering ev's handlers for the general events that facade owns.
func (hc *HCI) GetAclConnectionInterface(ev AclConnectionEvents) AclConnectionInterface {
	hc.disconnCompleteCB = ev.DisconnectionComplete
	if ev.NumberOfCompletedPackets != nil {
		hc.rtr.RegisterEventHandler(evt.CodeNumberOfCompletedPackets, func(data []byte) {
			ev.NumberOfCompletedPackets(evt.NumberOfCompletedPackets(data))
		})
	}
	return &aclConnectionInterface{eng: hc.eng}
}

// GetLeAclConnectionInterface returns the LE connection-establishment
// facade, registering ev's handler for LE Connection Complete.
func (hc *HCI) GetLeAclConnectionInterface(ev LeConnectionManagementEvents) LeAclConnectionInterface {
	hc.leConnCompleteCB = ev.ConnectionComplete
	return &leAclConnectionInterface{eng: hc.eng}
}

// GetSecurityInterface returns the classic security facade, registering
// ev's handler for Encryption Change.
func (hc *HCI) GetSecurityInterface(ev SecurityEvents) SecurityInterface {
	if ev.EncryptionChange != nil {
		hc.rtr.RegisterEventHandler(evt.CodeEncryptionChange, func(data []byte) {
			ev.EncryptionChange(evt.EncryptionChange(data))
		})
	}
	return &securityInterface{eng: hc.eng}
}

// GetLeSecurityInterface returns the LE pairing/encryption facade. ev's
// LongTermKeyRequest handler only fires when the requesting peer has no
// bond cache entry; a known peer is answered automatically (see
// onLeLongTermKeyRequest).
func (hc *HCI) GetLeSecurityInterface(ev LeSecurityEvents) LeSecurityInterface {
	hc.ltkRequestCB = ev.LongTermKeyRequest
	return &leSecurityInterface{eng: hc.eng, hc: hc}
}

// GetLeAdvertisingInterface returns the LE advertising facade. It has no
// dedicated events of its own to register.
func (hc *HCI) GetLeAdvertisingInterface() LeAdvertisingInterface {
	return &leAdvertisingInterface{eng: hc.eng}
}

// GetLeScanningInterface returns the LE scanning facade, registering ev's
// handler for LE Advertising Report.
func (hc *HCI) GetLeScanningInterface(ev LeScanningEvents) LeScanningInterface {
	if ev.AdvertisingReport != nil {
		hc.rtr.RegisterLeEventHandler(evt.SubeventLEAdvertisingReport, func(data []byte) {
			ev.AdvertisingReport(evt.LEAdvertisingReport(data))
		})
	}
	return &leScanningInterface{eng: hc.eng}
}

// AclQueue returns the bounded bidirectional ACL data queue.
func (hc *HCI) AclQueue() *aclQueue { return hc.acl }

var _ hal.Callbacks = (*callbacks)(nil)
