package hci

import (
	"github.com/gd-bt/hci/hci/cmd"
	"github.com/gd-bt/hci/hci/evt"
)

// Each facade below is a thin projection of the two engine enqueue
// operations, restricted to the command-builder family a particular
// profile is allowed to submit. Acquiring one also registers the caller's
// handler against that profile's static event/subevent table, so the
// facade is simultaneously a submission surface and an event subscription.

// AclConnectionInterface is the classic ACL connection submission surface.
type AclConnectionInterface interface {
	Disconnect(c cmd.Disconnect, sink StatusSink)
}

type aclConnectionInterface struct{ eng *engine }

func (f *aclConnectionInterface) Disconnect(c cmd.Disconnect, sink StatusSink) {
	f.eng.EnqueueCommandExpectingStatus(c, sink)
}

// AclConnectionEvents are the general events an AclConnectionInterface
// holder is expected to handle once acquired.
type AclConnectionEvents struct {
	DisconnectionComplete func(evt.DisconnectionComplete)
	NumberOfCompletedPackets func(evt.NumberOfCompletedPackets)
}

// LeAclConnectionInterface is the LE connection-establishment submission
// surface.
type LeAclConnectionInterface interface {
	CreateConnection(c cmd.LECreateConnection, sink StatusSink)
	CreateConnectionCancel(c cmd.LECreateConnectionCancel, sink CompletionSink)
}

type leAclConnectionInterface struct{ eng *engine }

func (f *leAclConnectionInterface) CreateConnection(c cmd.LECreateConnection, sink StatusSink) {
	f.eng.EnqueueCommandExpectingStatus(c, sink)
}

func (f *leAclConnectionInterface) CreateConnectionCancel(c cmd.LECreateConnectionCancel, sink CompletionSink) {
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

// LeConnectionManagementEvents are the LE subevents a
// LeAclConnectionInterface holder is expected to handle once acquired.
type LeConnectionManagementEvents struct {
	ConnectionComplete func(evt.LEConnectionComplete)
}

// SecurityInterface is the classic security submission surface.
type SecurityInterface interface {
	WriteClassOfDevice(c cmd.WriteClassOfDevice, sink CompletionSink)
	AuthenticationRequested(c cmd.AuthenticationRequested, sink StatusSink)
}

type securityInterface struct{ eng *engine }

func (f *securityInterface) WriteClassOfDevice(c cmd.WriteClassOfDevice, sink CompletionSink) {
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

func (f *securityInterface) AuthenticationRequested(c cmd.AuthenticationRequested, sink StatusSink) {
	f.eng.EnqueueCommandExpectingStatus(c, sink)
}

// SecurityEvents are the general events a SecurityInterface holder is
// expected to handle once acquired.
type SecurityEvents struct {
	EncryptionChange func(evt.EncryptionChange)
}

// LeSecurityInterface is the LE pairing/encryption submission surface.
type LeSecurityInterface interface {
	Encrypt(c cmd.LEEncrypt, sink CompletionSink)
	LongTermKeyRequestReply(c cmd.LELongTermKeyRequestReply, sink CompletionSink)
	LongTermKeyRequestNegativeReply(c cmd.LELongTermKeyRequestNegativeReply, sink CompletionSink)
}

type leSecurityInterface struct {
	eng *engine
	hc  *HCI
}

func (f *leSecurityInterface) Encrypt(c cmd.LEEncrypt, sink CompletionSink) {
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

// LongTermKeyRequestReply persists the LTK to the bond cache under the
// peer address behind c.ConnectionHandle before submitting the reply, so
// a future reconnection's LongTermKeyRequest is answered automatically
// (see HCI.onLeLongTermKeyRequest). If the handle isn't a known LE
// connection (shouldn't happen on a well-formed pairing flow), the reply
// is still submitted but nothing is persisted.
func (f *leSecurityInterface) LongTermKeyRequestReply(c cmd.LELongTermKeyRequestReply, sink CompletionSink) {
	if peer, ok := f.hc.peers[c.ConnectionHandle]; ok {
		_ = f.hc.bc.put(bondEntry{
			Address:     peer.Address,
			AddressType: peer.AddressType,
			LongTermKey: c.LongTermKey,
		})
	}
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

func (f *leSecurityInterface) LongTermKeyRequestNegativeReply(c cmd.LELongTermKeyRequestNegativeReply, sink CompletionSink) {
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

// LeSecurityEvents are the LE subevents a LeSecurityInterface holder is
// expected to handle once acquired.
type LeSecurityEvents struct {
	LongTermKeyRequest func(evt.LELongTermKeyRequest)
}

// LeAdvertisingInterface is the LE advertising submission surface.
type LeAdvertisingInterface interface {
	SetAdvertisingParameters(c cmd.LESetAdvertisingParameters, sink CompletionSink)
	SetAdvertisingData(c cmd.LESetAdvertisingData, sink CompletionSink)
	SetAdvertiseEnable(c cmd.LESetAdvertiseEnable, sink CompletionSink)
}

type leAdvertisingInterface struct{ eng *engine }

func (f *leAdvertisingInterface) SetAdvertisingParameters(c cmd.LESetAdvertisingParameters, sink CompletionSink) {
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

func (f *leAdvertisingInterface) SetAdvertisingData(c cmd.LESetAdvertisingData, sink CompletionSink) {
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

func (f *leAdvertisingInterface) SetAdvertiseEnable(c cmd.LESetAdvertiseEnable, sink CompletionSink) {
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

// LeScanningInterface is the LE scanning submission surface.
type LeScanningInterface interface {
	SetScanParameters(c cmd.LESetScanParameters, sink CompletionSink)
	SetScanEnable(c cmd.LESetScanEnable, sink CompletionSink)
}

type leScanningInterface struct{ eng *engine }

func (f *leScanningInterface) SetScanParameters(c cmd.LESetScanParameters, sink CompletionSink) {
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

func (f *leScanningInterface) SetScanEnable(c cmd.LESetScanEnable, sink CompletionSink) {
	f.eng.EnqueueCommandExpectingComplete(c, sink)
}

// LeScanningEvents are the LE subevents a LeScanningInterface holder is
// expected to handle once acquired.
type LeScanningEvents struct {
	AdvertisingReport func(evt.LEAdvertisingReport)
}
