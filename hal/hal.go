// Package hal defines the boundary between the HCI dispatch core and the
// transport that actually moves bytes to and from a Bluetooth controller.
package hal

// Callbacks receives inbound packets from a HAL implementation. The HCI
// core registers one instance of Callbacks with the HAL at Start and the
// HAL is expected to invoke the matching method for every frame it decodes
// off the wire, in arrival order, from its own read goroutine.
type Callbacks interface {
	HciEventReceived(data []byte)
	AclDataReceived(data []byte)
	ScoDataReceived(data []byte)
}

// HAL is the controller-facing transport abstraction. A HAL implementation
// owns wire framing (HCI UART packet-type prefixes, socket ioctls, USB
// endpoints, ...) and presents the HCI core with three logical send
// operations plus an inbound callback registration.
type HAL interface {
	SendHciCommand(data []byte) error
	SendAclData(data []byte) error
	SendScoData(data []byte) error
	RegisterIncomingPacketCallback(cb Callbacks)
	Close() error
}
