// Package acl frames outbound ACL/L2CAP fragments and parses inbound ones.
// It is the HCI core's only knowledge of the ACL wire format — connection
// objects and profile layers above the facades never see raw bytes.
package acl

import "encoding/binary"

// L2CAP channel identifiers for the LE-U logical link [Vol 3, Part A, 2.1].
const (
	CidLEAtt    uint16 = 0x04 // Attribute Protocol [Vol 3, Part F].
	CidLESignal uint16 = 0x05 // LE L2CAP Signaling channel [Vol 3, Part A, 4].
	CidSMP      uint16 = 0x06 // Security Manager Protocol [Vol 3, Part H].
)

// Packet boundary flags [Vol 2, Part E, 5.4.2].
const (
	PbfFirstNonAutoFlushable = 0x0
	PbfContinuing            = 0x1
	PbfFirstAutoFlushable    = 0x2
)

// Packet implements the HCI ACL Data Packet header [Vol 2, Part E, 5.4.2].
// Broadcast flags (bit 7:8 of the handle field's MSB) are always 0x00 in
// LE-U; LE advertising-channel broadcast uses the ADVB logical transport
// instead, never ACL.
type Packet []byte

func (a Packet) Handle() uint16 { return uint16(a[0]) | (uint16(a[1]&0x0f) << 8) }
func (a Packet) Pbf() int       { return (int(a[1]) >> 4) & 0x3 }
func (a Packet) bcf() int       { return (int(a[1]) >> 6) & 0x3 }
func (a Packet) Dlen() int      { return int(a[2]) | (int(a[3]) << 8) }
func (a Packet) Data() []byte   { return a[4:] }

// NewPacket frames a single non-fragmented ACL packet carrying payload for
// the given connection handle.
func NewPacket(handle uint16, pbf int, payload []byte) Packet {
	b := make([]byte, 4+len(payload))
	b[0] = byte(handle)
	b[1] = byte(handle>>8&0x0f) | byte((pbf&0x3)<<4)
	binary.LittleEndian.PutUint16(b[2:4], uint16(len(payload)))
	copy(b[4:], payload)
	return Packet(b)
}

// Pdu is an L2CAP Basic frame carried inside one or more ACL packets.
type Pdu []byte

func (p Pdu) Dlen() int       { return int(binary.LittleEndian.Uint16(p[0:2])) }
func (p Pdu) Cid() uint16     { return binary.LittleEndian.Uint16(p[2:4]) }
func (p Pdu) Payload() []byte { return p[4:] }

// NewPdu frames an L2CAP Basic frame for the given channel.
func NewPdu(cid uint16, payload []byte) Pdu {
	b := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint16(b[0:2], uint16(len(payload)))
	binary.LittleEndian.PutUint16(b[2:4], cid)
	copy(b[4:], payload)
	return Pdu(b)
}
