// Package cmd defines HCI command builders and their return-parameter
// counterparts for the commands the dispatch core and its facades issue.
//
// Every Command knows its own opcode up front (OGF<<10|OCF), so the engine
// never needs to re-parse a serialized command to recover it — see the
// opcode-extraction note in SPEC_FULL.md §9.
package cmd

import "encoding/binary"

// Opcode group fields, Core Spec Vol 2, Part E, 5.4.1.
const (
	ogfLinkControl          = 0x01
	ogfControllerBaseband   = 0x03
	ogfInformationalParams  = 0x04
	ogfLEController         = 0x08
)

func opcode(ogf, ocf uint16) uint16 { return ogf<<10 | ocf }

// Command is anything that can be serialized into an HCI command packet's
// parameter payload and knows its own opcode.
type Command interface {
	OpCode() uint16
	Marshal() []byte
}

// CommandRP is a command-complete return-parameter structure.
type CommandRP interface {
	Unmarshal(b []byte) error
}

func putUint16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }
func getUint16(b []byte, off int) uint16    { return binary.LittleEndian.Uint16(b[off:]) }

// --- Reset [Vol 2, Part E, 7.3.2] ---

type Reset struct{}

func (Reset) OpCode() uint16  { return opcode(ogfControllerBaseband, 0x0003) }
func (Reset) Marshal() []byte { return nil }

type ResetRP struct {
	Status uint8
}

func (rp *ResetRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- ReadBDADDR [Vol 2, Part E, 7.4.6] ---

type ReadBDADDR struct{}

func (ReadBDADDR) OpCode() uint16  { return opcode(ogfInformationalParams, 0x0009) }
func (ReadBDADDR) Marshal() []byte { return nil }

type ReadBDADDRRP struct {
	Status  uint8
	BDADDR  [6]byte
}

func (rp *ReadBDADDRRP) Unmarshal(b []byte) error {
	if len(b) < 7 {
		return errShort
	}
	rp.Status = b[0]
	copy(rp.BDADDR[:], b[1:7])
	return nil
}

// --- ReadBufferSize [Vol 2, Part E, 7.4.5] ---

type ReadBufferSize struct{}

func (ReadBufferSize) OpCode() uint16  { return opcode(ogfInformationalParams, 0x0005) }
func (ReadBufferSize) Marshal() []byte { return nil }

type ReadBufferSizeRP struct {
	Status                  uint8
	ACLDataPacketLength     uint16
	SyncDataPacketLength    uint8
	TotalNumACLDataPackets  uint16
	TotalNumSyncDataPackets uint16
}

func (rp *ReadBufferSizeRP) Unmarshal(b []byte) error {
	if len(b) < 8 {
		return errShort
	}
	rp.Status = b[0]
	rp.ACLDataPacketLength = getUint16(b, 1)
	rp.SyncDataPacketLength = b[3]
	rp.TotalNumACLDataPackets = getUint16(b, 4)
	rp.TotalNumSyncDataPackets = getUint16(b, 6)
	return nil
}

// --- LEReadBufferSize [Vol 2, Part E, 7.8.2] ---

type LEReadBufferSize struct{}

func (LEReadBufferSize) OpCode() uint16  { return opcode(ogfLEController, 0x0002) }
func (LEReadBufferSize) Marshal() []byte { return nil }

type LEReadBufferSizeRP struct {
	Status                   uint8
	LEACLDataPacketLength    uint16
	TotalNumLEACLDataPackets uint8
}

func (rp *LEReadBufferSizeRP) Unmarshal(b []byte) error {
	if len(b) < 4 {
		return errShort
	}
	rp.Status = b[0]
	rp.LEACLDataPacketLength = getUint16(b, 1)
	rp.TotalNumLEACLDataPackets = b[3]
	return nil
}

// --- LEReadAdvertisingChannelTxPower [Vol 2, Part E, 7.8.6] ---

type LEReadAdvertisingChannelTxPower struct{}

func (LEReadAdvertisingChannelTxPower) OpCode() uint16 { return opcode(ogfLEController, 0x0007) }
func (LEReadAdvertisingChannelTxPower) Marshal() []byte { return nil }

type LEReadAdvertisingChannelTxPowerRP struct {
	Status              uint8
	TransmitPowerLevel  int8
}

func (rp *LEReadAdvertisingChannelTxPowerRP) Unmarshal(b []byte) error {
	if len(b) < 2 {
		return errShort
	}
	rp.Status = b[0]
	rp.TransmitPowerLevel = int8(b[1])
	return nil
}

// --- LESetEventMask [Vol 2, Part E, 7.8.1] ---

type LESetEventMask struct {
	LEEventMask [8]byte
}

func (c LESetEventMask) OpCode() uint16 { return opcode(ogfLEController, 0x0001) }
func (c LESetEventMask) Marshal() []byte {
	b := make([]byte, 8)
	copy(b, c.LEEventMask[:])
	return b
}

type LESetEventMaskRP struct{ Status uint8 }

func (rp *LESetEventMaskRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- SetEventMask [Vol 2, Part E, 7.3.1] ---

type SetEventMask struct {
	EventMask [8]byte
}

func (c SetEventMask) OpCode() uint16 { return opcode(ogfControllerBaseband, 0x0001) }
func (c SetEventMask) Marshal() []byte {
	b := make([]byte, 8)
	copy(b, c.EventMask[:])
	return b
}

type SetEventMaskRP struct{ Status uint8 }

func (rp *SetEventMaskRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- WriteLEHostSupport [Vol 2, Part E, 7.3.79] ---

type WriteLEHostSupport struct {
	LESupportedHost    uint8
	SimultaneousLEHost uint8
}

func (c WriteLEHostSupport) OpCode() uint16 { return opcode(ogfControllerBaseband, 0x006d) }
func (c WriteLEHostSupport) Marshal() []byte {
	return []byte{c.LESupportedHost, c.SimultaneousLEHost}
}

type WriteLEHostSupportRP struct{ Status uint8 }

func (rp *WriteLEHostSupportRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- Disconnect [Vol 2, Part E, 7.1.6] (status-only; completion arrives
// asynchronously as a Disconnection Complete event, not command complete) ---

type Disconnect struct {
	ConnectionHandle uint16
	Reason           uint8
}

func (c Disconnect) OpCode() uint16 { return opcode(ogfLinkControl, 0x0006) }
func (c Disconnect) Marshal() []byte {
	b := make([]byte, 3)
	putUint16(b, 0, c.ConnectionHandle)
	b[2] = c.Reason
	return b
}

// --- LECreateConnection [Vol 2, Part E, 7.8.12] (status-only) ---

type LECreateConnection struct {
	LEScanInterval        uint16
	LEScanWindow          uint16
	InitiatorFilterPolicy uint8
	PeerAddressType       uint8
	PeerAddress           [6]byte
	OwnAddressType        uint8
	ConnIntervalMin       uint16
	ConnIntervalMax       uint16
	ConnLatency           uint16
	SupervisionTimeout    uint16
	MinimumCELength       uint16
	MaximumCELength       uint16
}

func (LECreateConnection) OpCode() uint16 { return opcode(ogfLEController, 0x000d) }
func (c LECreateConnection) Marshal() []byte {
	b := make([]byte, 25)
	putUint16(b, 0, c.LEScanInterval)
	putUint16(b, 2, c.LEScanWindow)
	b[4] = c.InitiatorFilterPolicy
	b[5] = c.PeerAddressType
	copy(b[6:12], c.PeerAddress[:])
	b[12] = c.OwnAddressType
	putUint16(b, 13, c.ConnIntervalMin)
	putUint16(b, 15, c.ConnIntervalMax)
	putUint16(b, 17, c.ConnLatency)
	putUint16(b, 19, c.SupervisionTimeout)
	putUint16(b, 21, c.MinimumCELength)
	putUint16(b, 23, c.MaximumCELength)
	return b
}

// --- LECreateConnectionCancel [Vol 2, Part E, 7.8.13] ---

type LECreateConnectionCancel struct{}

func (LECreateConnectionCancel) OpCode() uint16  { return opcode(ogfLEController, 0x000e) }
func (LECreateConnectionCancel) Marshal() []byte { return nil }

type LECreateConnectionCancelRP struct{ Status uint8 }

func (rp *LECreateConnectionCancelRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- WriteClassOfDevice [Vol 2, Part E, 7.3.26] ---

type WriteClassOfDevice struct {
	ClassOfDevice [3]byte
}

func (c WriteClassOfDevice) OpCode() uint16 { return opcode(ogfControllerBaseband, 0x0024) }
func (c WriteClassOfDevice) Marshal() []byte {
	b := make([]byte, 3)
	copy(b, c.ClassOfDevice[:])
	return b
}

type WriteClassOfDeviceRP struct{ Status uint8 }

func (rp *WriteClassOfDeviceRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- AuthenticationRequested [Vol 2, Part E, 7.1.15] (status-only) ---

type AuthenticationRequested struct {
	ConnectionHandle uint16
}

func (AuthenticationRequested) OpCode() uint16 { return opcode(ogfLinkControl, 0x0011) }
func (c AuthenticationRequested) Marshal() []byte {
	b := make([]byte, 2)
	putUint16(b, 0, c.ConnectionHandle)
	return b
}

// --- LEEncrypt [Vol 2, Part E, 7.8.22] ---

type LEEncrypt struct {
	Key           [16]byte
	PlaintextData [16]byte
}

func (LEEncrypt) OpCode() uint16 { return opcode(ogfLEController, 0x0017) }
func (c LEEncrypt) Marshal() []byte {
	b := make([]byte, 32)
	copy(b[0:16], c.Key[:])
	copy(b[16:32], c.PlaintextData[:])
	return b
}

type LEEncryptRP struct {
	Status        uint8
	EncryptedData [16]byte
}

func (rp *LEEncryptRP) Unmarshal(b []byte) error {
	if len(b) < 17 {
		return errShort
	}
	rp.Status = b[0]
	copy(rp.EncryptedData[:], b[1:17])
	return nil
}

// --- LELongTermKeyRequestReply [Vol 2, Part E, 7.8.24] ---

type LELongTermKeyRequestReply struct {
	ConnectionHandle uint16
	LongTermKey      [16]byte
}

func (LELongTermKeyRequestReply) OpCode() uint16 { return opcode(ogfLEController, 0x001a) }
func (c LELongTermKeyRequestReply) Marshal() []byte {
	b := make([]byte, 18)
	putUint16(b, 0, c.ConnectionHandle)
	copy(b[2:18], c.LongTermKey[:])
	return b
}

type LELongTermKeyRequestReplyRP struct {
	Status           uint8
	ConnectionHandle uint16
}

func (rp *LELongTermKeyRequestReplyRP) Unmarshal(b []byte) error {
	if len(b) < 3 {
		return errShort
	}
	rp.Status = b[0]
	rp.ConnectionHandle = getUint16(b, 1)
	return nil
}

// --- LELongTermKeyRequestNegativeReply [Vol 2, Part E, 7.8.25] ---

type LELongTermKeyRequestNegativeReply struct {
	ConnectionHandle uint16
}

func (LELongTermKeyRequestNegativeReply) OpCode() uint16 { return opcode(ogfLEController, 0x001b) }
func (c LELongTermKeyRequestNegativeReply) Marshal() []byte {
	b := make([]byte, 2)
	putUint16(b, 0, c.ConnectionHandle)
	return b
}

type LELongTermKeyRequestNegativeReplyRP struct {
	Status           uint8
	ConnectionHandle uint16
}

func (rp *LELongTermKeyRequestNegativeReplyRP) Unmarshal(b []byte) error {
	if len(b) < 3 {
		return errShort
	}
	rp.Status = b[0]
	rp.ConnectionHandle = getUint16(b, 1)
	return nil
}

// --- LESetAdvertisingParameters [Vol 2, Part E, 7.8.5] ---

type LESetAdvertisingParameters struct {
	AdvertisingIntervalMin  uint16
	AdvertisingIntervalMax  uint16
	AdvertisingType         uint8
	OwnAddressType          uint8
	PeerAddressType         uint8
	PeerAddress             [6]byte
	AdvertisingChannelMap   uint8
	AdvertisingFilterPolicy uint8
}

func (LESetAdvertisingParameters) OpCode() uint16 { return opcode(ogfLEController, 0x0006) }
func (c LESetAdvertisingParameters) Marshal() []byte {
	b := make([]byte, 15)
	putUint16(b, 0, c.AdvertisingIntervalMin)
	putUint16(b, 2, c.AdvertisingIntervalMax)
	b[4] = c.AdvertisingType
	b[5] = c.OwnAddressType
	b[6] = c.PeerAddressType
	copy(b[7:13], c.PeerAddress[:])
	b[13] = c.AdvertisingChannelMap
	b[14] = c.AdvertisingFilterPolicy
	return b
}

type LESetAdvertisingParametersRP struct{ Status uint8 }

func (rp *LESetAdvertisingParametersRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- LESetAdvertisingData [Vol 2, Part E, 7.8.7] ---

type LESetAdvertisingData struct {
	AdvertisingDataLength uint8
	AdvertisingData       [31]byte
}

func (LESetAdvertisingData) OpCode() uint16 { return opcode(ogfLEController, 0x0008) }
func (c LESetAdvertisingData) Marshal() []byte {
	b := make([]byte, 32)
	b[0] = c.AdvertisingDataLength
	copy(b[1:], c.AdvertisingData[:])
	return b
}

type LESetAdvertisingDataRP struct{ Status uint8 }

func (rp *LESetAdvertisingDataRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- LESetAdvertiseEnable [Vol 2, Part E, 7.8.9] ---

type LESetAdvertiseEnable struct {
	AdvertisingEnable uint8
}

func (LESetAdvertiseEnable) OpCode() uint16 { return opcode(ogfLEController, 0x000a) }
func (c LESetAdvertiseEnable) Marshal() []byte {
	return []byte{c.AdvertisingEnable}
}

type LESetAdvertiseEnableRP struct{ Status uint8 }

func (rp *LESetAdvertiseEnableRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- LESetScanParameters [Vol 2, Part E, 7.8.10] ---

type LESetScanParameters struct {
	LEScanType           uint8
	LEScanInterval       uint16
	LEScanWindow         uint16
	OwnAddressType       uint8
	ScanningFilterPolicy uint8
}

func (LESetScanParameters) OpCode() uint16 { return opcode(ogfLEController, 0x000b) }
func (c LESetScanParameters) Marshal() []byte {
	b := make([]byte, 7)
	b[0] = c.LEScanType
	putUint16(b, 1, c.LEScanInterval)
	putUint16(b, 3, c.LEScanWindow)
	b[5] = c.OwnAddressType
	b[6] = c.ScanningFilterPolicy
	return b
}

type LESetScanParametersRP struct{ Status uint8 }

func (rp *LESetScanParametersRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

// --- LESetScanEnable [Vol 2, Part E, 7.8.11] ---

type LESetScanEnable struct {
	LEScanEnable     uint8
	FilterDuplicates uint8
}

func (LESetScanEnable) OpCode() uint16 { return opcode(ogfLEController, 0x000c) }
func (c LESetScanEnable) Marshal() []byte {
	return []byte{c.LEScanEnable, c.FilterDuplicates}
}

type LESetScanEnableRP struct{ Status uint8 }

func (rp *LESetScanEnableRP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errShort
	}
	rp.Status = b[0]
	return nil
}

type shortPacketError struct{}

func (shortPacketError) Error() string { return "return parameter packet too short" }

var errShort = shortPacketError{}
