package evt

import (
	"encoding/binary"
	"fmt"
)

// CommandComplete [Vol 2, Part E, 7.7.14].
type CommandComplete []byte

func (e CommandComplete) NumHCICommandPacketsWErr() (uint8, error) { return getByte(e, 0, 0) }
func (e CommandComplete) CommandOpcodeWErr() (uint16, error)       { return getUint16LE(e, 1, 0xffff) }
func (e CommandComplete) ReturnParametersWErr() ([]byte, error)    { return getBytes(e, 3, -1) }

// CommandStatus [Vol 2, Part E, 7.7.15].
type CommandStatus []byte

func (e CommandStatus) StatusWErr() (uint8, error)          { return getByte(e, 0, 0xff) }
func (e CommandStatus) NumHCICommandPacketsWErr() (uint8, error) { return getByte(e, 1, 0) }
func (e CommandStatus) CommandOpcodeWErr() (uint16, error)  { return getUint16LE(e, 2, 0xffff) }

// LEMetaEvent [Vol 2, Part E, 7.7.65] — the subevent code plus the raw
// remainder, which the router re-views as the concrete subevent type.
type LEMetaEvent []byte

func (e LEMetaEvent) SubeventCodeWErr() (uint8, error) { return getByte(e, 0, 0xff) }
func (e LEMetaEvent) DataWErr() ([]byte, error)        { return getBytes(e, 1, -1) }

// DisconnectionComplete [Vol 2, Part E, 7.7.5].
type DisconnectionComplete []byte

func (e DisconnectionComplete) StatusWErr() (uint8, error)           { return getByte(e, 0, 0xff) }
func (e DisconnectionComplete) ConnectionHandleWErr() (uint16, error) { return getUint16LE(e, 1, 0xffff) }
func (e DisconnectionComplete) ReasonWErr() (uint8, error)           { return getByte(e, 3, 0) }

// EncryptionChange [Vol 2, Part E, 7.7.8].
type EncryptionChange []byte

func (e EncryptionChange) StatusWErr() (uint8, error)           { return getByte(e, 0, 0xff) }
func (e EncryptionChange) ConnectionHandleWErr() (uint16, error) { return getUint16LE(e, 1, 0xffff) }
func (e EncryptionChange) EncryptionEnabledWErr() (uint8, error) { return getByte(e, 3, 0) }

// NumberOfCompletedPackets [Vol 2, Part E, 7.7.19].
//
// Per-spec the packet structure should be:
//
//	NumOfHandle, HandleA, HandleB, CompPktNumA, CompPktNumB
//
// but some controllers (observed on BCM20702A1) instead interleave as:
//
//	NumOfHandle, HandleA, CompPktNumA, HandleB, CompPktNumB
//
// The accessors below read the interleaved layout: handle i at offset
// 1+4i, its completed-packet count at 1+4i+2.
type NumberOfCompletedPackets []byte

func (e NumberOfCompletedPackets) NumberOfHandlesWErr() (uint8, error) { return getByte(e, 0, 0) }
func (e NumberOfCompletedPackets) ConnectionHandleWErr(i int) (uint16, error) {
	si := 1 + (i * 4)
	return getUint16LE(e, si, 0xffff)
}
func (e NumberOfCompletedPackets) HCNumOfCompletedPacketsWErr(i int) (uint16, error) {
	si := 1 + (i * 4) + 2
	return getUint16LE(e, si, 0)
}

// LEConnectionComplete [Vol 2, Part E, 7.7.65.1].
type LEConnectionComplete []byte

func (e LEConnectionComplete) StatusWErr() (uint8, error)           { return getByte(e, 0, 0xff) }
func (e LEConnectionComplete) ConnectionHandleWErr() (uint16, error) { return getUint16LE(e, 1, 0xffff) }
func (e LEConnectionComplete) RoleWErr() (uint8, error)             { return getByte(e, 3, 0xff) }
func (e LEConnectionComplete) PeerAddressTypeWErr() (uint8, error)  { return getByte(e, 4, 0xff) }
func (e LEConnectionComplete) PeerAddressWErr() ([6]byte, error) {
	b, err := getBytes(e, 5, 6)
	var out [6]byte
	if err == nil {
		copy(out[:], b)
	}
	return out, err
}

// LELongTermKeyRequest [Vol 2, Part E, 7.7.65.5].
type LELongTermKeyRequest []byte

func (e LELongTermKeyRequest) ConnectionHandleWErr() (uint16, error) { return getUint16LE(e, 0, 0xffff) }
func (e LELongTermKeyRequest) RandomNumberWErr() ([8]byte, error) {
	b, err := getBytes(e, 2, 8)
	var out [8]byte
	if err == nil {
		copy(out[:], b)
	}
	return out, err
}
func (e LELongTermKeyRequest) EncryptedDiversifierWErr() (uint16, error) { return getUint16LE(e, 10, 0) }

// LEAdvertisingReport [Vol 2, Part E, 7.7.65.2].
type LEAdvertisingReport []byte

func (e LEAdvertisingReport) NumReportsWErr() (uint8, error) { return getByte(e, 0, 0) }
func (e LEAdvertisingReport) EventTypeWErr(i int) (uint8, error) {
	return getByte(e, 1+i, 0xff)
}
func (e LEAdvertisingReport) AddressTypeWErr(i int) (uint8, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return 0, err
	}
	return getByte(e, 1+int(nr)+i, 0xff)
}
func (e LEAdvertisingReport) AddressWErr(i int) ([6]byte, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return [6]byte{}, err
	}
	si := 1 + int(nr)*2 + (6 * i)
	bb, err := getBytes(e, si, 6)
	if err != nil {
		return [6]byte{}, err
	}
	var out [6]byte
	copy(out[:], bb)
	return out, nil
}
func (e LEAdvertisingReport) LengthDataWErr(i int) (uint8, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return 0, err
	}
	return getByte(e, 1+int(nr)*8+i, 0)
}
func (e LEAdvertisingReport) DataWErr(i int) ([]byte, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return nil, err
	}
	l := 0
	for j := 0; j < i; j++ {
		ll, err := e.LengthDataWErr(j)
		if err != nil {
			return nil, err
		}
		l += int(ll)
	}
	ll, err := e.LengthDataWErr(i)
	if err != nil {
		return nil, err
	}
	si := 1 + int(nr)*9 + l
	return getBytes(e, si, int(ll))
}
func (e LEAdvertisingReport) RSSIWErr(i int) (int8, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return 0, err
	}
	l := 0
	for j := 0; j < int(nr); j++ {
		ll, err := e.LengthDataWErr(j)
		if err != nil {
			return 0, err
		}
		l += int(ll)
	}
	si := 1 + int(nr)*9 + l + i
	rssi, err := getByte(e, si, 0)
	return int8(rssi), err
}

func getByte(b []byte, i int, def byte) (byte, error) {
	bb, err := getBytes(b, i, 1)
	if err != nil {
		return def, err
	}
	return bb[0], nil
}

func getUint16LE(b []byte, i int, def uint16) (uint16, error) {
	bb, err := getBytes(b, i, 2)
	if err != nil {
		return def, err
	}
	return binary.LittleEndian.Uint16(bb), nil
}

func getBytes(bytes []byte, start int, count int) ([]byte, error) {
	if bytes == nil || start >= len(bytes) {
		return nil, fmt.Errorf("index error")
	}
	if count < 0 {
		return bytes[start:], nil
	}
	end := start + count
	if end > len(bytes) {
		return nil, fmt.Errorf("index error")
	}
	return bytes[start:end], nil
}
