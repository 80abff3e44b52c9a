package evt

// HCI event codes [Vol 2, Part E, 7.7].
const (
	CodeDisconnectionComplete         uint8 = 0x05
	CodeEncryptionChange              uint8 = 0x08
	CodeCommandComplete               uint8 = 0x0e
	CodeCommandStatus                 uint8 = 0x0f
	CodeNumberOfCompletedPackets      uint8 = 0x13
	CodePageScanRepetitionModeChange  uint8 = 0x20
	CodeMaxSlotsChange                uint8 = 0x1b
	CodeLEMetaEvent                   uint8 = 0x3e
	CodeVendorSpecific                uint8 = 0xff
)

// LE meta-event subevent codes [Vol 2, Part E, 7.7.65].
const (
	SubeventLEConnectionComplete       uint8 = 0x01
	SubeventLEAdvertisingReport        uint8 = 0x02
	SubeventLEConnectionUpdateComplete uint8 = 0x03
	SubeventLELongTermKeyRequest       uint8 = 0x05
)
