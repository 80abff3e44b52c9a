package evt

import "testing"

// i8 reinterprets a byte's bits as int8, avoiding the untyped-constant
// overflow check that a direct int8(0xNN) conversion would trigger for
// values above 0x7f.
func i8(b byte) int8 {
	return int8(b)
}

// advReport is one report's logical fields, used only to build a raw LE
// Advertising Report payload in its column-major wire layout: NumReports,
// then EventType[0..n), AddressType[0..n), Address[0..n), LengthData[0..n),
// Data[0..n) concatenated, RSSI[0..n).
type advReport struct {
	eventType, addrType byte
	addr                [6]byte
	data                []byte
	rssi                int8
}

// buildAdvertisingReport assembles a multi-report LE Advertising Report
// subevent payload in the already-stripped convention (no subevent-code
// byte) that router.onLeMetaEvent hands to registered subevent handlers.
func buildAdvertisingReport(reports []advReport) []byte {
	nr := len(reports)
	b := []byte{byte(nr)}
	for _, r := range reports {
		b = append(b, r.eventType)
	}
	for _, r := range reports {
		b = append(b, r.addrType)
	}
	for _, r := range reports {
		b = append(b, r.addr[:]...)
	}
	for _, r := range reports {
		b = append(b, byte(len(r.data)))
	}
	for _, r := range reports {
		b = append(b, r.data...)
	}
	for _, r := range reports {
		b = append(b, byte(r.rssi))
	}
	return b
}

func TestLEAdvertisingReportFieldOffsets(t *testing.T) {
	addr := [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	data := []byte{0xaa, 0xbb, 0xcc}
	payload := buildAdvertisingReport([]advReport{
		{eventType: 0x00, addrType: 0x01, addr: addr, data: data, rssi: -42},
	})

	r := LEAdvertisingReport(payload)

	if got := r.NumReports(); got != 1 {
		t.Fatalf("NumReports() = %d, want 1", got)
	}
	if got := r.EventType(0); got != 0x00 {
		t.Fatalf("EventType(0) = 0x%02x, want 0x00", got)
	}
	if got := r.AddressType(0); got != 0x01 {
		t.Fatalf("AddressType(0) = 0x%02x, want 0x01", got)
	}
	if got := r.Address(0); got != addr {
		t.Fatalf("Address(0) = %v, want %v", got, addr)
	}
	if got := r.LengthData(0); got != byte(len(data)) {
		t.Fatalf("LengthData(0) = %d, want %d", got, len(data))
	}
	if got := r.Data(0); string(got) != string(data) {
		t.Fatalf("Data(0) = %v, want %v", got, data)
	}
	if got := r.RSSI(0); got != -42 {
		t.Fatalf("RSSI(0) = %d, want -42", got)
	}
}

func TestLEAdvertisingReportMultipleReports(t *testing.T) {
	addr0 := [6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	addr1 := [6]byte{0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	data0 := []byte{0x01}
	data1 := []byte{0x02, 0x03}

	payload := buildAdvertisingReport([]advReport{
		{eventType: 0x00, addrType: 0x01, addr: addr0, data: data0, rssi: i8(0xd0)},
		{eventType: 0x04, addrType: 0x00, addr: addr1, data: data1, rssi: i8(0xe0)},
	})

	r := LEAdvertisingReport(payload)

	if got := r.NumReports(); got != 2 {
		t.Fatalf("NumReports() = %d, want 2", got)
	}
	if got := r.EventType(1); got != 0x04 {
		t.Fatalf("EventType(1) = 0x%02x, want 0x04", got)
	}
	if got := r.AddressType(1); got != 0x00 {
		t.Fatalf("AddressType(1) = 0x%02x, want 0x00", got)
	}
	if got := r.Address(0); got != addr0 {
		t.Fatalf("Address(0) = %v, want %v", got, addr0)
	}
	if got := r.Address(1); got != addr1 {
		t.Fatalf("Address(1) = %v, want %v", got, addr1)
	}
	if got := r.Data(0); string(got) != string(data0) {
		t.Fatalf("Data(0) = %v, want %v", got, data0)
	}
	if got := r.Data(1); string(got) != string(data1) {
		t.Fatalf("Data(1) = %v, want %v", got, data1)
	}
	if got := r.RSSI(0); got != i8(0xd0) {
		t.Fatalf("RSSI(0) = %d, want %d", got, i8(0xd0))
	}
	if got := r.RSSI(1); got != i8(0xe0) {
		t.Fatalf("RSSI(1) = %d, want %d", got, i8(0xe0))
	}
}
