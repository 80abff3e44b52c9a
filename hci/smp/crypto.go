// Package smp provides the LE Secure Connections crypto primitives (ECDH
// key agreement and the F4/F5/F6/G2 functions) a pairing layer above this
// module can use to derive a long term key — not the pairing state machine
// itself. The hci package does not call into it.
package smp

import (
	"crypto"
	"crypto/aes"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/aead/cmac"
	"github.com/wsddn/go-ecdh"
)

// KeyPair is an ECDH P-256 key pair used for LE Secure Connections.
type KeyPair struct {
	Public  crypto.PublicKey
	Private crypto.PrivateKey
}

// GenerateKeyPair creates a fresh P-256 ECDH key pair.
func GenerateKeyPair() (*KeyPair, error) {
	e := ecdh.NewEllipticECDH(elliptic.P256())
	priv, pub, err := e.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// UnmarshalPublicKeyXY decodes a peer's public key from the little-endian
// X || Y encoding used on the air.
func UnmarshalPublicKeyXY(b []byte) (crypto.PublicKey, bool) {
	e := ecdh.NewEllipticECDH(elliptic.P256())
	xs := swapBuf(b[:32])
	ys := swapBuf(b[32:])
	r := append([]byte{0x04}, xs...)
	r = append(r, ys...)
	return e.Unmarshal(r)
}

// MarshalPublicKeyXY encodes a public key into the little-endian X || Y
// wire encoding.
func MarshalPublicKeyXY(k crypto.PublicKey) []byte {
	e := ecdh.NewEllipticECDH(elliptic.P256())
	ba := e.Marshal(k)
	ba = ba[1:] // drop the uncompressed-point header byte
	x := swapBuf(ba[:32])
	y := swapBuf(ba[32:])
	return append(x, y...)
}

// SharedSecret computes the ECDH shared secret (DHKey) for a key pair and
// a peer public key.
func SharedSecret(priv crypto.PrivateKey, peerPub crypto.PublicKey) ([]byte, error) {
	e := ecdh.NewEllipticECDH(elliptic.P256())
	b, err := e.GenerateSharedSecret(priv, peerPub)
	if err != nil {
		return nil, err
	}
	return swapBuf(b), nil
}

// F4 is the SMP confirm-value function [Vol 3, Part H, 2.2.6].
func F4(u, v, x []byte, z uint8) ([]byte, error) {
	if len(u) != 32 || len(v) != 32 || len(x) != 16 {
		return nil, fmt.Errorf("smp: F4 length error")
	}
	m := []byte{z}
	m = append(m, v...)
	m = append(m, u...)
	return aesCMAC(x, m)
}

// F5 derives the MacKey and LTK from the DHKey [Vol 3, Part H, 2.2.7].
func F5(w, n1, n2, a1, a2 []byte) (macKey, ltk []byte, err error) {
	switch {
	case len(w) != 32:
		return nil, nil, fmt.Errorf("smp: F5 length error w")
	case len(n1) != 16:
		return nil, nil, fmt.Errorf("smp: F5 length error n1")
	case len(n2) != 16:
		return nil, nil, fmt.Errorf("smp: F5 length error n2")
	case len(a1) != 7:
		return nil, nil, fmt.Errorf("smp: F5 length error a1")
	case len(a2) != 7:
		return nil, nil, fmt.Errorf("smp: F5 length error a2")
	}

	btle := []byte{0x65, 0x6c, 0x74, 0x62}
	salt := []byte{
		0xbe, 0x83, 0x60, 0x5a, 0xdb, 0x0b, 0x37, 0x60,
		0x38, 0xa5, 0xf5, 0xaa, 0x91, 0x83, 0x88, 0x6c,
	}
	length := []byte{0x00, 0x01}

	t, err := aesCMAC(salt, w)
	if err != nil {
		return nil, nil, err
	}

	m := append([]byte{}, length...)
	m = append(m, a2...)
	m = append(m, a1...)
	m = append(m, n2...)
	m = append(m, n1...)
	m = append(m, btle...)
	m = append(m, 0x00)

	macKey, err = aesCMAC(t, m)
	if err != nil {
		return nil, nil, err
	}

	m[len(m)-1] = 0x01
	ltk, err = aesCMAC(t, m)
	if err != nil {
		return nil, nil, err
	}

	return macKey, ltk, nil
}

// F6 is the SMP DHKey check function [Vol 3, Part H, 2.2.8].
func F6(w, n1, n2, r, ioCap, a1, a2 []byte) ([]byte, error) {
	if len(w) != 16 || len(n1) != 16 || len(n2) != 16 || len(r) != 16 || len(ioCap) != 3 || len(a1) != 7 || len(a2) != 7 {
		return nil, fmt.Errorf("smp: F6 length error")
	}
	m := append([]byte{}, a2...)
	m = append(m, a1...)
	m = append(m, ioCap...)
	m = append(m, r...)
	m = append(m, n2...)
	m = append(m, n1...)
	return aesCMAC(w, m)
}

// G2 is the SMP numeric-comparison function [Vol 3, Part H, 2.2.9].
func G2(u, v, x, y []byte) (uint32, error) {
	if len(u) != 32 || len(v) != 32 || len(x) != 16 || len(y) != 16 {
		return 0, fmt.Errorf("smp: G2 length error")
	}
	m := append([]byte{}, y...)
	m = append(m, v...)
	m = append(m, u...)
	h, err := aesCMAC(x, m)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(h[:4]) % 1000000, nil
}

func aesCMAC(key, msg []byte) ([]byte, error) {
	mCipher, err := aes.NewCipher(swapBuf(key))
	if err != nil {
		return nil, err
	}
	mMac, err := cmac.New(mCipher)
	if err != nil {
		return nil, err
	}
	mMac.Write(swapBuf(msg))
	return swapBuf(mMac.Sum(nil)), nil
}

func swapBuf(in []byte) []byte {
	a := make([]byte, len(in))
	copy(a, in)
	for i := len(a)/2 - 1; i >= 0; i-- {
		opp := len(a) - 1 - i
		a[i], a[opp] = a[opp], a[i]
	}
	return a
}
