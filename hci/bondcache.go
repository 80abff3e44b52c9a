package hci

import (
	"fmt"
	"io/ioutil"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// bondEntry is one peer's persisted LE pairing material.
type bondEntry struct {
	Address     [6]byte `json:"address"`
	AddressType uint8   `json:"address_type"`
	LongTermKey [16]byte `json:"long_term_key"`
	EDIV        uint16  `json:"ediv"`
	Rand        uint64  `json:"rand"`
}

// peerAddr is the identity address behind an open connection handle,
// captured off LE Connection Complete so the LE Security facade can
// resolve a bond cache entry from a connection handle alone — LE Long
// Term Key Request carries only the handle, never the peer address.
type peerAddr struct {
	Address     [6]byte
	AddressType uint8
}

func addrKey(addr [6]byte, addrType uint8) string {
	return fmt.Sprintf("%d:%02x:%02x:%02x:%02x:%02x:%02x", addrType,
		addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
}

// bondCache is file-backed LTK persistence keyed by peer address, loaded
// whole into memory at Start and rewritten whole on every update. Adapted
// from the teacher's on-disk device cache, generalized from GATT
// service/characteristic records to LE bond material.
type bondCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]bondEntry
}

func newBondCache(path string) *bondCache {
	return &bondCache{path: path, entries: make(map[string]bondEntry)}
}

func (c *bondCache) load() error {
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := ioutil.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "can't read bond cache")
	}
	if len(b) == 0 {
		return nil
	}

	var entries []bondEntry
	if err := jsonAPI.Unmarshal(b, &entries); err != nil {
		return errors.Wrap(err, "can't parse bond cache")
	}
	for _, e := range entries {
		c.entries[addrKey(e.Address, e.AddressType)] = e
	}
	return nil
}

func (c *bondCache) save() error {
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	entries := make([]bondEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	b, err := jsonAPI.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "can't encode bond cache")
	}
	if err := ioutil.WriteFile(c.path, b, 0600); err != nil {
		return errors.Wrap(err, "can't write bond cache")
	}
	return nil
}

func (c *bondCache) put(e bondEntry) error {
	c.mu.Lock()
	c.entries[addrKey(e.Address, e.AddressType)] = e
	c.mu.Unlock()
	return c.save()
}

func (c *bondCache) get(addr [6]byte, addrType uint8) (bondEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[addrKey(addr, addrType)]
	return e, ok
}

func (c *bondCache) remove(addr [6]byte, addrType uint8) error {
	c.mu.Lock()
	delete(c.entries, addrKey(addr, addrType))
	c.mu.Unlock()
	return c.save()
}
