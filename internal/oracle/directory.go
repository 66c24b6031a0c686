package oracle

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/amlgate/internal/model"
)

// Directory maps oracle addresses to clients. The registry stores only an
// address; the gate resolves it here on every transfer.
type Directory struct {
	mu      sync.RWMutex
	oracles map[model.AccountID]Oracle
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{oracles: make(map[model.AccountID]Oracle)}
}

// Set binds address to o, replacing any previous binding.
func (d *Directory) Set(address model.AccountID, o Oracle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.oracles[address] = o
}

// Remove drops the binding for address.
func (d *Directory) Remove(address model.AccountID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.oracles, address)
}

// Resolve returns the oracle bound to address.
func (d *Directory) Resolve(address model.AccountID) (Oracle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.oracles[address]
	if !ok || o == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownOracle, address)
	}
	return o, nil
}

// Addresses lists bound addresses in order.
func (d *Directory) Addresses() []model.AccountID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.AccountID, 0, len(d.oracles))
	for a := range d.oracles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
