// Package receiver delivers transfer notifications to receiving accounts and
// collects the amount each receiver decided to keep.
package receiver

import (
	"context"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/model"
)

// Notification is what a receiver learns about an incoming transfer.
type Notification struct {
	TransferID string          `json:"transfer_id"`
	Sender     model.AccountID `json:"sender_id"`
	Receiver   model.AccountID `json:"receiver_id"`
	Amount     string          `json:"amount"`
	Memo       string          `json:"memo,omitempty"`
	Msg        string          `json:"msg"`
}

// Hook is a receiving account's reaction to a transfer. The returned amount
// is the portion the receiver keeps; values above the transferred amount
// are clamped by the resolver.
type Hook interface {
	OnTransfer(ctx context.Context, n Notification) (*uint256.Int, error)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, n Notification) (*uint256.Int, error)

// OnTransfer calls f.
func (f HookFunc) OnTransfer(ctx context.Context, n Notification) (*uint256.Int, error) {
	return f(ctx, n)
}

// Directory maps receiving accounts to their hooks.
type Directory struct {
	mu    sync.RWMutex
	hooks map[model.AccountID]Hook
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{hooks: make(map[model.AccountID]Hook)}
}

// Set binds account to h.
func (d *Directory) Set(account model.AccountID, h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks[account] = h
}

// Replace swaps the whole mapping at once.
func (d *Directory) Replace(hooks map[model.AccountID]Hook) {
	next := make(map[model.AccountID]Hook, len(hooks))
	for k, v := range hooks {
		next[k] = v
	}
	d.mu.Lock()
	d.hooks = next
	d.mu.Unlock()
}

// Lookup returns the hook for account.
func (d *Directory) Lookup(account model.AccountID) (Hook, bool) {
	if d == nil {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.hooks[account]
	return h, ok && h != nil
}

// Accounts lists accounts with a hook.
func (d *Directory) Accounts() []model.AccountID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.AccountID, 0, len(d.hooks))
	for a := range d.hooks {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
