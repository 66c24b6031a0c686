package owner

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/amlgate/internal/model"
)

// Store persists the current owner. Nil means in-memory only.
type Store interface {
	SaveOwner(ctx context.Context, owner model.AccountID) error
}

// Ownership guards owner-only operations.
type Ownership struct {
	mu    sync.RWMutex
	owner model.AccountID
	store Store
}

// New creates an Ownership with the given initial owner.
func New(initial model.AccountID, store Store) *Ownership {
	return &Ownership{owner: initial, store: store}
}

// Owner returns the current owner.
func (o *Ownership) Owner() model.AccountID {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owner
}

// AssertOwner returns ErrUnauthorized unless caller is the current owner.
func (o *Ownership) AssertOwner(caller model.AccountID) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.assert(caller)
}

// Authorize runs fn only if caller is the owner. Ownership cannot change
// while fn runs, so a handover never interleaves with an owner operation.
func (o *Ownership) Authorize(caller model.AccountID, fn func() error) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if err := o.assert(caller); err != nil {
		return err
	}
	return fn()
}

// Transfer hands ownership to newOwner. The old owner loses access as soon
// as Transfer returns.
func (o *Ownership) Transfer(ctx context.Context, caller, newOwner model.AccountID) error {
	if err := model.ValidateAccountID(newOwner); err != nil {
		return fmt.Errorf("new owner: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.assert(caller); err != nil {
		return err
	}
	if o.store != nil {
		if err := o.store.SaveOwner(ctx, newOwner); err != nil {
			return fmt.Errorf("persist owner: %w", err)
		}
	}
	o.owner = newOwner
	return nil
}

func (o *Ownership) assert(caller model.AccountID) error {
	if caller == "" || caller != o.owner {
		return fmt.Errorf("%w (caller %q)", model.ErrUnauthorized, caller)
	}
	return nil
}
