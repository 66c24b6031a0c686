package gate

import (
	"context"
	"sync"

	"github.com/ppiankov/amlgate/internal/model"
)

// Outcome is the terminal result of one flow.
type Outcome struct {
	ID      string
	Request model.TransferRequest
	State   model.State
	// Classification is nil when the oracle never answered.
	Classification *model.Classification
	// Settlement is set only for approved transfers.
	Settlement model.Settlement
	Err        error
}

// Pending is the caller's handle on an in-flight transfer.
type Pending struct {
	id   string
	done chan struct{}

	mu      sync.RWMutex
	state   model.State
	outcome Outcome
}

func newPending(id string) *Pending {
	return &Pending{
		id:    id,
		done:  make(chan struct{}),
		state: model.StateInit,
	}
}

// ID returns the transfer id.
func (p *Pending) ID() string { return p.id }

// Done is closed once the flow reached a terminal state.
func (p *Pending) Done() <-chan struct{} { return p.done }

// State returns the current state.
func (p *Pending) State() model.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Wait blocks until the flow finishes or ctx ends. Giving up on the wait
// does not stop the flow. The returned error is the flow's error, if any.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.outcome, p.outcome.Err
	case <-ctx.Done():
		return Outcome{ID: p.id, State: p.State()}, ctx.Err()
	}
}

func (p *Pending) advance(s model.State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pending) finish(o Outcome) {
	p.mu.Lock()
	p.state = o.State
	p.outcome = o
	p.mu.Unlock()
	close(p.done)
}
