// Package executor applies approved transfers to the ledger and drives the
// receiver notification.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/ledger"
	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/receiver"
	"github.com/ppiankov/amlgate/internal/resolver"
)

// DefaultNotifyTimeout bounds a receiver hook call.
const DefaultNotifyTimeout = 10 * time.Second

var errNoHook = errors.New("receiver has no hook")

// Executor moves tokens for approved requests.
type Executor struct {
	ledger        ledger.Ledger
	receivers     *receiver.Directory
	resolver      *resolver.Resolver
	notifyTimeout time.Duration
	logger        *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithNotifyTimeout overrides DefaultNotifyTimeout.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Executor.
func New(l ledger.Ledger, receivers *receiver.Directory, res *resolver.Resolver, opts ...Option) *Executor {
	e := &Executor{
		ledger:        l,
		receivers:     receivers,
		resolver:      res,
		notifyTimeout: DefaultNotifyTimeout,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute transfers req.Amount and, for notify requests, settles with the
// receiver. A ledger refusal returns ErrTransferFailed with nothing moved.
func (e *Executor) Execute(ctx context.Context, req model.TransferRequest) (model.Settlement, error) {
	if err := e.ledger.Transfer(ctx, req.Sender, req.Receiver, req.Amount); err != nil {
		return model.Settlement{}, fmt.Errorf("%w: %w", model.ErrTransferFailed, err)
	}
	e.logger.Info("transfer executed",
		"transfer_id", req.ID,
		"sender", req.Sender,
		"receiver", req.Receiver,
		"amount", req.Amount.Dec(),
		"memo", req.Memo,
	)
	if !req.Notify {
		return model.FullSettlement(req.Amount), nil
	}

	used, err := e.notify(ctx, req)
	if err != nil {
		e.logger.Warn("receiver hook failed, refunding in full",
			"transfer_id", req.ID,
			"receiver", req.Receiver,
			"error", err,
		)
		used = new(uint256.Int)
	}
	settled := e.resolver.Resolve(ctx, req, used)
	settled.ReceiverFailed = err != nil
	return settled, nil
}

type hookResult struct {
	used *uint256.Int
	err  error
}

// notify runs the receiver hook under notifyTimeout. A hook that ignores
// its context is abandoned at the deadline.
func (e *Executor) notify(ctx context.Context, req model.TransferRequest) (*uint256.Int, error) {
	hook, ok := e.receivers.Lookup(req.Receiver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoHook, req.Receiver)
	}

	ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()

	done := make(chan hookResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- hookResult{err: fmt.Errorf("receiver hook panicked: %v", r)}
			}
		}()
		used, err := hook.OnTransfer(ctx, receiver.Notification{
			TransferID: req.ID,
			Sender:     req.Sender,
			Receiver:   req.Receiver,
			Amount:     req.Amount.Dec(),
			Memo:       req.Memo,
			Msg:        req.Msg,
		})
		done <- hookResult{used: used, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if res.used == nil {
			return new(uint256.Int), nil
		}
		return res.used, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("receiver hook: %w", ctx.Err())
	}
}
