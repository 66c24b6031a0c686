// Package resolver settles transfers that notified their receiver.
package resolver

import (
	"context"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/ledger"
	"github.com/ppiankov/amlgate/internal/model"
)

// BurnNotifier is told about tokens removed from supply.
type BurnNotifier interface {
	OnTokensBurned(ctx context.Context, account model.AccountID, amount *uint256.Int)
}

// BurnFunc adapts a function to BurnNotifier.
type BurnFunc func(ctx context.Context, account model.AccountID, amount *uint256.Int)

// OnTokensBurned calls f.
func (f BurnFunc) OnTokensBurned(ctx context.Context, account model.AccountID, amount *uint256.Int) {
	f(ctx, account, amount)
}

// Resolver reconciles the receiver's declared usage with the ledger.
type Resolver struct {
	ledger ledger.Ledger
	burns  []BurnNotifier
	logger *slog.Logger
}

// New creates a Resolver. Every notifier in burns hears each burn once.
func New(l ledger.Ledger, logger *slog.Logger, burns ...BurnNotifier) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{ledger: l, burns: burns, logger: logger}
}

// Resolve clamps usedRaw to [0, amount] and returns the unused part to the
// sender, or burns it when the sender is gone. It never fails: ledger errors
// are logged and carried on the settlement.
func (r *Resolver) Resolve(ctx context.Context, req model.TransferRequest, usedRaw *uint256.Int) model.Settlement {
	used := model.ClampAmount(usedRaw, req.Amount)

	settled := model.Settlement{
		Requested: req.Amount.Clone(),
		Used:      used,
		Refunded:  new(uint256.Int),
		Burned:    new(uint256.Int),
	}
	if used.Eq(req.Amount) {
		return settled
	}

	finalUsed, burned, err := r.ledger.ResolveTransfer(ctx, req.Sender, req.Receiver, req.Amount, used)
	if err != nil {
		r.logger.Error("transfer resolution failed",
			"transfer_id", req.ID,
			"sender", req.Sender,
			"receiver", req.Receiver,
			"amount", req.Amount.Dec(),
			"used", used.Dec(),
			"error", err,
		)
		settled.Used = req.Amount.Clone()
		settled.ResolutionErr = err
		return settled
	}

	settled.Used = finalUsed
	settled.Refunded = new(uint256.Int).Sub(req.Amount, finalUsed)
	settled.Burned = burned
	r.NotifyBurn(ctx, req.Sender, burned)

	r.logger.Info("transfer resolved",
		"transfer_id", req.ID,
		"used", settled.Used.Dec(),
		"refunded", settled.Refunded.Dec(),
		"burned", settled.Burned.Dec(),
	)
	return settled
}

// NotifyBurn tells every burn notifier about a burn. Zero amounts are
// ignored.
func (r *Resolver) NotifyBurn(ctx context.Context, account model.AccountID, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	for _, n := range r.burns {
		if n != nil {
			n.OnTokensBurned(ctx, account, amount.Clone())
		}
	}
}
