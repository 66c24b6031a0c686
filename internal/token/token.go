// Package token is the fungible token service: every external entry point
// goes through Service.
package token

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/gate"
	"github.com/ppiankov/amlgate/internal/ledger"
	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/owner"
	"github.com/ppiankov/amlgate/internal/registry"
	"github.com/ppiankov/amlgate/internal/resolver"
)

// MetadataSpec is the metadata format version.
const MetadataSpec = "ft-1.0.0"

// Metadata describes the token.
type Metadata struct {
	Spec     string `json:"spec"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Icon     string `json:"icon,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// Service wires the registry, gate and ledger together.
type Service struct {
	ledger   ledger.Ledger
	registry *registry.Registry
	owner    *owner.Ownership
	gate     *gate.Gate
	resolver *resolver.Resolver
	meta     Metadata
	logger   *slog.Logger
}

// Deps are the collaborators of a Service.
type Deps struct {
	Ledger    ledger.Ledger
	Registry  *registry.Registry
	Ownership *owner.Ownership
	Gate      *gate.Gate
	Resolver  *resolver.Resolver
	Metadata  Metadata
	Logger    *slog.Logger
}

// New creates a Service.
func New(d Deps) *Service {
	if d.Metadata.Spec == "" {
		d.Metadata.Spec = MetadataSpec
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		ledger:   d.Ledger,
		registry: d.Registry,
		owner:    d.Ownership,
		gate:     d.Gate,
		resolver: d.Resolver,
		meta:     d.Metadata,
		logger:   d.Logger,
	}
}

// Bootstrap registers the owner and mints totalSupply to it. It does
// nothing when supply already exists, so restarts are safe.
func (s *Service) Bootstrap(ctx context.Context, totalSupply *uint256.Int) error {
	supply, err := s.ledger.TotalSupply(ctx)
	if err != nil {
		return fmt.Errorf("read supply: %w", err)
	}
	burned, err := s.ledger.Burned(ctx)
	if err != nil {
		return fmt.Errorf("read burned: %w", err)
	}
	if !supply.IsZero() || !burned.IsZero() {
		return nil
	}

	own := s.owner.Owner()
	if _, err := s.ledger.Register(ctx, own); err != nil {
		return fmt.Errorf("register owner: %w", err)
	}
	if totalSupply == nil || totalSupply.IsZero() {
		return nil
	}
	if err := s.ledger.Mint(ctx, own, totalSupply); err != nil {
		return fmt.Errorf("mint initial supply: %w", err)
	}
	s.logger.Info("token bootstrapped", "owner", own, "total_supply", totalSupply.Dec())
	return nil
}

// --- owner operations ---

// SetCategoryThreshold sets the max accepted score for category.
func (s *Service) SetCategoryThreshold(ctx context.Context, caller model.AccountID, category model.Category, score int) error {
	if err := s.registry.SetCategoryThreshold(ctx, caller, category, score); err != nil {
		return err
	}
	s.logger.Info("category threshold set", "caller", caller, "category", category, "score", score)
	return nil
}

// RemoveCategory deletes a category threshold if present.
func (s *Service) RemoveCategory(ctx context.Context, caller model.AccountID, category model.Category) error {
	if err := s.registry.RemoveCategory(ctx, caller, category); err != nil {
		return err
	}
	s.logger.Info("category removed", "caller", caller, "category", category)
	return nil
}

// SetOracleAddress replaces the oracle reference.
func (s *Service) SetOracleAddress(ctx context.Context, caller, address model.AccountID) error {
	if err := model.ValidateAccountID(address); err != nil {
		return err
	}
	if err := s.registry.SetOracleAddress(ctx, caller, address); err != nil {
		return err
	}
	s.logger.Info("oracle address set", "caller", caller, "oracle", address)
	return nil
}

// TransferOwnership hands owner rights to newOwner.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner model.AccountID) error {
	if err := model.ValidateAccountID(newOwner); err != nil {
		return err
	}
	if err := s.owner.Transfer(ctx, caller, newOwner); err != nil {
		return err
	}
	s.logger.Info("ownership transferred", "from", caller, "to", newOwner)
	return nil
}

// --- transfers ---

// Transfer starts a gated transfer from caller.
func (s *Service) Transfer(ctx context.Context, caller, receiver model.AccountID, amount, deposit *uint256.Int, memo string) (*gate.Pending, error) {
	return s.gate.Submit(ctx, model.TransferRequest{
		ID:       model.NewTransferID(),
		Sender:   caller,
		Receiver: receiver,
		Amount:   amount,
		Memo:     memo,
		Deposit:  deposit,
	})
}

// TransferAndNotify starts a gated transfer that notifies receiver with msg
// and settles on its answer.
func (s *Service) TransferAndNotify(ctx context.Context, caller, receiver model.AccountID, amount, deposit *uint256.Int, memo, msg string) (*gate.Pending, error) {
	return s.gate.Submit(ctx, model.TransferRequest{
		ID:       model.NewTransferID(),
		Sender:   caller,
		Receiver: receiver,
		Amount:   amount,
		Memo:     memo,
		Msg:      msg,
		Notify:   true,
		Deposit:  deposit,
	})
}

// Check classifies account without moving funds.
func (s *Service) Check(ctx context.Context, account model.AccountID) (model.Classification, error) {
	return s.gate.Check(ctx, account)
}

// --- storage registration ---

// RegisterAccount opens an account. Returns false if it already existed.
func (s *Service) RegisterAccount(ctx context.Context, account model.AccountID) (bool, error) {
	created, err := s.ledger.Register(ctx, account)
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Info("account registered", "account", account)
	}
	return created, nil
}

// UnregisterAccount closes caller's own account. With force a remaining
// balance is burned and burn notifiers hear about it.
func (s *Service) UnregisterAccount(ctx context.Context, caller model.AccountID, force bool) (*uint256.Int, error) {
	burned, err := s.ledger.Unregister(ctx, caller, force)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account unregistered", "account", caller, "burned", burned.Dec())
	s.gate.RecordClosure(caller, burned)
	s.resolver.NotifyBurn(ctx, caller, burned)
	return burned, nil
}

// --- reads ---

// ReadRegistry returns the oracle address and all thresholds.
func (s *Service) ReadRegistry() registry.Snapshot {
	return s.registry.Read()
}

// BalanceOf returns account's balance, zero if unregistered.
func (s *Service) BalanceOf(ctx context.Context, account model.AccountID) (*uint256.Int, error) {
	return s.ledger.BalanceOf(ctx, account)
}

// TotalSupply returns the current supply.
func (s *Service) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	return s.ledger.TotalSupply(ctx)
}

// Owner returns the current owner.
func (s *Service) Owner() model.AccountID {
	return s.owner.Owner()
}

// Metadata returns the token metadata.
func (s *Service) Metadata() Metadata {
	return s.meta
}

// Policy returns the registry's category policy.
func (s *Service) Policy() registry.CategoryPolicy {
	return s.registry.Policy()
}

// Wait blocks until all in-flight transfers finish.
func (s *Service) Wait() {
	s.gate.Wait()
}
