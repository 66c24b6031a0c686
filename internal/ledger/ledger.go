package ledger

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/model"
)

var (
	ErrNotRegistered       = errors.New("account is not registered")
	ErrAlreadyRegistered   = errors.New("account is already registered")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOverflow            = errors.New("balance overflow")
	ErrNonZeroBalance      = errors.New("account has a non-zero balance")
	ErrZeroAmount          = errors.New("amount must be positive")
	ErrSameAccount         = errors.New("sender and receiver must differ")
)

// Account is one registered balance.
type Account struct {
	ID      model.AccountID `json:"account_id"`
	Balance *uint256.Int    `json:"balance"`
}

// Ledger owns balances and total supply. Every mutating method is atomic:
// it either applies in full or returns an error with nothing changed.
type Ledger interface {
	TotalSupply(ctx context.Context) (*uint256.Int, error)
	// Burned is the cumulative amount removed from supply.
	Burned(ctx context.Context) (*uint256.Int, error)
	// BalanceOf returns zero for unregistered accounts.
	BalanceOf(ctx context.Context, id model.AccountID) (*uint256.Int, error)
	IsRegistered(ctx context.Context, id model.AccountID) (bool, error)
	// Register returns false if the account already existed.
	Register(ctx context.Context, id model.AccountID) (bool, error)
	// Unregister removes an account. A non-zero balance needs force and is
	// burned; the burned amount is returned.
	Unregister(ctx context.Context, id model.AccountID, force bool) (*uint256.Int, error)
	// Mint credits a registered account and grows total supply.
	Mint(ctx context.Context, id model.AccountID, amount *uint256.Int) error
	Deposit(ctx context.Context, id model.AccountID, amount *uint256.Int) error
	Withdraw(ctx context.Context, id model.AccountID, amount *uint256.Int) error
	// Transfer debits from and credits to in one step.
	Transfer(ctx context.Context, from, to model.AccountID, amount *uint256.Int) error
	// ResolveTransfer returns the part of amount the receiver did not use,
	// capped at what the receiver still holds: back to the sender when it is
	// registered, burned otherwise. used must already be clamped to amount.
	ResolveTransfer(ctx context.Context, sender, receiver model.AccountID, amount, used *uint256.Int) (*uint256.Int, *uint256.Int, error)
	Accounts(ctx context.Context) ([]Account, error)
}

// Resolution is the plan for settling a transfer-with-notification.
type Resolution struct {
	// Used is what the receiver keeps.
	Used *uint256.Int
	// Refund moves from receiver to sender.
	Refund *uint256.Int
	// Burn is withdrawn from the receiver and removed from supply.
	Burn *uint256.Int
}

// PlanResolution computes how to settle amount given the clamped used
// amount, the receiver's current balance and whether the sender still
// exists. It never moves more than the receiver holds.
func PlanResolution(amount, used, receiverBalance *uint256.Int, senderRegistered bool) Resolution {
	plan := Resolution{
		Used:   amount.Clone(),
		Refund: new(uint256.Int),
		Burn:   new(uint256.Int),
	}

	u := model.ClampAmount(used, amount)
	unused := new(uint256.Int).Sub(amount, u)
	if unused.IsZero() {
		return plan
	}

	give := model.MinAmount(unused, receiverBalance)
	if give.IsZero() {
		return plan
	}

	if senderRegistered {
		plan.Refund = give
		plan.Used = new(uint256.Int).Sub(amount, give)
		return plan
	}
	plan.Burn = give
	return plan
}

func validAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	return nil
}
