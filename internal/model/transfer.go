package model

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// TransferRequest is one gated transfer. It is owned by a single flow and
// never persisted.
type TransferRequest struct {
	ID       string
	Sender   AccountID
	Receiver AccountID
	Amount   *uint256.Int
	Memo     string
	// Msg is handed to the receiver hook. Only read when Notify is set.
	Msg    string
	Notify bool
	// Deposit must be exactly one unit: the caller's confirmation that the
	// transfer is deliberate.
	Deposit *uint256.Int
}

// NewTransferID returns a fresh request id.
func NewTransferID() string {
	return uuid.NewString()
}

// State is a position in the authorization state machine.
type State string

const (
	StateInit               State = "init"
	StateAwaitingOracle     State = "awaiting_oracle"
	StateApproved           State = "approved"
	StateRejected           State = "rejected"
	StateOracleFailure      State = "oracle_failure"
	StateConfigurationError State = "configuration_error"
	StateExecutionFailure   State = "execution_failure"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateInit, StateAwaitingOracle:
		return false
	default:
		return true
	}
}

// Settlement is the final accounting of an executed transfer.
type Settlement struct {
	Requested *uint256.Int
	// Used is what the ledger settles as transferred from the sender, not
	// the amount the receiver declared. Burned tokens count as used: the
	// sender got nothing back, so Used + Burned may exceed Requested.
	Used     *uint256.Int
	Refunded *uint256.Int
	Burned   *uint256.Int
	// ReceiverFailed is set when the receiver hook failed or was missing.
	ReceiverFailed bool
	// ResolutionErr is a ledger error hit while settling. The receiver then
	// keeps the full amount.
	ResolutionErr error
}

// FullSettlement is the settlement of a transfer without notification.
func FullSettlement(amount *uint256.Int) Settlement {
	return Settlement{
		Requested: amount.Clone(),
		Used:      amount.Clone(),
		Refunded:  new(uint256.Int),
		Burned:    new(uint256.Int),
	}
}
