package model

import "errors"

// Synchronous failures. Returned before any asynchronous step or mutation.
var (
	ErrUnauthorized     = errors.New("unauthorized: caller is not the owner")
	ErrInvalidRiskScore = errors.New("invalid risk score")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrTransferPrecheck = errors.New("transfer precheck failed")
	ErrInvalidAccount   = errors.New("invalid account id")
)

// Asynchronous failures. The flow aborts before any ledger mutation.
var (
	ErrConfiguration = errors.New("configuration error: no threshold for category and no default category")
	ErrAMLRejected   = errors.New("aml check rejected transfer")
	ErrOracleCall    = errors.New("oracle call failed")
)

// ErrTransferFailed means the ledger refused the approved transfer. No
// balance changed.
var ErrTransferFailed = errors.New("transfer failed")
