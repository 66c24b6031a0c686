// Package oracle provides the external risk classification boundary.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/amlgate/internal/model"
)

var (
	// ErrUnknownAccount means the oracle has no verdict for the account.
	ErrUnknownAccount = errors.New("account not classified")
	// ErrUnknownOracle means no client is configured for an oracle address.
	ErrUnknownOracle = errors.New("no oracle at address")
	// ErrInvalidClassification means the oracle answered out of range.
	ErrInvalidClassification = errors.New("invalid classification")
)

// Oracle classifies an account's risk. Implementations must honour ctx.
type Oracle interface {
	Classify(ctx context.Context, account model.AccountID) (model.Classification, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, account model.AccountID) (model.Classification, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, account model.AccountID) (model.Classification, error) {
	return f(ctx, account)
}

// Validate checks a classification an oracle returned.
func Validate(c model.Classification) error {
	if c.Category == "" {
		return fmt.Errorf("%w: empty category", ErrInvalidClassification)
	}
	if c.Score > model.MaxRiskScore {
		return fmt.Errorf("%w: score %d above %d", ErrInvalidClassification, c.Score, model.MaxRiskScore)
	}
	return nil
}
