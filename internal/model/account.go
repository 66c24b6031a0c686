package model

import (
	"fmt"
	"regexp"
)

// AccountID identifies a ledger account, an oracle, or a receiver.
type AccountID string

var validAccount = regexp.MustCompile(`^[a-z0-9]+([._-][a-z0-9]+)*$`)

// ValidateAccountID rejects ids that are empty, too short or too long, or
// that use characters outside [a-z0-9._-].
func ValidateAccountID(id AccountID) error {
	s := string(id)
	if len(s) < 2 || len(s) > 64 {
		return fmt.Errorf("%w: %q must be 2-64 characters", ErrInvalidAccount, s)
	}
	if !validAccount.MatchString(s) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidAccount, s)
	}
	return nil
}

func (id AccountID) String() string {
	return string(id)
}
