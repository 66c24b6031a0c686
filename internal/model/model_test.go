package model

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestValidateAccountID(t *testing.T) {
	tests := []struct {
		id    AccountID
		valid bool
	}{
		{"alice.near", true},
		{"bob_1", true},
		{"treasury-ops.v2", true},
		{"a", false},
		{"", false},
		{"Alice", false},
		{"alice..near", false},
		{"-alice", false},
		{"alice near", false},
	}
	for _, tt := range tests {
		err := ValidateAccountID(tt.id)
		if tt.valid && err != nil {
			t.Errorf("expected %q valid, got %v", tt.id, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidAccount) {
			t.Errorf("expected %q invalid with ErrInvalidAccount, got %v", tt.id, err)
		}
	}
}

func TestLookupKnownCategoryCaseInsensitive(t *testing.T) {
	c, ok := LookupKnownCategory("gambling")
	if !ok {
		t.Fatal("expected gambling to be known")
	}
	if c != CategoryGambling {
		t.Errorf("expected canonical Gambling, got %s", c)
	}
	if _, ok := LookupKnownCategory("Lottery"); ok {
		t.Error("expected Lottery to be unknown")
	}
}

func TestValidateThreshold(t *testing.T) {
	for _, score := range []int{1, 5, 10} {
		if err := ValidateThreshold(score); err != nil {
			t.Errorf("expected %d valid, got %v", score, err)
		}
	}
	for _, score := range []int{0, 11, -1, 255} {
		err := ValidateThreshold(score)
		if !errors.Is(err, ErrInvalidRiskScore) {
			t.Errorf("expected ErrInvalidRiskScore for %d, got %v", score, err)
		}
	}
}

func TestClampAmount(t *testing.T) {
	limit := uint256.NewInt(100)

	if got := ClampAmount(nil, limit); !got.IsZero() {
		t.Errorf("expected nil to clamp to 0, got %s", got.Dec())
	}
	if got := ClampAmount(uint256.NewInt(40), limit); got.Uint64() != 40 {
		t.Errorf("expected 40, got %s", got.Dec())
	}
	if got := ClampAmount(uint256.NewInt(500), limit); got.Uint64() != 100 {
		t.Errorf("expected 100, got %s", got.Dec())
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("340282366920938463463374607431768211455")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	if FormatAmount(v) != "340282366920938463463374607431768211455" {
		t.Errorf("round trip mismatch: %s", FormatAmount(v))
	}
	if _, err := ParseAmount("-5"); err == nil {
		t.Error("expected negative amount to fail")
	}
	if _, err := ParseAmount(""); err == nil {
		t.Error("expected empty amount to fail")
	}
}

func TestStateTerminal(t *testing.T) {
	if StateInit.Terminal() || StateAwaitingOracle.Terminal() {
		t.Error("expected init and awaiting_oracle to be non-terminal")
	}
	for _, s := range []State{StateApproved, StateRejected, StateOracleFailure, StateConfigurationError, StateExecutionFailure} {
		if !s.Terminal() {
			t.Errorf("expected %s terminal", s)
		}
	}
}
