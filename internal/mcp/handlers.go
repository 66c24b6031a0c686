package mcp

import (
	"context"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/amlgate/internal/client"
	"github.com/ppiankov/amlgate/internal/model"
)

// --- Input/Output types ---

// RegistryInput is empty.
type RegistryInput struct{}

// RegistryOutput is the registry state.
type RegistryOutput struct {
	Oracle  string                 `json:"oracle"`
	Policy  string                 `json:"policy"`
	Entries []client.RegistryEntry `json:"entries"`
}

// BalanceInput names the account to read.
type BalanceInput struct {
	Account string `json:"account" jsonschema:"account id"`
}

// BalanceOutput is an account balance.
type BalanceOutput struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// SupplyInput is empty.
type SupplyInput struct{}

// SupplyOutput is the total supply with token metadata.
type SupplyOutput struct {
	TotalSupply string `json:"total_supply"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
}

// CheckInput names the account to classify.
type CheckInput struct {
	Account string `json:"account" jsonschema:"account id of the would-be sender"`
}

// CheckOutput is the oracle answer and the registry verdict.
type CheckOutput struct {
	Account  string `json:"account"`
	Category string `json:"category,omitempty"`
	Score    int    `json:"score"`
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
}

// --- Handlers ---

func (s *Server) handleReadRegistry(ctx context.Context, _ *mcpsdk.CallToolRequest, _ RegistryInput) (*mcpsdk.CallToolResult, RegistryOutput, error) {
	reg, err := s.backend.ReadRegistry(ctx)
	if err != nil {
		return nil, RegistryOutput{}, err
	}
	return nil, RegistryOutput{
		Oracle:  string(reg.Oracle),
		Policy:  reg.Policy,
		Entries: reg.Entries,
	}, nil
}

func (s *Server) handleBalance(ctx context.Context, _ *mcpsdk.CallToolRequest, input BalanceInput) (*mcpsdk.CallToolResult, BalanceOutput, error) {
	bal, err := s.backend.BalanceOf(ctx, model.AccountID(input.Account))
	if err != nil {
		return nil, BalanceOutput{}, err
	}
	return nil, BalanceOutput{Account: input.Account, Balance: bal}, nil
}

func (s *Server) handleTotalSupply(ctx context.Context, _ *mcpsdk.CallToolRequest, _ SupplyInput) (*mcpsdk.CallToolResult, SupplyOutput, error) {
	supply, err := s.backend.TotalSupply(ctx)
	if err != nil {
		return nil, SupplyOutput{}, err
	}
	meta, err := s.backend.Metadata(ctx)
	if err != nil {
		return nil, SupplyOutput{}, err
	}
	return nil, SupplyOutput{TotalSupply: supply, Symbol: meta.Symbol, Decimals: meta.Decimals}, nil
}

// handleCheck reports a rejection as a normal answer. Oracle and
// configuration failures are tool errors: the verdict is unknown.
func (s *Server) handleCheck(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	out := CheckOutput{Account: input.Account}
	cls, err := s.backend.Check(ctx, model.AccountID(input.Account))
	switch {
	case err == nil:
		out.Category = string(cls.Category)
		out.Score = int(cls.Score)
		out.Allowed = true
		return nil, out, nil
	case errors.Is(err, model.ErrAMLRejected):
		out.Reason = err.Error()
		return nil, out, nil
	default:
		out.Reason = err.Error()
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
}
