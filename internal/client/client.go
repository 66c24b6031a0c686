// Package client talks to a remote amlgate TokenService.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/rpc"
)

// DefaultDeposit is the attached deposit sent with transfers.
const DefaultDeposit = "1"

// Client connects to an amlgate gRPC server and acts as one caller.
type Client struct {
	conn   *grpc.ClientConn
	caller model.AccountID
}

// New creates a client for addr that identifies as caller. The connection
// is lazy; an unreachable server shows up on the first call.
func New(addr string, caller model.AccountID) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to token server: %w", err)
	}
	return &Client{conn: conn, caller: caller}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Caller returns the account the client acts as.
func (c *Client) Caller() model.AccountID { return c.caller }

// Healthy reports whether the server says it is serving.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.TokenService})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func (c *Client) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	if req == nil {
		req = map[string]any{}
	}
	req["caller"] = string(c.caller)
	return rpc.Invoke(ctx, c.conn, rpc.TokenService, method, req)
}

// --- owner operations ---

func (c *Client) SetCategoryThreshold(ctx context.Context, category model.Category, score int) error {
	_, err := c.call(ctx, rpc.MethodSetCategoryThreshold, map[string]any{
		"category": string(category),
		"score":    score,
	})
	return err
}

func (c *Client) RemoveCategory(ctx context.Context, category model.Category) error {
	_, err := c.call(ctx, rpc.MethodRemoveCategory, map[string]any{"category": string(category)})
	return err
}

func (c *Client) SetOracleAddress(ctx context.Context, oracle model.AccountID) error {
	_, err := c.call(ctx, rpc.MethodSetOracleAddress, map[string]any{"oracle": string(oracle)})
	return err
}

func (c *Client) TransferOwnership(ctx context.Context, newOwner model.AccountID) error {
	_, err := c.call(ctx, rpc.MethodTransferOwnership, map[string]any{"new_owner": string(newOwner)})
	return err
}

// --- transfers ---

// Transfer describes an outgoing transfer. Amounts are base-10 strings.
type Transfer struct {
	Receiver model.AccountID
	Amount   string
	Memo     string
	// Msg is passed to the receiver; only used by TransferAndNotify.
	Msg string
	// Deposit defaults to DefaultDeposit.
	Deposit string
}

// TransferResult is the settled outcome reported by the server.
type TransferResult struct {
	TransferID     string          `json:"transfer_id"`
	State          model.State     `json:"state"`
	Category       model.Category  `json:"category,omitempty"`
	Score          model.RiskScore `json:"score"`
	Requested      string          `json:"requested"`
	Used           string          `json:"used"`
	Refunded       string          `json:"refunded"`
	Burned         string          `json:"burned"`
	ReceiverFailed bool            `json:"receiver_failed"`
}

// Transfer sends t and waits for its settlement. Rejections come back as
// errors matching the model sentinels.
func (c *Client) Transfer(ctx context.Context, t Transfer) (TransferResult, error) {
	return c.transfer(ctx, rpc.MethodTransfer, t)
}

// TransferAndNotify sends t with a receiver notification.
func (c *Client) TransferAndNotify(ctx context.Context, t Transfer) (TransferResult, error) {
	return c.transfer(ctx, rpc.MethodTransferAndNotify, t)
}

func (c *Client) transfer(ctx context.Context, method string, t Transfer) (TransferResult, error) {
	deposit := t.Deposit
	if deposit == "" {
		deposit = DefaultDeposit
	}
	resp, err := c.call(ctx, method, map[string]any{
		"receiver": string(t.Receiver),
		"amount":   t.Amount,
		"memo":     t.Memo,
		"msg":      t.Msg,
		"deposit":  deposit,
	})
	if err != nil {
		return TransferResult{}, err
	}
	score, err := rpc.Int(resp, "score")
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		TransferID:     rpc.String(resp, "transfer_id"),
		State:          model.State(rpc.String(resp, "state")),
		Category:       model.Category(rpc.String(resp, "category")),
		Score:          model.RiskScore(score),
		Requested:      rpc.String(resp, "requested"),
		Used:           rpc.String(resp, "used"),
		Refunded:       rpc.String(resp, "refunded"),
		Burned:         rpc.String(resp, "burned"),
		ReceiverFailed: rpc.Bool(resp, "receiver_failed"),
	}, nil
}

// --- storage registration ---

// RegisterAccount registers account, or the caller when account is empty.
func (c *Client) RegisterAccount(ctx context.Context, account model.AccountID) (bool, error) {
	resp, err := c.call(ctx, rpc.MethodRegisterAccount, map[string]any{"account": string(account)})
	if err != nil {
		return false, err
	}
	return rpc.Bool(resp, "created"), nil
}

// UnregisterAccount closes the caller's account and returns the burned amount.
func (c *Client) UnregisterAccount(ctx context.Context, force bool) (string, error) {
	resp, err := c.call(ctx, rpc.MethodUnregisterAccount, map[string]any{"force": force})
	if err != nil {
		return "", err
	}
	return rpc.String(resp, "burned"), nil
}

// --- reads ---

// RegistryEntry is one category threshold.
type RegistryEntry struct {
	Category  model.Category  `json:"category"`
	Threshold model.RiskScore `json:"threshold"`
}

// Registry is the remote registry state.
type Registry struct {
	Oracle  model.AccountID `json:"oracle"`
	Policy  string          `json:"policy"`
	Entries []RegistryEntry `json:"entries"`
}

func (c *Client) ReadRegistry(ctx context.Context) (Registry, error) {
	resp, err := c.call(ctx, rpc.MethodReadRegistry, nil)
	if err != nil {
		return Registry{}, err
	}
	reg := Registry{
		Oracle: model.AccountID(rpc.String(resp, "oracle")),
		Policy: rpc.String(resp, "policy"),
	}
	for _, e := range rpc.List(resp, "entries") {
		threshold, err := rpc.Int(e, "threshold")
		if err != nil {
			return Registry{}, err
		}
		reg.Entries = append(reg.Entries, RegistryEntry{
			Category:  model.Category(rpc.String(e, "category")),
			Threshold: model.RiskScore(threshold),
		})
	}
	return reg, nil
}

func (c *Client) BalanceOf(ctx context.Context, account model.AccountID) (string, error) {
	resp, err := c.call(ctx, rpc.MethodBalanceOf, map[string]any{"account": string(account)})
	if err != nil {
		return "", err
	}
	return rpc.String(resp, "balance"), nil
}

func (c *Client) TotalSupply(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, rpc.MethodTotalSupply, nil)
	if err != nil {
		return "", err
	}
	return rpc.String(resp, "total_supply"), nil
}

func (c *Client) Owner(ctx context.Context) (model.AccountID, error) {
	resp, err := c.call(ctx, rpc.MethodOwner, nil)
	if err != nil {
		return "", err
	}
	return model.AccountID(rpc.String(resp, "owner")), nil
}

// Metadata is the remote token metadata.
type Metadata struct {
	Spec     string `json:"spec"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Icon     string `json:"icon,omitempty"`
	Decimals int    `json:"decimals"`
}

func (c *Client) Metadata(ctx context.Context) (Metadata, error) {
	resp, err := c.call(ctx, rpc.MethodMetadata, nil)
	if err != nil {
		return Metadata{}, err
	}
	decimals, err := rpc.Int(resp, "decimals")
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Spec:     rpc.String(resp, "spec"),
		Name:     rpc.String(resp, "name"),
		Symbol:   rpc.String(resp, "symbol"),
		Icon:     rpc.String(resp, "icon"),
		Decimals: decimals,
	}, nil
}

// Check classifies account and applies the registry without moving funds.
func (c *Client) Check(ctx context.Context, account model.AccountID) (model.Classification, error) {
	resp, err := c.call(ctx, rpc.MethodCheck, map[string]any{"account": string(account)})
	if err != nil {
		return model.Classification{}, err
	}
	score, err := rpc.Int(resp, "score")
	if err != nil {
		return model.Classification{}, err
	}
	return model.Classification{
		Category: model.Category(rpc.String(resp, "category")),
		Score:    model.RiskScore(score),
	}, nil
}
