package oracle

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/rpc"
)

// Client calls a remote OracleService.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the oracle at target. The connection is lazy;
// an unreachable oracle shows up as a Classify error.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to oracle %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Classify asks the remote oracle for account's classification.
func (c *Client) Classify(ctx context.Context, account model.AccountID) (model.Classification, error) {
	resp, err := rpc.Invoke(ctx, c.conn, rpc.OracleService, rpc.MethodClassify, map[string]any{
		"account": string(account),
	})
	if err != nil {
		return model.Classification{}, err
	}
	// A reply without a score is not a score of 0.
	score, err := rpc.RequiredInt(resp, "score")
	if err != nil {
		return model.Classification{}, fmt.Errorf("%w: %v", ErrInvalidClassification, err)
	}
	if score < 0 || score > int(model.MaxRiskScore) {
		return model.Classification{}, fmt.Errorf("%w: score %d", ErrInvalidClassification, score)
	}
	cls := model.Classification{
		Category: model.Category(rpc.String(resp, "category")),
		Score:    model.RiskScore(score),
	}
	if err := Validate(cls); err != nil {
		return model.Classification{}, err
	}
	return cls, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Service exposes an Oracle as the gRPC OracleService.
type Service struct {
	oracle Oracle
}

// NewService wraps o.
func NewService(o Oracle) *Service {
	return &Service{oracle: o}
}

// Register adds the service to srv.
func (s *Service) Register(srv *grpc.Server) {
	srv.RegisterService(rpc.NewServiceDesc(rpc.OracleService, rpc.OracleMethods), s)
}

// Route implements rpc.Router.
func (s *Service) Route(method string) rpc.Handler {
	if method == rpc.MethodClassify {
		return s.classify
	}
	return nil
}

func (s *Service) classify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account := model.AccountID(rpc.String(req, "account"))
	if err := model.ValidateAccountID(account); err != nil {
		return nil, rpc.ToStatus(err)
	}
	cls, err := s.oracle.Classify(ctx, account)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Reply(map[string]any{
		"category": string(cls.Category),
		"score":    int(cls.Score),
	})
}
