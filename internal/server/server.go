// Package server exposes the token service over gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/holiman/uint256"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/amlgate/internal/gate"
	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/ratelimit"
	"github.com/ppiankov/amlgate/internal/rpc"
	"github.com/ppiankov/amlgate/internal/token"
)

// Config holds gRPC server configuration.
type Config struct {
	Port       int
	RateLimits ratelimit.Config
}

// Server implements the TokenService. Requests name their caller in the
// "caller" field; the transport is expected to authenticate it.
type Server struct {
	svc      *token.Service
	logger   *slog.Logger
	cfg      Config
	handlers map[string]rpc.Handler
	limiter  *ratelimit.Enforcer

	grpcServer *grpc.Server
	health     *health.Server
}

// New creates a gRPC server for svc.
func New(svc *token.Service, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		svc:     svc,
		logger:  logger,
		cfg:     cfg,
		health:  health.NewServer(),
		limiter: ratelimit.NewEnforcer(cfg.RateLimits),
	}
	s.handlers = map[string]rpc.Handler{
		rpc.MethodSetCategoryThreshold: s.setCategoryThreshold,
		rpc.MethodRemoveCategory:       s.removeCategory,
		rpc.MethodSetOracleAddress:     s.setOracleAddress,
		rpc.MethodTransferOwnership:    s.transferOwnership,
		rpc.MethodTransfer:             s.transfer,
		rpc.MethodTransferAndNotify:    s.transferAndNotify,
		rpc.MethodRegisterAccount:      s.registerAccount,
		rpc.MethodUnregisterAccount:    s.unregisterAccount,
		rpc.MethodReadRegistry:         s.readRegistry,
		rpc.MethodBalanceOf:            s.balanceOf,
		rpc.MethodTotalSupply:          s.totalSupply,
		rpc.MethodOwner:                s.owner,
		rpc.MethodMetadata:             s.metadata,
		rpc.MethodCheck:                s.check,
	}

	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	s.grpcServer.RegisterService(rpc.NewServiceDesc(rpc.TokenService, rpc.TokenMethods), s)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(rpc.TokenService, healthpb.HealthCheckResponse_SERVING)
	return s
}

// GRPC returns the underlying server so more services can share it.
func (s *Server) GRPC() *grpc.Server { return s.grpcServer }

// Serve starts the gRPC server on the configured port. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn starts the gRPC server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop marks the service not serving and drains open calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Route implements rpc.Router.
func (s *Server) Route(method string) rpc.Handler {
	return s.handlers[method]
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	attrs := []any{"method", info.FullMethod, "duration", time.Since(start)}
	if err != nil {
		attrs = append(attrs, "code", status.Code(err), "error", err)
		s.logger.Warn("rpc failed", attrs...)
	} else {
		s.logger.Debug("rpc served", attrs...)
	}
	return resp, err
}

// --- owner operations ---

func (s *Server) setCategoryThreshold(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	score, err := rpc.Int(req, "score")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	err = s.svc.SetCategoryThreshold(ctx, caller(req), model.Category(rpc.String(req, "category")), score)
	return empty(err)
}

func (s *Server) removeCategory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return empty(s.svc.RemoveCategory(ctx, caller(req), model.Category(rpc.String(req, "category"))))
}

func (s *Server) setOracleAddress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return empty(s.svc.SetOracleAddress(ctx, caller(req), model.AccountID(rpc.String(req, "oracle"))))
}

func (s *Server) transferOwnership(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return empty(s.svc.TransferOwnership(ctx, caller(req), model.AccountID(rpc.String(req, "new_owner"))))
}

// --- transfers ---

func (s *Server) transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, deposit, err := s.admit(req)
	if err != nil {
		return nil, err
	}
	p, err := s.svc.Transfer(ctx, caller(req), model.AccountID(rpc.String(req, "receiver")), amount, deposit, rpc.String(req, "memo"))
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return awaitOutcome(ctx, p)
}

func (s *Server) transferAndNotify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, deposit, err := s.admit(req)
	if err != nil {
		return nil, err
	}
	p, err := s.svc.TransferAndNotify(ctx, caller(req), model.AccountID(rpc.String(req, "receiver")), amount, deposit,
		rpc.String(req, "memo"), rpc.String(req, "msg"))
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return awaitOutcome(ctx, p)
}

// admit parses the amounts of a transfer request and charges it against
// the caller's rate limit. Requests failing the precheck are refused
// before they count.
func (s *Server) admit(req *structpb.Struct) (*uint256.Int, *uint256.Int, error) {
	amount, deposit, err := amounts(req)
	if err != nil {
		return nil, nil, err
	}
	if err := gate.Precheck(model.TransferRequest{
		Sender:   caller(req),
		Receiver: model.AccountID(rpc.String(req, "receiver")),
		Amount:   amount,
		Deposit:  deposit,
	}); err != nil {
		return nil, nil, rpc.ToStatus(err)
	}
	if r := s.limiter.Allow(string(caller(req))); r.Exceeded {
		s.logger.Warn("transfer rate limited", "caller", caller(req), "current", r.Current, "limit", r.Limit)
		return nil, nil, status.Error(codes.ResourceExhausted, r.Reason)
	}
	return amount, deposit, nil
}

// awaitOutcome waits for p within the call's deadline. A call that gives up
// early leaves the flow running and reports its id.
func awaitOutcome(ctx context.Context, p *gate.Pending) (*structpb.Struct, error) {
	out, err := p.Wait(ctx)
	if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
		return nil, status.Errorf(codes.DeadlineExceeded, "transfer %s still %s", p.ID(), out.State)
	}
	if err != nil {
		return nil, rpc.ToStatus(fmt.Errorf("transfer %s: %w", p.ID(), err))
	}

	reply := map[string]any{
		"transfer_id":     out.ID,
		"state":           string(out.State),
		"requested":       model.FormatAmount(out.Settlement.Requested),
		"used":            model.FormatAmount(out.Settlement.Used),
		"refunded":        model.FormatAmount(out.Settlement.Refunded),
		"burned":          model.FormatAmount(out.Settlement.Burned),
		"receiver_failed": out.Settlement.ReceiverFailed,
	}
	if out.Classification != nil {
		reply["category"] = string(out.Classification.Category)
		reply["score"] = int(out.Classification.Score)
	}
	return rpc.Reply(reply)
}

// --- storage registration ---

func (s *Server) registerAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account := model.AccountID(rpc.String(req, "account"))
	if account == "" {
		account = caller(req)
	}
	created, err := s.svc.RegisterAccount(ctx, account)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Reply(map[string]any{"created": created})
}

func (s *Server) unregisterAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	burned, err := s.svc.UnregisterAccount(ctx, caller(req), rpc.Bool(req, "force"))
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Reply(map[string]any{"burned": model.FormatAmount(burned)})
}

// --- reads ---

func (s *Server) readRegistry(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	snap := s.svc.ReadRegistry()
	entries := make([]any, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		entries = append(entries, map[string]any{
			"category":  string(e.Category),
			"threshold": int(e.Threshold),
		})
	}
	return rpc.Reply(map[string]any{
		"oracle":  string(snap.Oracle),
		"policy":  string(s.svc.Policy()),
		"entries": entries,
	})
}

func (s *Server) balanceOf(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bal, err := s.svc.BalanceOf(ctx, model.AccountID(rpc.String(req, "account")))
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Reply(map[string]any{"balance": model.FormatAmount(bal)})
}

func (s *Server) totalSupply(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	supply, err := s.svc.TotalSupply(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Reply(map[string]any{"total_supply": model.FormatAmount(supply)})
}

func (s *Server) owner(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return rpc.Reply(map[string]any{"owner": string(s.svc.Owner())})
}

func (s *Server) metadata(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	m := s.svc.Metadata()
	return rpc.Reply(map[string]any{
		"spec":     m.Spec,
		"name":     m.Name,
		"symbol":   m.Symbol,
		"icon":     m.Icon,
		"decimals": int(m.Decimals),
	})
}

func (s *Server) check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cls, err := s.svc.Check(ctx, model.AccountID(rpc.String(req, "account")))
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return rpc.Reply(map[string]any{
		"category": string(cls.Category),
		"score":    int(cls.Score),
	})
}

func caller(req *structpb.Struct) model.AccountID {
	return model.AccountID(rpc.String(req, "caller"))
}

func amounts(req *structpb.Struct) (amount, deposit *uint256.Int, err error) {
	amount, err = model.ParseAmount(rpc.String(req, "amount"))
	if err != nil {
		return nil, nil, status.Error(codes.InvalidArgument, err.Error())
	}
	deposit = new(uint256.Int)
	if d := rpc.String(req, "deposit"); d != "" {
		if deposit, err = model.ParseAmount(d); err != nil {
			return nil, nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return amount, deposit, nil
}

func empty(err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &structpb.Struct{}, nil
}
