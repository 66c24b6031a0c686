// Package gate authorizes transfers against an external risk oracle before
// any balance moves. It fails closed: no verdict means no transfer.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/alert"
	"github.com/ppiankov/amlgate/internal/audit"
	"github.com/ppiankov/amlgate/internal/executor"
	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/oracle"
	"github.com/ppiankov/amlgate/internal/registry"
)

// DefaultOracleTimeout bounds one classification call.
const DefaultOracleTimeout = 5 * time.Second

// OracleResolver finds the oracle client for an address.
type OracleResolver interface {
	Resolve(address model.AccountID) (oracle.Oracle, error)
}

// Recorder receives every settled transfer.
type Recorder interface {
	RecordTransfer(ctx context.Context, req model.TransferRequest, s model.Settlement) error
}

// Gate runs the authorization state machine.
type Gate struct {
	registry      *registry.Registry
	oracles       OracleResolver
	executor      *executor.Executor
	oracleTimeout time.Duration
	logger        *slog.Logger

	auditLog   *audit.Log
	configHash string
	alerts     *alert.Dispatcher
	recorder   Recorder

	wg sync.WaitGroup
}

// Option configures a Gate.
type Option func(*Gate)

// WithOracleTimeout overrides DefaultOracleTimeout.
func WithOracleTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.oracleTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithAudit records every terminal outcome to log, tagged with configHash.
func WithAudit(log *audit.Log, configHash string) Option {
	return func(g *Gate) {
		g.auditLog = log
		g.configHash = configHash
	}
}

// WithAlerts dispatches rejections and failures to d.
func WithAlerts(d *alert.Dispatcher) Option {
	return func(g *Gate) { g.alerts = d }
}

// WithRecorder forwards settled transfers to r.
func WithRecorder(r Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// New creates a Gate.
func New(reg *registry.Registry, oracles OracleResolver, exec *executor.Executor, opts ...Option) *Gate {
	g := &Gate{
		registry:      reg,
		oracles:       oracles,
		executor:      exec,
		oracleTimeout: DefaultOracleTimeout,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit prechecks req and starts its flow. Precheck failures return
// ErrTransferPrecheck before anything asynchronous starts. The flow keeps
// running if ctx is cancelled after Submit returns.
func (g *Gate) Submit(ctx context.Context, req model.TransferRequest) (*Pending, error) {
	if err := Precheck(req); err != nil {
		return nil, err
	}
	req = own(req)

	// The oracle address is fixed at submission.
	address := g.registry.Oracle()

	p := newPending(req.ID)
	p.advance(model.StateAwaitingOracle)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.run(context.WithoutCancel(ctx), req, address, p)
	}()
	return p, nil
}

// Transfer submits req and waits for its outcome.
func (g *Gate) Transfer(ctx context.Context, req model.TransferRequest) (Outcome, error) {
	p, err := g.Submit(ctx, req)
	if err != nil {
		return Outcome{ID: req.ID, Request: req, State: model.StateInit, Err: err}, err
	}
	return p.Wait(ctx)
}

// Check classifies account and assesses the verdict without moving funds.
func (g *Gate) Check(ctx context.Context, account model.AccountID) (model.Classification, error) {
	if err := model.ValidateAccountID(account); err != nil {
		return model.Classification{}, err
	}
	cls, err := g.classify(ctx, g.registry.Oracle(), account)
	if err != nil {
		return model.Classification{}, err
	}
	return cls, g.registry.Assess(cls)
}

// Wait blocks until every submitted flow has finished.
func (g *Gate) Wait() {
	g.wg.Wait()
}

// Precheck validates the synchronous preconditions of a transfer.
func Precheck(req model.TransferRequest) error {
	if req.Deposit == nil || !req.Deposit.Eq(uint256.NewInt(1)) {
		return fmt.Errorf("%w: attached deposit must be exactly 1", model.ErrTransferPrecheck)
	}
	if req.Amount == nil || req.Amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", model.ErrTransferPrecheck)
	}
	if req.Sender == req.Receiver {
		return fmt.Errorf("%w: sender and receiver must differ", model.ErrTransferPrecheck)
	}
	if err := model.ValidateAccountID(req.Sender); err != nil {
		return fmt.Errorf("%w: sender: %w", model.ErrTransferPrecheck, err)
	}
	if err := model.ValidateAccountID(req.Receiver); err != nil {
		return fmt.Errorf("%w: receiver: %w", model.ErrTransferPrecheck, err)
	}
	return nil
}

// own detaches req from caller-held pointers and assigns an id.
func own(req model.TransferRequest) model.TransferRequest {
	if req.ID == "" {
		req.ID = model.NewTransferID()
	}
	req.Amount = req.Amount.Clone()
	req.Deposit = req.Deposit.Clone()
	return req
}

func (g *Gate) run(ctx context.Context, req model.TransferRequest, address model.AccountID, p *Pending) {
	out := Outcome{ID: req.ID, Request: req}

	cls, err := g.classify(ctx, address, req.Sender)
	if err != nil {
		out.State = model.StateOracleFailure
		out.Err = err
		g.finish(ctx, p, out)
		return
	}
	out.Classification = &cls

	if err := g.registry.Assess(cls); err != nil {
		out.Err = err
		if errors.Is(err, model.ErrConfiguration) {
			out.State = model.StateConfigurationError
		} else {
			out.State = model.StateRejected
		}
		g.finish(ctx, p, out)
		return
	}

	p.advance(model.StateApproved)
	settled, err := g.executor.Execute(ctx, req)
	if err != nil {
		out.State = model.StateExecutionFailure
		out.Err = err
		g.finish(ctx, p, out)
		return
	}
	out.State = model.StateApproved
	out.Settlement = settled
	g.finish(ctx, p, out)
}

// classify makes the single oracle call for account. Any failure, including
// an unknown address, timeout, panic or out-of-range answer, wraps
// ErrOracleCall.
func (g *Gate) classify(ctx context.Context, address, account model.AccountID) (cls model.Classification, err error) {
	o, err := g.oracles.Resolve(address)
	if err != nil {
		return model.Classification{}, fmt.Errorf("%w: %w", model.ErrOracleCall, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.oracleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			cls, err = model.Classification{}, fmt.Errorf("%w: oracle panicked: %v", model.ErrOracleCall, r)
		}
	}()

	cls, err = o.Classify(ctx, account)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return model.Classification{}, fmt.Errorf("%w: %w", model.ErrOracleCall, err)
	}
	if err := oracle.Validate(cls); err != nil {
		return model.Classification{}, fmt.Errorf("%w: %w", model.ErrOracleCall, err)
	}
	return cls, nil
}

func (g *Gate) finish(ctx context.Context, p *Pending, out Outcome) {
	attrs := []any{
		"transfer_id", out.ID,
		"state", out.State,
		"sender", out.Request.Sender,
		"receiver", out.Request.Receiver,
		"amount", out.Request.Amount.Dec(),
	}
	if out.Classification != nil {
		attrs = append(attrs, "classification", out.Classification.String())
	}
	if out.Err != nil {
		attrs = append(attrs, "error", out.Err)
		g.logger.Warn("transfer aborted", attrs...)
	} else {
		g.logger.Info("transfer settled", attrs...)
	}

	if err := g.auditLog.Record(auditEntry(out, g.configHash)); err != nil {
		g.logger.Error("audit record failed", "transfer_id", out.ID, "error", err)
	}
	g.dispatch(out)

	if out.State == model.StateApproved && g.recorder != nil {
		if err := g.recorder.RecordTransfer(ctx, out.Request, out.Settlement); err != nil {
			g.logger.Warn("transfer graph record failed", "transfer_id", out.ID, "error", err)
		}
	}

	p.finish(out)
}

func (g *Gate) dispatch(out Outcome) {
	var eventType string
	switch out.State {
	case model.StateRejected:
		eventType = alert.EventAMLRejected
	case model.StateOracleFailure:
		eventType = alert.EventOracleFailure
	case model.StateConfigurationError:
		eventType = alert.EventConfigurationError
	default:
		return
	}
	ev := alert.AlertEvent{
		Type:       eventType,
		TransferID: out.ID,
		Account:    string(out.Request.Sender),
		Receiver:   string(out.Request.Receiver),
		Amount:     model.FormatAmount(out.Request.Amount),
		ConfigHash: g.configHash,
	}
	if out.Classification != nil {
		ev.Category = string(out.Classification.Category)
		ev.Score = int(out.Classification.Score)
	}
	if out.Err != nil {
		ev.Reason = out.Err.Error()
	}
	g.alerts.Dispatch(ev)
}

// RecordClosure writes an account closure to the audit log. A forced close
// burns the remaining balance, which the entry carries as its settlement.
func (g *Gate) RecordClosure(account model.AccountID, burned *uint256.Int) {
	if burned == nil {
		burned = new(uint256.Int)
	}
	id := model.NewTransferID()
	err := g.auditLog.Record(audit.AuditEntry{
		TransferID: id,
		Transfer: audit.AuditTransfer{
			Sender: string(account),
			Amount: burned.Dec(),
		},
		State: audit.StateAccountClosed,
		Settlement: &audit.AuditSettlement{
			Used:     "0",
			Refunded: "0",
			Burned:   burned.Dec(),
		},
		ConfigHash: g.configHash,
	})
	if err != nil {
		g.logger.Error("audit record failed", "transfer_id", id, "account", account, "error", err)
	}
}

func auditEntry(out Outcome, configHash string) audit.AuditEntry {
	e := audit.AuditEntry{
		TransferID: out.ID,
		Transfer: audit.AuditTransfer{
			Sender:   string(out.Request.Sender),
			Receiver: string(out.Request.Receiver),
			Amount:   model.FormatAmount(out.Request.Amount),
			Notify:   out.Request.Notify,
		},
		State:      string(out.State),
		ConfigHash: configHash,
	}
	if out.Classification != nil {
		e.Category = string(out.Classification.Category)
		e.Score = int(out.Classification.Score)
	}
	if out.Err != nil {
		e.Reason = out.Err.Error()
	}
	if out.State == model.StateApproved && out.Request.Notify {
		e.Settlement = &audit.AuditSettlement{
			Used:     model.FormatAmount(out.Settlement.Used),
			Refunded: model.FormatAmount(out.Settlement.Refunded),
			Burned:   model.FormatAmount(out.Settlement.Burned),
		}
		if out.Settlement.ResolutionErr != nil {
			e.Reason = "resolution: " + out.Settlement.ResolutionErr.Error()
		}
	}
	return e
}
