package rpc

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/amlgate/internal/ledger"
	"github.com/ppiankov/amlgate/internal/model"
)

// ErrorDomain tags ErrorInfo details produced by this service.
const ErrorDomain = "amlgate"

type errorKind struct {
	sentinel error
	reason   string
	code     codes.Code
}

// Order matters: the first sentinel err matches wins.
var errorKinds = []errorKind{
	{model.ErrUnauthorized, "UNAUTHORIZED", codes.PermissionDenied},
	{model.ErrInvalidRiskScore, "INVALID_RISK_SCORE", codes.InvalidArgument},
	{model.ErrInvalidCategory, "INVALID_CATEGORY", codes.InvalidArgument},
	{model.ErrTransferPrecheck, "TRANSFER_PRECHECK", codes.InvalidArgument},
	{model.ErrInvalidAccount, "INVALID_ACCOUNT", codes.InvalidArgument},
	{model.ErrAMLRejected, "AML_REJECTED", codes.FailedPrecondition},
	{model.ErrConfiguration, "CONFIGURATION", codes.FailedPrecondition},
	{model.ErrOracleCall, "ORACLE_CALL", codes.Unavailable},
	{model.ErrTransferFailed, "TRANSFER_FAILED", codes.FailedPrecondition},
	{ledger.ErrNotRegistered, "NOT_REGISTERED", codes.FailedPrecondition},
	{ledger.ErrAlreadyRegistered, "ALREADY_REGISTERED", codes.AlreadyExists},
	{ledger.ErrInsufficientBalance, "INSUFFICIENT_BALANCE", codes.FailedPrecondition},
	{ledger.ErrOverflow, "OVERFLOW", codes.FailedPrecondition},
	{ledger.ErrNonZeroBalance, "NON_ZERO_BALANCE", codes.FailedPrecondition},
	{ledger.ErrZeroAmount, "ZERO_AMOUNT", codes.InvalidArgument},
	{ledger.ErrSameAccount, "SAME_ACCOUNT", codes.InvalidArgument},
}

// ToStatus converts a domain error into a gRPC status error carrying an
// ErrorInfo reason so clients can recover the sentinel.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.sentinel) {
			st := status.New(k.code, err.Error())
			if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: k.reason, Domain: ErrorDomain}); derr == nil {
				st = withInfo
			}
			return st.Err()
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// FromStatus reverses ToStatus. Errors without a known reason are wrapped
// unchanged; transport failures are reported as-is.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		for _, k := range errorKinds {
			if k.reason == info.GetReason() {
				return &remoteError{sentinel: k.sentinel, msg: st.Message()}
			}
		}
	}
	return err
}

// remoteError keeps the server's message while matching the local sentinel.
type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.sentinel }
